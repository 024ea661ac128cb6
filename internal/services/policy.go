package services

import "time"

// Clock supplies the current time; tests substitute a fixed or stepping clock.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

// Policy carries the deployment-wide creation rules.
type Policy struct {
	DescriptionMax   int
	ListingQuota     int
	Cooldown         time.Duration
	DisableRateLimit bool
}

func DefaultPolicy() Policy {
	return Policy{DescriptionMax: 1000, ListingQuota: 300, Cooldown: 30 * time.Second}
}
