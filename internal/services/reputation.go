package services

import (
	"math"

	"timebank/internal/domain"
)

const (
	MultiplierMin     = 0.5
	MultiplierMax     = 2.0
	MultiplierDefault = 1.0
)

// Rating collapses the feedback components into one 1..5 score, rounding
// half away from zero.
func Rating(parts []int) int {
	if len(parts) == 0 {
		return 0
	}
	sum := 0
	for _, p := range parts {
		sum += p
	}
	return int(math.Round(float64(sum) / float64(len(parts))))
}

// AverageRating is the mean to two decimals, 0 without ratings.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return round2(float64(sum) / float64(len(ratings)))
}

// Multiplier is linear in the average rating: 3.0 maps to 1.0 and each point
// moves it by 0.1, clamped to [0.5, 2.0]. The formula only applies once the
// provider has feedback; an unrated provider keeps 1.0 rather than the 0.7 an
// average of 0 would give.
func Multiplier(avg float64, rated bool) float64 {
	if !rated {
		return MultiplierDefault
	}
	m := 1 + (avg-3)*0.1
	return round2(math.Min(MultiplierMax, math.Max(MultiplierMin, m)))
}

// CreditMinutes sums credit-hours over completed transactions, each at its
// snapshot multiplier, and converts back to minutes.
func CreditMinutes(txns []domain.Transaction) float64 {
	hours := 0.0
	for _, t := range txns {
		if t.Status != domain.TxCompleted {
			continue
		}
		hours += float64(t.DurationMinutes) * t.Multiplier / 60
	}
	return round2(60 * hours)
}

// Reputation derives all three provider fields from history.
type Reputation struct {
	AvgRating     float64 `json:"avg_rating"`
	Multiplier    float64 `json:"multiplier"`
	CreditMinutes float64 `json:"accumulated_credit_minutes"`
}

func ComputeReputation(ratings []int, txns []domain.Transaction) Reputation {
	avg := AverageRating(ratings)
	return Reputation{
		AvgRating:     avg,
		Multiplier:    Multiplier(avg, len(ratings) > 0),
		CreditMinutes: CreditMinutes(txns),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
