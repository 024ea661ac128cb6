package domain

import "time"

type User struct {
	ID                       int64     `db:"id" json:"id"`
	Username                 string    `db:"username" json:"username"`
	Email                    string    `db:"email" json:"-"`
	Name                     string    `db:"name" json:"name"`
	Hash                     string    `db:"password_hash" json:"-"`
	Multiplier               float64   `db:"multiplier" json:"multiplier"`
	AvgRating                float64   `db:"avg_rating" json:"avg_rating"`
	AccumulatedCreditMinutes float64   `db:"accumulated_credit_minutes" json:"accumulated_credit_minutes"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
}
