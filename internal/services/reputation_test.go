package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"timebank/internal/domain"
)

func TestRating(t *testing.T) {
	assert.Equal(t, 5, Rating([]int{5, 5, 4, 5}))
	assert.Equal(t, 5, Rating([]int{5, 4, 5, 4}), "4.5 rounds up")
	assert.Equal(t, 4, Rating([]int{4, 4, 4, 5}))
	assert.Equal(t, 1, Rating([]int{1, 1, 1, 2}))
}

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, AverageRating(nil))
	assert.Equal(t, 5.0, AverageRating([]int{5}))
	assert.Equal(t, 4.33, AverageRating([]int{5, 4, 4}))
	assert.Equal(t, 4.67, AverageRating([]int{5, 5, 4}))
}

func TestMultiplierLinear(t *testing.T) {
	assert.Equal(t, 1.0, Multiplier(0, false))
	assert.Equal(t, 0.7, Multiplier(0, true), "the formula itself, for a rated average of 0")
	assert.Equal(t, 1.2, Multiplier(5, true))
	assert.Equal(t, 1.0, Multiplier(3, true))
	assert.Equal(t, 0.8, Multiplier(1, true))
	assert.Equal(t, 1.13, Multiplier(4.33, true))
	for avg := 0.0; avg <= 5; avg += 0.25 {
		m := Multiplier(avg, true)
		assert.GreaterOrEqual(t, m, MultiplierMin)
		assert.LessOrEqual(t, m, MultiplierMax)
	}
}

func TestCreditMinutes(t *testing.T) {
	txns := []domain.Transaction{
		{DurationMinutes: 60, Multiplier: 1.0, Status: domain.TxCompleted},
		{DurationMinutes: 90, Multiplier: 1.2, Status: domain.TxCompleted},
		{DurationMinutes: 600, Multiplier: 2.0, Status: domain.TxPending},
		{DurationMinutes: 600, Multiplier: 2.0, Status: domain.TxCancelled},
	}
	assert.Equal(t, 168.0, CreditMinutes(txns))
	assert.Equal(t, 0.0, CreditMinutes(nil))
}

func TestComputeReputationIsPure(t *testing.T) {
	txns := []domain.Transaction{{DurationMinutes: 60, Multiplier: 1.0, Status: domain.TxCompleted}}
	a := ComputeReputation([]int{5}, txns)
	b := ComputeReputation([]int{5}, txns)
	assert.Equal(t, a, b)
	assert.Equal(t, Reputation{AvgRating: 5, Multiplier: 1.2, CreditMinutes: 60}, a)
}
