package engine

import (
	"fmt"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

// IncrementTable maps a current bid to the step a raise must add. Bands are
// half-open: a band applies to any bid in [From, nextFrom). The table must
// be ascending in From and non-decreasing in Step.
type IncrementTable []models.IncrementBand

// DefaultIncrementTable returns the standard IPL-style bands:
// below 1,00,000 raise by 10,000; below 5,00,000 by 25,000; else by 50,000.
func DefaultIncrementTable() IncrementTable {
	return IncrementTable{
		{From: 0, Step: 10_000},
		{From: 100_000, Step: 25_000},
		{From: 500_000, Step: 50_000},
	}
}

// Validate rejects empty, unordered, or non-monotonic custom tables.
func (t IncrementTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("increment table is empty")
	}
	if t[0].From != 0 {
		return fmt.Errorf("first band must start at 0, got %d", t[0].From)
	}
	for i, band := range t {
		if band.Step <= 0 {
			return fmt.Errorf("band %d has non-positive step %d", i, band.Step)
		}
		if i == 0 {
			continue
		}
		if band.From <= t[i-1].From {
			return fmt.Errorf("band %d lower bound %d is not above previous %d", i, band.From, t[i-1].From)
		}
		if band.Step < t[i-1].Step {
			return fmt.Errorf("band %d step %d shrinks below previous %d", i, band.Step, t[i-1].Step)
		}
	}
	return nil
}

// StepFor returns the increment for the band containing currentBid.
func (t IncrementTable) StepFor(currentBid int64) int64 {
	step := t[0].Step
	for _, band := range t {
		if currentBid >= band.From {
			step = band.Step
		}
	}
	return step
}

// NextMinimumBid computes the only amount the next raise can be charged at.
// Before any bid exists the minimum is the base price itself.
func NextMinimumBid(currentBid int64, hasAnyBid bool, basePrice int64, t IncrementTable) int64 {
	if !hasAnyBid {
		return basePrice
	}
	return currentBid + t.StepFor(currentBid)
}
