package planner

import (
	"context"
	"errors"
	"time"

	"gridgen/internal/model"
	"gridgen/internal/store"
)

// DefaultLookback is how far before the end date a run starts when the
// ledger has nothing recorded.
const DefaultLookback = 365

// Ledger is the part of the run history the planner reads.
type Ledger interface {
	LatestEvent(ctx context.Context) (model.ActivityEvent, error)
	CountInYear(ctx context.Context, year int) (int, error)
}

// DefaultStart picks the start date for a run ending at end: the day after
// the latest recorded event, or DefaultLookback days before end. A nil
// ledger always uses the lookback. The result is after end when the ledger
// already covers end.
func (p *Planner) DefaultStart(ctx context.Context, l Ledger, end time.Time) (time.Time, error) {
	end = p.midnight(end)
	if l == nil {
		return end.AddDate(0, 0, -DefaultLookback), nil
	}
	ev, err := l.LatestEvent(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return end.AddDate(0, 0, -DefaultLookback), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := ev.At.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, p.loc), nil
}

// Existing counts events already recorded in the calendar year of start.
func (p *Planner) Existing(ctx context.Context, l Ledger, start time.Time) (int, error) {
	if l == nil {
		return 0, nil
	}
	return l.CountInYear(ctx, start.Year())
}
