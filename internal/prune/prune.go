// Package prune computes the age cutoff for expiring metadata and hands it
// to the store.
package prune

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/openmined/metaguard/internal/meta"
)

const day = 24 * time.Hour

// Age is a prune age given as separate components. The components add up.
type Age struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// Duration sums the components. Negative components and ages that do not
// fit in a time.Duration are usage errors.
func (a Age) Duration() (time.Duration, error) {
	parts := []struct {
		name  string
		value int64
		unit  time.Duration
	}{
		{"days", a.Days, day},
		{"hours", a.Hours, time.Hour},
		{"minutes", a.Minutes, time.Minute},
		{"seconds", a.Seconds, time.Second},
	}

	var total time.Duration
	for _, p := range parts {
		if p.value < 0 {
			return 0, fmt.Errorf("%w: %s must not be negative, got %d", meta.ErrUsage, p.name, p.value)
		}
		if p.value > math.MaxInt64/int64(p.unit) {
			return 0, fmt.Errorf("%w: %s value %d is too large", meta.ErrUsage, p.name, p.value)
		}
		d := time.Duration(p.value) * p.unit
		if total > math.MaxInt64-d {
			return 0, fmt.Errorf("%w: prune age is too large", meta.ErrUsage)
		}
		total += d
	}
	return total, nil
}

// Pruner removes entries last modified before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Delta picks the age to prune by. A positive explicit age replaces the
// configured one; the two are never added.
func Delta(configured time.Duration, explicit Age) (time.Duration, error) {
	d, err := explicit.Duration()
	if err != nil {
		return 0, err
	}
	delta := configured
	if d > 0 {
		delta = d
	}
	if delta <= 0 {
		return 0, fmt.Errorf("%w: you must specify a positive age for metadata to prune", meta.ErrUsage)
	}
	return delta, nil
}

// Cutoff returns now minus the selected age.
func Cutoff(now time.Time, configured time.Duration, explicit Age) (time.Time, error) {
	delta, err := Delta(configured, explicit)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-delta), nil
}

// Run validates the age before touching the store, then prunes once.
func Run(ctx context.Context, p Pruner, now time.Time, configured time.Duration, explicit Age) (int64, error) {
	cutoff, err := Cutoff(now, configured, explicit)
	if err != nil {
		return 0, err
	}

	slog.Debug("prune cutoff", "cutoff", cutoff.UTC().Format(time.RFC3339), "age", now.Sub(cutoff))
	return p.Prune(ctx, cutoff)
}
