package schedule

import "context"

const (
	JobRentalSweep    = "rental-sweep"
	JobPatternRefresh = "pattern-refresh"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type PatternRefresher interface {
	RefreshPatterns(ctx context.Context) (int, error)
}

// SweepJob completes expired rentals and frees their calendar days.
func SweepJob(expr string, s Sweeper) Job {
	return Job{
		Name:     JobRentalSweep,
		Schedule: expr,
		Run: func(ctx context.Context) error {
			_, err := s.Sweep(ctx)
			return err
		},
	}
}

// PatternRefreshJob rolls recurring availability forward.
func PatternRefreshJob(expr string, r PatternRefresher) Job {
	return Job{
		Name:     JobPatternRefresh,
		Schedule: expr,
		Run: func(ctx context.Context) error {
			_, err := r.RefreshPatterns(ctx)
			return err
		},
	}
}
