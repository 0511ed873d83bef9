package storagebilling

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/goldvault-backend/pkg/logger"
)

// ErrRunInProgress is returned when another billing run holds the lock.
var ErrRunInProgress = errors.New("storage billing run already in progress")

// Lock guards a billing run across processes.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Runner starts a billing run.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// ExclusiveRunner refuses to start a run while another one holds the lock.
type ExclusiveRunner struct {
	svc  Service
	lock Lock
	logg *logger.Logger
}

func NewExclusiveRunner(svc Service, lock Lock, logg *logger.Logger) (*ExclusiveRunner, error) {
	if svc == nil {
		return nil, errors.New("billing service required")
	}
	if lock == nil {
		return nil, errors.New("lock required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &ExclusiveRunner{svc: svc, lock: lock, logg: logg}, nil
}

func (r *ExclusiveRunner) Run(ctx context.Context) (Summary, error) {
	locked, err := r.lock.Acquire(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire billing lock: %w", err)
	}
	if !locked {
		return Summary{}, ErrRunInProgress
	}
	defer func() {
		if relErr := r.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			r.logg.Error(ctx, "failed to release billing lock", relErr)
		}
	}()
	return r.svc.Run(ctx)
}
