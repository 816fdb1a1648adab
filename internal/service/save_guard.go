package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type saveLocker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// SaveGuard lets one save run per class at a time. With a locker the guard also
// holds a Redis lock so replicas sharing the database serialise too.
type SaveGuard struct {
	mu     sync.Mutex
	held   map[string]struct{}
	locker saveLocker
	ttl    time.Duration
	logger *zap.Logger
}

// NewSaveGuard builds a guard. locker may be nil for a single-process deployment.
func NewSaveGuard(locker saveLocker, ttl time.Duration, logger *zap.Logger) *SaveGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaveGuard{held: make(map[string]struct{}), locker: locker, ttl: ttl, logger: logger}
}

func saveLockKey(className string) string {
	return "timetable:save-lock:" + className
}

// Acquire reserves className or fails with ErrSaveInProgress. The returned func releases it.
func (g *SaveGuard) Acquire(ctx context.Context, className string) (func(), error) {
	g.mu.Lock()
	if _, busy := g.held[className]; busy {
		g.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrSaveInProgress, "a save is already in progress for "+className)
	}
	g.held[className] = struct{}{}
	g.mu.Unlock()

	releaseLocal := func() {
		g.mu.Lock()
		delete(g.held, className)
		g.mu.Unlock()
	}
	if g.locker == nil {
		return releaseLocal, nil
	}

	token := uuid.NewString()
	ok, err := g.locker.AcquireLock(ctx, saveLockKey(className), token, g.ttl)
	if err != nil {
		releaseLocal()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire save lock")
	}
	if !ok {
		releaseLocal()
		return nil, appErrors.Clone(appErrors.ErrSaveInProgress, "a save is already in progress for "+className)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.locker.ReleaseLock(releaseCtx, saveLockKey(className), token); err != nil {
			g.logger.Warn("release save lock", zap.String("class", className), zap.Error(err))
		}
		releaseLocal()
	}, nil
}
