package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/venicegeo/pz-idam/internal/db/models"
)

// BunThrottleRepository implements ThrottleRepository using Bun ORM.
//
// Window checks compare window_start for equality only, so the same
// normalized (UTC, truncated) instant must be passed on every call.
type BunThrottleRepository struct {
	db *bun.DB
}

// NewBunThrottleRepository creates a new Bun-based throttle repository
func NewBunThrottleRepository(db *bun.DB) ThrottleRepository {
	return &BunThrottleRepository{db: db}
}

func (r *BunThrottleRepository) Get(ctx context.Context, username string, component models.ThrottleComponent) (*models.ThrottleRecord, error) {
	record := new(models.ThrottleRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("username = ?", username).
		Where("component = ?", component).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("throttle %s/%s: %w", username, component, ErrNotFound)
		}
		return nil, fmt.Errorf("get throttle record: %w", err)
	}
	return record, nil
}

// Increment adds one invocation to the user's counter, first rolling the
// record into windowStart when it belongs to an older window.
func (r *BunThrottleRepository) Increment(ctx context.Context, username string, component models.ThrottleComponent, windowStart time.Time) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		seed := &models.ThrottleRecord{
			Username:    username,
			Component:   component,
			Invocations: 0,
			WindowStart: windowStart,
		}
		if _, err := tx.NewInsert().Model(seed).Ignore().Exec(ctx); err != nil {
			return fmt.Errorf("seed throttle record: %w", err)
		}

		_, err := tx.NewUpdate().
			Model((*models.ThrottleRecord)(nil)).
			Set("invocations = 0").
			Set("window_start = ?", windowStart).
			Where("username = ?", username).
			Where("component = ?", component).
			Where("window_start <> ?", windowStart).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("roll throttle window: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*models.ThrottleRecord)(nil)).
			Set("invocations = invocations + 1").
			Where("username = ?", username).
			Where("component = ?", component).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment throttle record: %w", err)
		}
		return nil
	})
}

// ResetAll zeroes the counters of windows that started before windowStart
// and stamps them with windowStart. Records already in the window are left
// alone.
func (r *BunThrottleRepository) ResetAll(ctx context.Context, windowStart time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.ThrottleRecord)(nil)).
		Set("invocations = 0").
		Set("window_start = ?", windowStart).
		Where("window_start < ?", windowStart).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reset throttle records: %w", err)
	}
	return nil
}

// CountExceeding returns how many users are over ceiling in the current window.
func (r *BunThrottleRepository) CountExceeding(ctx context.Context, component models.ThrottleComponent, windowStart time.Time, ceiling int) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.ThrottleRecord)(nil)).
		Where("component = ?", component).
		Where("window_start = ?", windowStart).
		Where("invocations > ?", ceiling).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count exceeding throttles: %w", err)
	}
	return n, nil
}
