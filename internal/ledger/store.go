package ledger

import (
	"context"
	"fmt"

	"cpamm/internal/model"
)

// RecordStore persists reserve-store records.
type RecordStore interface {
	PutPool(ctx context.Context, p model.Pool) error
	PutFeeSchedule(ctx context.Context, key model.Address, f model.FeeSchedule) error
	PutDiscountConfig(ctx context.Context, key model.Address, c model.DiscountConfig) error
	PutMint(ctx context.Context, m model.Mint) error
}

// RecordLoader reads back every persisted record.
type RecordLoader interface {
	Pools(ctx context.Context) ([]model.Pool, error)
	FeeSchedules(ctx context.Context) (map[model.Address]model.FeeSchedule, error)
	DiscountConfigs(ctx context.Context) (map[model.Address]model.DiscountConfig, error)
	Mints(ctx context.Context) ([]model.Mint, error)
}

// Hydrate loads every persisted record into the registry.
func (r *Registry) Hydrate(ctx context.Context, loader RecordLoader) error {
	mints, err := loader.Mints(ctx)
	if err != nil {
		return fmt.Errorf("load mints: %w", err)
	}
	for _, m := range mints {
		r.PutMint(m)
	}

	schedules, err := loader.FeeSchedules(ctx)
	if err != nil {
		return fmt.Errorf("load fee schedules: %w", err)
	}
	for key, f := range schedules {
		r.PutFeeSchedule(key, f)
	}

	discounts, err := loader.DiscountConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load discount configs: %w", err)
	}
	for key, c := range discounts {
		r.PutDiscountConfig(key, c)
	}

	pools, err := loader.Pools(ctx)
	if err != nil {
		return fmt.Errorf("load pools: %w", err)
	}
	for _, p := range pools {
		if err := r.InsertPool(p); err != nil {
			return err
		}
	}
	return nil
}
