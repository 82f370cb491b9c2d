package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cpamm/internal/model"
)

// RegisterMint records a mint and its decimals.
func (e *Engine) RegisterMint(ctx context.Context, m model.Mint) error {
	if m.Address.IsZero() {
		return e.reject("register mint", fmt.Errorf("%w: mint", ErrInvalidAddress))
	}
	if e.store != nil {
		if err := e.store.PutMint(ctx, m); err != nil {
			return fmt.Errorf("%w: mint %s: %v", ErrPersist, m.Address, err)
		}
	}
	e.registry.PutMint(m)
	e.logger.Debug("mint registered", zap.String("mint", m.Address.String()), zap.Uint8("decimals", m.Decimals))
	return nil
}

// CreateFeeSchedule stores a new schedule under the key derived from its index.
// Only the admin may create schedules.
func (e *Engine) CreateFeeSchedule(ctx context.Context, signer model.Address, f model.FeeSchedule) (model.Address, error) {
	if signer.IsZero() || signer != e.cfg.Admin {
		return model.ZeroAddress, e.reject("create fee schedule", ErrUnauthorized, zap.String("signer", signer.String()))
	}
	if err := f.Validate(); err != nil {
		return model.ZeroAddress, e.reject("create fee schedule", err)
	}

	key := e.deriver.FeeScheduleKey(f.Index)
	if _, ok := e.registry.FeeSchedule(key); ok {
		return model.ZeroAddress, e.reject("create fee schedule", fmt.Errorf("%w: index %d", ErrFeeScheduleExists, f.Index))
	}
	if e.store != nil {
		if err := e.store.PutFeeSchedule(ctx, key, f); err != nil {
			return model.ZeroAddress, fmt.Errorf("%w: fee schedule %s: %v", ErrPersist, key, err)
		}
	}
	e.registry.PutFeeSchedule(key, f)

	e.logger.Debug("fee schedule created",
		zap.String("key", key.String()),
		zap.Uint16("index", f.Index),
		zap.Uint64("trade_fee_rate", f.TradeFeeRate),
		zap.Uint64("protocol_fee_rate", f.ProtocolFeeRate),
	)
	return key, nil
}

// FeeScheduleKey returns the key of the schedule with index.
func (e *Engine) FeeScheduleKey(index uint16) model.Address {
	return e.deriver.FeeScheduleKey(index)
}

func (e *Engine) FeeSchedule(key model.Address) (model.FeeSchedule, error) {
	return e.schedule(key)
}

// UpdateFeeSchedule applies updates in order. The schedule changes only if
// every update applies and the result validates.
func (e *Engine) UpdateFeeSchedule(ctx context.Context, signer, key model.Address, updates ...FeeScheduleUpdate) (model.FeeSchedule, error) {
	if _, err := e.schedule(key); err != nil {
		return model.FeeSchedule{}, e.reject("update fee schedule", err)
	}
	f, err := e.registry.UpdateFeeSchedule(key, func(f *model.FeeSchedule) error {
		if signer.IsZero() || signer != f.Owner {
			return ErrUnauthorized
		}
		for _, u := range updates {
			if err := u.applyFeeSchedule(f); err != nil {
				return err
			}
		}
		if err := f.Validate(); err != nil {
			return err
		}
		if e.store != nil {
			if err := e.store.PutFeeSchedule(ctx, key, *f); err != nil {
				return fmt.Errorf("%w: fee schedule %s: %v", ErrPersist, key, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.FeeSchedule{}, e.reject("update fee schedule", err, zap.String("key", key.String()))
	}
	e.logger.Debug("fee schedule updated", zap.String("key", key.String()), zap.Int("updates", len(updates)))
	return f, nil
}

// DiscountConfigKey returns the key of the discount config for mint.
func (e *Engine) DiscountConfigKey(mint model.Address) model.Address {
	key, _ := e.deriver.DiscountConfigKey(mint)
	return key
}

func (e *Engine) DiscountConfig(mint model.Address) (model.DiscountConfig, error) {
	c, ok := e.registry.DiscountConfig(e.DiscountConfigKey(mint))
	if !ok {
		return model.DiscountConfig{}, fmt.Errorf("%w: %s", ErrUnknownDiscountConfig, mint)
	}
	return c, nil
}

// CreateDiscountConfig stores the discount config for cfg.Mint. Only the admin
// may create configs, and the discount mint must be registered.
func (e *Engine) CreateDiscountConfig(ctx context.Context, signer model.Address, cfg model.DiscountConfig) (model.Address, error) {
	if signer.IsZero() || signer != e.cfg.Admin {
		return model.ZeroAddress, e.reject("create discount config", ErrUnauthorized, zap.String("signer", signer.String()))
	}
	if err := cfg.Validate(); err != nil {
		return model.ZeroAddress, e.reject("create discount config", err)
	}
	if _, ok := e.registry.Mint(cfg.Mint); !ok {
		return model.ZeroAddress, e.reject("create discount config", fmt.Errorf("%w: %s", ErrUnknownMint, cfg.Mint))
	}

	key, bump := e.deriver.DiscountConfigKey(cfg.Mint)
	if _, ok := e.registry.DiscountConfig(key); ok {
		return model.ZeroAddress, e.reject("create discount config", fmt.Errorf("%w: %s", ErrDiscountConfigExists, cfg.Mint))
	}
	cfg.Bump = bump
	if e.store != nil {
		if err := e.store.PutDiscountConfig(ctx, key, cfg); err != nil {
			return model.ZeroAddress, fmt.Errorf("%w: discount config %s: %v", ErrPersist, key, err)
		}
	}
	e.registry.PutDiscountConfig(key, cfg)

	e.logger.Debug("discount config created",
		zap.String("key", key.String()),
		zap.String("mint", cfg.Mint.String()),
		zap.Uint64("discount_rate", cfg.DiscountRate),
	)
	return key, nil
}

// UpdateDiscountConfig applies updates in order; only the config authority may update.
func (e *Engine) UpdateDiscountConfig(ctx context.Context, signer, mint model.Address, updates ...DiscountConfigUpdate) (model.DiscountConfig, error) {
	key := e.DiscountConfigKey(mint)
	if _, ok := e.registry.DiscountConfig(key); !ok {
		return model.DiscountConfig{}, e.reject("update discount config", fmt.Errorf("%w: %s", ErrUnknownDiscountConfig, mint))
	}
	c, err := e.registry.UpdateDiscountConfig(key, func(c *model.DiscountConfig) error {
		if signer.IsZero() || signer != c.Authority {
			return ErrUnauthorized
		}
		for _, u := range updates {
			if err := u.applyDiscountConfig(c); err != nil {
				return err
			}
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if e.store != nil {
			if err := e.store.PutDiscountConfig(ctx, key, *c); err != nil {
				return fmt.Errorf("%w: discount config %s: %v", ErrPersist, key, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.DiscountConfig{}, e.reject("update discount config", err, zap.String("mint", mint.String()))
	}
	e.logger.Debug("discount config updated", zap.String("mint", mint.String()), zap.Int("updates", len(updates)))
	return c, nil
}

// UpdatePoolStatus replaces the pool's disabled-operation bits. Only the owner
// of the pool's fee schedule may change them.
func (e *Engine) UpdatePoolStatus(ctx context.Context, signer, poolKey model.Address, status model.PoolStatus) (model.Event, error) {
	set := e.registry.LockPools(poolKey)
	defer set.Unlock()

	p, ok := set.Pool(poolKey)
	if !ok {
		return model.Event{}, e.reject("update pool status", fmt.Errorf("%w: %s", ErrPoolNotFound, poolKey))
	}
	sched, err := e.schedule(p.FeeSchedule)
	if err != nil {
		return model.Event{}, e.reject("update pool status", err)
	}
	if signer.IsZero() || signer != sched.Owner {
		return model.Event{}, e.reject("update pool status", ErrUnauthorized, zap.String("signer", signer.String()))
	}

	p.Status = status
	if err := e.commit(ctx, set, p, nil); err != nil {
		return model.Event{}, err
	}

	ev := e.newEvent(ctx, model.EventStatusUpdated, poolKey, signer)
	ev.Status = &status
	e.logger.Debug("pool status updated", zap.String("pool", poolKey.String()), zap.Uint8("status", uint8(status)))
	return ev, nil
}
