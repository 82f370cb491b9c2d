package pebble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cpamm/internal/amm"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", Options{InMemory: true, CacheSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	pool := model.Pool{
		Key:         model.Address{0x50},
		FeeSchedule: model.Address{0x51},
		MintA:       model.Address{0x52},
		MintB:       model.Address{0x53},
		DecimalsA:   9,
		DecimalsB:   6,
		ReserveA:    1_000,
		ReserveB:    2_000,
		LPSupply:    1_314,
		FundFeesB:   3,
		Status:      model.StatusDepositDisabled,
	}
	sched := model.FeeSchedule{Index: 2, TradeFeeRate: 2_500, Owner: model.Address{0x01}}
	cfg := model.DiscountConfig{Mint: model.Address{0x60}, DiscountRate: 2_000, Authority: model.Address{1}, Treasury: model.Address{2}}

	require.NoError(t, s.PutPool(ctx, pool))
	require.NoError(t, s.PutFeeSchedule(ctx, model.Address{0x51}, sched))
	require.NoError(t, s.PutDiscountConfig(ctx, model.Address{0x61}, cfg))
	require.NoError(t, s.PutMint(ctx, model.Mint{Address: model.Address{0x52}, Decimals: 9}))

	got, err := s.Pool(ctx, pool.Key)
	require.NoError(t, err)
	require.Equal(t, pool, got)

	pools, err := s.Pools(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Pool{pool}, pools)

	schedules, err := s.FeeSchedules(ctx)
	require.NoError(t, err)
	require.Equal(t, sched, schedules[model.Address{0x51}])

	configs, err := s.DiscountConfigs(ctx)
	require.NoError(t, err)
	require.Equal(t, cfg.DiscountRate, configs[model.Address{0x61}].DiscountRate)

	mints, err := s.Mints(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Mint{{Address: model.Address{0x52}, Decimals: 9}}, mints)

	_, err = s.Pool(ctx, model.Address{0x99})
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestStorePoolsBypassCacheEviction(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)
	for i := byte(1); i <= 10; i++ {
		require.NoError(t, s.PutPool(ctx, model.Pool{Key: model.Address{i}, ReserveA: uint64(i)}))
	}
	p, err := s.Pool(ctx, model.Address{1})
	require.NoError(t, err)
	require.EqualValues(t, 1, p.ReserveA)

	pools, err := s.Pools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 10)
	require.Equal(t, model.Address{1}, pools[0].Key)
}

func TestRegistryHydratesFromStore(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	admin, creator := model.Address{0x01}, model.Address{0x05}
	sol, usdc := model.Address{0x11}, model.Address{0x12}
	e := amm.NewEngine(amm.Config{Namespace: "test", Admin: admin, USDMint: usdc}, nil, nil, s, nil)
	require.NoError(t, e.RegisterMint(ctx, model.Mint{Address: sol, Decimals: 9}))
	require.NoError(t, e.RegisterMint(ctx, model.Mint{Address: usdc, Decimals: 6}))
	key, err := e.CreateFeeSchedule(ctx, admin, model.FeeSchedule{TradeFeeRate: 2_500, ProtocolFeeRate: 200_000, Owner: admin})
	require.NoError(t, err)
	require.NoError(t, e.Fund(creator, sol, 10_000_000_000))
	require.NoError(t, e.Fund(creator, usdc, 10_000_000_000))
	created, err := e.CreatePool(ctx, amm.CreatePoolRequest{
		Creator:     creator,
		FeeSchedule: key,
		MintA:       sol,
		MintB:       usdc,
		AmountA:     1_000_000_000,
		AmountB:     150_000_000,
	})
	require.NoError(t, err)
	_, err = e.Swap(ctx, amm.SwapRequest{Pool: created.Pool.Key, Payer: creator, InputMint: sol, AmountIn: 1_000_000})
	require.NoError(t, err)

	reg := ledger.NewRegistry()
	require.NoError(t, reg.Hydrate(ctx, s))

	want, err := e.Pool(created.Pool.Key)
	require.NoError(t, err)
	got, ok := reg.Pool(created.Pool.Key)
	require.True(t, ok)
	require.Equal(t, want, got)

	f, ok := reg.FeeSchedule(key)
	require.True(t, ok)
	require.EqualValues(t, 2_500, f.TradeFeeRate)
	m, ok := reg.Mint(usdc)
	require.True(t, ok)
	require.EqualValues(t, 6, m.Decimals)
}
