package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	lru "github.com/hashicorp/golang-lru/v2"

	"cpamm/internal/model"
)

var (
	ErrDBClosed    = errors.New("database is closed")
	ErrKeyNotFound = errors.New("key not found")
)

// Record prefixes. Each record is stored under prefix || 32-byte key.
const (
	prefixPool           byte = 'p'
	prefixFeeSchedule    byte = 'f'
	prefixDiscountConfig byte = 'd'
	prefixMint           byte = 'm'
)

const defaultCacheSize = 1024

// Store persists reserve-store records in their fixed binary layouts.
type Store struct {
	db    *pebble.DB
	pools *lru.Cache[model.Address, model.Pool]
}

type Options struct {
	// InMemory keeps every record in an in-memory filesystem.
	InMemory  bool
	CacheSize int
}

func Open(path string, opts Options) (*Store, error) {
	popts := &pebble.Options{}
	if opts.InMemory {
		popts.FS = vfs.NewMem()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}

	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	cache, err := lru.New[model.Address, model.Pool](opts.CacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, pools: cache}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func recordKey(prefix byte, key model.Address) []byte {
	out := make([]byte, 1+model.AddressLength)
	out[0] = prefix
	copy(out[1:], key[:])
	return out
}

func (s *Store) read(key []byte) ([]byte, error) {
	if s.db == nil {
		return nil, ErrDBClosed
	}
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	return valCopy, nil
}

func (s *Store) write(ctx context.Context, key, value []byte) error {
	if s.db == nil {
		return ErrDBClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Set(key, value, pebble.Sync)
}

// scan calls fn for every record under prefix in key order.
func (s *Store) scan(ctx context.Context, prefix byte, fn func(key model.Address, value []byte) error) error {
	if s.db == nil {
		return ErrDBClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefix},
		UpperBound: []byte{prefix + 1},
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := iter.Key()
		if len(raw) != 1+model.AddressLength {
			return fmt.Errorf("%w: record key of %d bytes", model.ErrLayout, len(raw))
		}
		key, err := model.AddressFromBytes(raw[1:])
		if err != nil {
			return err
		}
		val := iter.Value()
		valCopy := make([]byte, len(val))
		copy(valCopy, val)
		if err := fn(key, valCopy); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) PutPool(ctx context.Context, p model.Pool) error {
	data, err := model.EncodePool(p)
	if err != nil {
		return err
	}
	if err := s.write(ctx, recordKey(prefixPool, p.Key), data); err != nil {
		return err
	}
	s.pools.Add(p.Key, p)
	return nil
}

// Pool returns a pool record, served from the cache when present.
func (s *Store) Pool(ctx context.Context, key model.Address) (model.Pool, error) {
	if p, ok := s.pools.Get(key); ok {
		return p, nil
	}
	data, err := s.read(recordKey(prefixPool, key))
	if err != nil {
		return model.Pool{}, err
	}
	p, err := model.DecodePool(key, data)
	if err != nil {
		return model.Pool{}, err
	}
	s.pools.Add(key, p)
	return p, nil
}

func (s *Store) Pools(ctx context.Context) ([]model.Pool, error) {
	var out []model.Pool
	err := s.scan(ctx, prefixPool, func(key model.Address, value []byte) error {
		p, err := model.DecodePool(key, value)
		if err != nil {
			return fmt.Errorf("pool %s: %w", key, err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *Store) PutFeeSchedule(ctx context.Context, key model.Address, f model.FeeSchedule) error {
	data, err := model.EncodeFeeSchedule(f)
	if err != nil {
		return err
	}
	return s.write(ctx, recordKey(prefixFeeSchedule, key), data)
}

func (s *Store) FeeSchedules(ctx context.Context) (map[model.Address]model.FeeSchedule, error) {
	out := make(map[model.Address]model.FeeSchedule)
	err := s.scan(ctx, prefixFeeSchedule, func(key model.Address, value []byte) error {
		f, err := model.DecodeFeeSchedule(value)
		if err != nil {
			return fmt.Errorf("fee schedule %s: %w", key, err)
		}
		out[key] = f
		return nil
	})
	return out, err
}

func (s *Store) PutDiscountConfig(ctx context.Context, key model.Address, c model.DiscountConfig) error {
	data, err := model.EncodeDiscountConfig(c)
	if err != nil {
		return err
	}
	return s.write(ctx, recordKey(prefixDiscountConfig, key), data)
}

func (s *Store) DiscountConfigs(ctx context.Context) (map[model.Address]model.DiscountConfig, error) {
	out := make(map[model.Address]model.DiscountConfig)
	err := s.scan(ctx, prefixDiscountConfig, func(key model.Address, value []byte) error {
		c, err := model.DecodeDiscountConfig(value)
		if err != nil {
			return fmt.Errorf("discount config %s: %w", key, err)
		}
		out[key] = c
		return nil
	})
	return out, err
}

func (s *Store) PutMint(ctx context.Context, m model.Mint) error {
	return s.write(ctx, recordKey(prefixMint, m.Address), model.EncodeMint(m))
}

func (s *Store) Mints(ctx context.Context) ([]model.Mint, error) {
	var out []model.Mint
	err := s.scan(ctx, prefixMint, func(key model.Address, value []byte) error {
		m, err := model.DecodeMint(key, value)
		if err != nil {
			return fmt.Errorf("mint %s: %w", key, err)
		}
		out = append(out, m)
		return nil
	})
	return out, err
}
