package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis stores keys as "<prefix><raw key bytes>". SET ... GET and GETDEL make
// the replace and delete paths single atomic commands. A checked Put runs
// under WATCH and retries when another client touches the key.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. Prefix defaults to "documents:".
// Close closes the client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "documents:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k []byte) string {
	return r.prefix + string(k)
}

// watchRetries bounds optimistic retries of a checked Put.
const watchRetries = 8

func (r *Redis) Put(ctx context.Context, key, value []byte, check Check) ([]byte, error) {
	if check != nil {
		return r.checkedPut(ctx, key, value, check)
	}
	old, err := r.client.SetArgs(ctx, r.key(key), value, redis.SetArgs{Get: true}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return present([]byte(old)), nil
}

func (r *Redis) checkedPut(ctx context.Context, key, value []byte, check Check) ([]byte, error) {
	k := r.key(key)
	var prev []byte
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			prev = nil
		case err != nil:
			return err
		default:
			prev = present(b)
		}
		if err := check(prev); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, value, 0)
			return nil
		})
		return err
	}
	for i := 0; i < watchRetries; i++ {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return prev, nil
	}
	return nil, ErrConflict
}

func (r *Redis) Get(ctx context.Context, key []byte) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return present(b), nil
}

func (r *Redis) Delete(ctx context.Context, key []byte) ([]byte, error) {
	b, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return present(b), nil
}

func (r *Redis) Exists(ctx context.Context, key []byte) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
