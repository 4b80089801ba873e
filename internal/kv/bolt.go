package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
)

// BoltFile is the database file created inside the directory passed to OpenBolt.
const BoltFile = "documents.db"

// BoltOptions configures the embedded engine.
type BoltOptions struct {
	// Bucket is the logical table the store reads and writes.
	Bucket string
	// CompressionLevel uses the zstd scale (1 fastest .. 22 smallest).
	CompressionLevel int
	// OpenTimeout bounds how long Open waits for the file lock held by
	// another process. Zero means one second.
	OpenTimeout time.Duration
}

// Bolt is the embedded engine: an ordered B+tree file with values
// compressed by zstd before they reach disk.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// OpenBolt opens (creating if absent) the database under dir. It fails when
// dir is unusable, the file is locked by another process past the timeout,
// or the on-disk structures are invalid. It never tries to repair anything.
func OpenBolt(dir string, opts BoltOptions) (*Bolt, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bolt: bucket name required")
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = time.Second
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("bolt: create dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, BoltFile), 0o600, &bolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open: %w", err)
	}
	bucket := []byte(opts.Bucket)
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: ensure bucket %q: %w", opts.Bucket, err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.CompressionLevel)))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("bolt: zstd decoder: %w", err)
	}
	return &Bolt{db: db, bucket: bucket, enc: enc, dec: dec}, nil
}

func (b *Bolt) Put(_ context.Context, key, value []byte, check Check) ([]byte, error) {
	packed := b.enc.EncodeAll(value, nil)
	var prev []byte
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if old := bk.Get(key); old != nil {
			v, err := b.unpack(old)
			if err != nil {
				return err
			}
			prev = v
		}
		if check != nil {
			if err := check(prev); err != nil {
				return err
			}
		}
		return bk.Put(key, packed)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (b *Bolt) Get(_ context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(b.bucket).Get(key)
		if raw == nil {
			return nil
		}
		v, err := b.unpack(raw)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) Delete(_ context.Context, key []byte) ([]byte, error) {
	var prev []byte
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		old := bk.Get(key)
		if old == nil {
			return nil
		}
		v, err := b.unpack(old)
		if err != nil {
			return err
		}
		prev = v
		return bk.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (b *Bolt) Exists(_ context.Context, key []byte) (bool, error) {
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(b.bucket).Get(key) != nil
		return nil
	})
	return ok, err
}

// Close flushes and unlocks the database file.
func (b *Bolt) Close() error {
	b.dec.Close()
	encErr := b.enc.Close()
	if err := b.db.Close(); err != nil {
		return err
	}
	return encErr
}

// Path returns the database file path.
func (b *Bolt) Path() string {
	return b.db.Path()
}

// unpack decompresses a value read inside a transaction. The result does not
// alias memory owned by bolt.
func (b *Bolt) unpack(raw []byte) ([]byte, error) {
	v, err := b.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: decompress: %w", err)
	}
	return present(v), nil
}
