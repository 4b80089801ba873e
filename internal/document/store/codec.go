package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/coursepilot/go-services/internal/document"
	"github.com/coursepilot/go-services/internal/kv"
)

// codec turns a typed value into the bytes the engine stores and back.
// encode must be deterministic; decode must reject anything encode could not
// have produced.
type codec[T any] struct {
	encode func(T) ([]byte, error)
	decode func([]byte) (T, error)
}

// idCodec stores the raw digest with no framing.
var idCodec = codec[document.ID]{
	encode: func(id document.ID) ([]byte, error) {
		return id.Bytes(), nil
	},
	decode: func(b []byte) (document.ID, error) {
		var id document.ID
		if len(b) != document.IDSize {
			return id, fmt.Errorf("key is %d bytes, want %d", len(b), document.IDSize)
		}
		copy(id[:], b)
		return id, nil
	},
}

// recordCodec stores a record as a BSON document {content: string, created: datetime}.
var recordCodec = codec[document.Record]{
	encode: func(r document.Record) ([]byte, error) {
		return bson.Marshal(r)
	},
	decode: decodeRecord,
}

func decodeRecord(b []byte) (document.Record, error) {
	var r document.Record
	raw := bson.Raw(b)
	if err := raw.Validate(); err != nil {
		return r, err
	}
	content, err := raw.LookupErr("content")
	if err != nil {
		return r, errors.New("record has no content field")
	}
	s, ok := content.StringValueOK()
	if !ok {
		return r, fmt.Errorf("content field has type %s", content.Type)
	}
	created, err := raw.LookupErr("created")
	if err != nil {
		return r, errors.New("record has no created field")
	}
	ms, ok := created.DateTimeOK()
	if !ok {
		return r, fmt.Errorf("created field has type %s", created.Type)
	}
	r.Content = s
	r.Created = time.UnixMilli(ms).UTC()
	return r, nil
}

func codecFault(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCodec, what, err)
}

func storageFault(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// insertAndTransform encodes key and value, writes them, and decodes the
// value that was replaced, if any. The replaced value is decoded before the
// write commits, so an undecodable one fails the insert and stays in place.
func insertAndTransform[K, V any](ctx context.Context, s kv.Store, kc codec[K], vc codec[V], key K, value V) (*V, error) {
	k, err := kc.encode(key)
	if err != nil {
		return nil, codecFault("encode key", err)
	}
	v, err := vc.encode(value)
	if err != nil {
		return nil, codecFault("encode value", err)
	}
	var prev *V
	_, err = s.Put(ctx, k, v, func(old []byte) error {
		var derr error
		prev, derr = decodeOptional(vc, old)
		return derr
	})
	if errors.Is(err, ErrCodec) {
		return nil, err
	}
	if err != nil {
		return nil, storageFault(err)
	}
	return prev, nil
}

func getAndTransform[K, V any](ctx context.Context, s kv.Store, kc codec[K], vc codec[V], key K) (*V, error) {
	k, err := kc.encode(key)
	if err != nil {
		return nil, codecFault("encode key", err)
	}
	v, err := s.Get(ctx, k)
	if err != nil {
		return nil, storageFault(err)
	}
	return decodeOptional(vc, v)
}

func removeAndTransform[K, V any](ctx context.Context, s kv.Store, kc codec[K], vc codec[V], key K) (*V, error) {
	k, err := kc.encode(key)
	if err != nil {
		return nil, codecFault("encode key", err)
	}
	prev, err := s.Delete(ctx, k)
	if err != nil {
		return nil, storageFault(err)
	}
	return decodeOptional(vc, prev)
}

func containsKey[K any](ctx context.Context, s kv.Store, kc codec[K], key K) (bool, error) {
	k, err := kc.encode(key)
	if err != nil {
		return false, codecFault("encode key", err)
	}
	ok, err := s.Exists(ctx, k)
	if err != nil {
		return false, storageFault(err)
	}
	return ok, nil
}

func decodeOptional[V any](vc codec[V], b []byte) (*V, error) {
	if b == nil {
		return nil, nil
	}
	out, err := vc.decode(b)
	if err != nil {
		return nil, codecFault("decode value", err)
	}
	return &out, nil
}
