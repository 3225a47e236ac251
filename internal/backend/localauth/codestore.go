package localauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/buntdb"
	valkey "github.com/valkey-io/valkey-go"
)

var ErrNotFound = errors.New("localauth: key not found")

// CodeStore keeps short-lived sign-in codes and refresh tokens.
type CodeStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// OpenCodeStore parses a store location: "memory", "buntdb:<path>" or
// "valkey:<host:port>".
func OpenCodeStore(location string) (CodeStore, error) {
	kind, arg, _ := strings.Cut(location, ":")
	switch kind {
	case "", "memory":
		return NewBuntStore(":memory:")
	case "buntdb":
		return NewBuntStore(arg)
	case "valkey":
		return NewValkeyStore(arg, "evenup:auth:")
	default:
		return nil, fmt.Errorf("localauth: unknown code store %q", location)
	}
}

// BuntStore is an embedded store; ":memory:" keeps it in process.
type BuntStore struct {
	db *buntdb.DB
}

func NewBuntStore(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("localauth: open buntdb: %w", err)
	}
	return &BuntStore{db: db}, nil
}

func (s *BuntStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, &buntdb.SetOptions{Expires: true, TTL: ttl})
		return err
	})
}

func (s *BuntStore) Get(_ context.Context, key string) (string, error) {
	var v string
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		v, err = tx.Get(key)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *BuntStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}
	return err
}

func (s *BuntStore) Close() error { return s.db.Close() }

// ValkeyStore shares codes between portal replicas.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

func NewValkeyStore(addr, prefix string) (*ValkeyStore, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("localauth: connect valkey: %w", err)
	}
	return &ValkeyStore{client: cli, prefix: prefix}, nil
}

func (s *ValkeyStore) key(k string) string { return s.prefix + k }

func (s *ValkeyStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Do(ctx, s.client.B().Set().Key(s.key(key)).Value(value).Ex(ttl).Build()).Error()
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (string, error) {
	res := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return res.ToString()
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error()
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
