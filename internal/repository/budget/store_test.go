package budget

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/lectern/internal/db"
)

type expireCall struct {
	key string
	ttl time.Duration
	nx  bool
}

type mockKV struct {
	data      map[string][]byte
	getErr    error
	incrErr   error
	expireErr error
	expires   []expireCall
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte)}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) IncrBy(_ context.Context, key string, val int64) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	cur, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	m.data[key] = []byte(strconv.FormatInt(cur+val, 10))
	return nil
}

func (m *mockKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.expires = append(m.expires, expireCall{key: key, ttl: ttl, nx: nx})
	return m.expireErr
}

func TestStore_AddThenLoad(t *testing.T) {
	kv := newMockKV()
	s := New(kv)
	ctx := context.Background()

	if err := s.Add(ctx, "k", 40, time.Hour); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, "k", 2, time.Hour); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != 42 {
		t.Errorf("counter = %d, want 42", got)
	}
	if len(kv.expires) != 2 || !kv.expires[0].nx || kv.expires[0].ttl != time.Hour {
		t.Errorf("expire calls = %+v, want NX with 1h", kv.expires)
	}
}

func TestStore_AddWithoutTTLSkipsExpire(t *testing.T) {
	kv := newMockKV()
	if err := New(kv).Add(context.Background(), "k", 1, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(kv.expires) != 0 {
		t.Errorf("unexpected expire calls %+v", kv.expires)
	}
}

func TestStore_AddErrors(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = errors.New("READONLY")
	if err := New(kv).Add(context.Background(), "k", 1, time.Hour); err == nil {
		t.Fatal("expected INCRBY error")
	}

	kv = newMockKV()
	kv.expireErr = errors.New("timeout")
	if err := New(kv).Add(context.Background(), "k", 1, time.Hour); err == nil {
		t.Fatal("expected EXPIRE error")
	}
}

func TestStore_LoadMissingKey(t *testing.T) {
	got, err := New(newMockKV()).Load(context.Background(), "absent")
	if err != nil || got != 0 {
		t.Errorf("Load = (%d, %v), want (0, nil)", got, err)
	}
}

func TestStore_LoadErrors(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("conn reset")
	if _, err := New(kv).Load(context.Background(), "k"); err == nil {
		t.Fatal("expected GET error")
	}

	kv = newMockKV()
	kv.data["k"] = []byte("not-a-number")
	if _, err := New(kv).Load(context.Background(), "k"); err == nil {
		t.Fatal("expected parse error")
	}
}
