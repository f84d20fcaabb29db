package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
)

// Get returns the value stored under key.
func (r *SQLiteRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set inserts or replaces the value under key.
func (r *SQLiteRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Delete removes key; deleting a missing key is not an error.
func (r *SQLiteRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// MemoryKV is an in-process KV, used in tests and when no database is configured.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Namespaced prefixes every key with "<ns>:" before delegating to the
// wrapped store. It composes the inner KV instead of altering it, so other
// holders of the inner store keep seeing raw keys.
type Namespaced struct {
	inner  KV
	prefix string
}

// NewNamespaced wraps inner. An empty namespace is a pass-through.
func NewNamespaced(inner KV, namespace string) *Namespaced {
	ns := strings.TrimSuffix(strings.TrimSpace(namespace), ":")
	prefix := ""
	if ns != "" {
		prefix = ns + ":"
	}
	return &Namespaced{inner: inner, prefix: prefix}
}

func (n *Namespaced) key(k string) string { return n.prefix + k }

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.key(key), value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.key(key))
}
