// Package kv defines the abstract key-value store the core depends on
// (the abstract chain/store interfaces). The on-disk implementation is out of scope: callers wire in
// whatever backend they like, and this package additionally ships a
// process-memory implementation used by tests and by any caller that
// does not need durability across restarts.
package kv

import (
	"bytes"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Op is a single operation inside a Batch call. Value selects between a
// put (Value non-nil) and a delete (Value nil).
type Op struct {
	Key   []byte
	Value []byte
}

// Entry is one key/value pair yielded by a read stream, in key order.
type Entry struct {
	Key   []byte
	Value []byte
}

// Store is the abstract kv-store interface of the abstract chain/store interfaces: get/put/del, atomic
// batches, and ordered range scans. All keys are byte strings; this
// package does not interpret the prefixes documented in the wire format — that is
// the job of the packages that use a Store (replay, channel).
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Batch(ops ...Op) error

	// NewReadStream returns, in ascending key order, every entry whose
	// key is within [gte, lte]. A nil bound is unbounded on that side.
	NewReadStream(gte, lte []byte) ([]Entry, error)
}

// Memory is an in-process Store backed by a sorted map, guarded by a
// single mutex: every operation is serialized, which trivially satisfies
// the per-key serialization callers require (it over-serializes relative
// to same-key-only ordering, but that is a conservative and harmless
// simplification for an in-memory reference store).
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, string(key))
	return nil
}

func (m *Memory) Batch(ops ...Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		if op.Value == nil {
			delete(m.data, string(op.Key))
			continue
		}
		cp := make([]byte, len(op.Value))
		copy(cp, op.Value)
		m.data[string(op.Key)] = cp
	}
	return nil
}

func (m *Memory) NewReadStream(gte, lte []byte) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		key := []byte(k)
		if gte != nil && bytes.Compare(key, gte) < 0 {
			continue
		}
		if lte != nil && bytes.Compare(key, lte) > 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v := m.data[k]
		cp := make([]byte, len(v))
		copy(cp, v)
		out = append(out, Entry{Key: []byte(k), Value: cp})
	}
	return out, nil
}
