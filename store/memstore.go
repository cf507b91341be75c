package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore keeps documents as decoded JSON objects behind a single mutex. It
// backs the "memory" driver for local development and serves as the store
// double in tests. Patch arithmetic on one document is atomic under the lock,
// matching the contract of the remote backends.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]map[string]any
}

// NewMemStore creates an empty in-process store.
func NewMemStore() *MemStore {
	return &MemStore{docs: map[string]map[string]any{}}
}

func (m *MemStore) Get(ctx context.Context, id string, dest any) error {
	m.mu.Lock()
	doc, ok := m.docs[id]
	var snapshot map[string]any
	if ok {
		snapshot = cloneDoc(doc)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return decodeInto(snapshot, dest)
}

func (m *MemStore) Fetch(ctx context.Context, q Query, dest any) error {
	matches := m.collect(q)
	return decodeInto(matches, dest)
}

func (m *MemStore) First(ctx context.Context, q Query, dest any) (bool, error) {
	q.Limit = 1
	matches := m.collect(q)
	if len(matches) == 0 {
		return false, nil
	}
	if err := decodeInto(matches[0], dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemStore) Count(ctx context.Context, q Query) (int64, error) {
	q.Limit = 0
	q.Offset = 0
	return int64(len(m.collect(q))), nil
}

func (m *MemStore) Create(ctx context.Context, doc any, dest any) error {
	obj := map[string]any{}
	if err := decodeInto(doc, &obj); err != nil {
		return fmt.Errorf("memstore: encode document: %w", err)
	}
	id, _ := obj["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		obj["_id"] = id
	}
	// Decode dest before publishing obj; once stored, the map belongs to the
	// lock and a concurrent patch may mutate it.
	if dest != nil {
		if err := decodeInto(obj, dest); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.docs[id] = obj
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemStore) Patch(id string) *Patch {
	return newPatch(m, id)
}

func (m *MemStore) applyPatch(ctx context.Context, id string, ops patchOps) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	for field, v := range ops.Set {
		doc[field] = normalize(v)
	}
	for field, n := range ops.Inc {
		doc[field] = numberAt(doc, field) + float64(n)
	}
	for field, n := range ops.Dec {
		doc[field] = numberAt(doc, field) - float64(n)
	}
	return nil
}

// collect snapshots the matching documents in query order. Matches are
// deep-copied under the lock so later sorting and decoding never touch a map
// a concurrent patch is mutating.
func (m *MemStore) collect(q Query) []map[string]any {
	m.mu.Lock()
	var matches []map[string]any
	for _, doc := range m.docs {
		if matchDoc(doc, q) {
			matches = append(matches, cloneDoc(doc))
		}
	}
	m.mu.Unlock()

	if q.Order != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			less := lessValue(matches[i][q.Order], matches[j][q.Order])
			if q.Desc {
				return !less && !equalValue(matches[i][q.Order], matches[j][q.Order])
			}
			return less
		})
	}
	if q.Offset > 0 {
		if q.Offset >= len(matches) {
			return nil
		}
		matches = matches[q.Offset:]
	}
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches
}

func matchDoc(doc map[string]any, q Query) bool {
	if doc["_type"] != q.Type {
		return false
	}
	for field, want := range q.Eq {
		if !equalValue(doc[field], normalize(want)) {
			return false
		}
	}
	for field, id := range q.Refs {
		ref, ok := doc[field].(map[string]any)
		if !ok || ref["_ref"] != id {
			return false
		}
	}
	if q.Since != nil {
		s, _ := doc[q.Since.Field].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil || !t.After(q.Since.After) {
			return false
		}
	}
	return true
}

// decodeInto copies src into dest through a JSON round trip, keeping the
// stored representation identical to what a remote backend would return.
func decodeInto(src any, dest any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// normalize converts an arbitrary Go value to its decoded JSON form.
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func numberAt(doc map[string]any, field string) float64 {
	if f, ok := doc[field].(float64); ok {
		return f
	}
	return 0
}

func equalValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// cloneDoc deep-copies a document through a JSON round trip.
func cloneDoc(doc map[string]any) map[string]any {
	cp := map[string]any{}
	_ = decodeInto(doc, &cp)
	return cp
}

// lessValue compares field values for ordering. Timestamps are compared as
// times; lexicographic comparison mis-sorts RFC3339Nano values with different
// fractional-digit counts.
func lessValue(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			at, aerr := time.Parse(time.RFC3339Nano, as)
			bt, berr := time.Parse(time.RFC3339Nano, bs)
			if aerr == nil && berr == nil {
				return at.Before(bt)
			}
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
