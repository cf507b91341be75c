package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	ID    string  `json:"_id,omitempty"`
	Type  string  `json:"_type"`
	Name  string  `json:"name,omitempty"`
	Owner *refDoc `json:"owner,omitempty"`
	Count int64   `json:"count"`
	At    string  `json:"at,omitempty"`
}

type refDoc struct {
	Ref string `json:"_ref"`
}

func TestMemStoreGetAndCreate(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()

	var missing testDoc
	require.ErrorIs(t, m.Get(ctx, "nope", &missing), ErrNotFound)

	var created testDoc
	require.NoError(t, m.Create(ctx, testDoc{Type: "thing", Name: "alpha"}, &created))
	assert.NotEmpty(t, created.ID, "create should assign an id")

	var got testDoc
	require.NoError(t, m.Get(ctx, created.ID, &got))
	assert.Equal(t, "alpha", got.Name)

	var withID testDoc
	require.NoError(t, m.Create(ctx, testDoc{ID: "fixed", Type: "thing"}, &withID))
	assert.Equal(t, "fixed", withID.ID)
}

func TestMemStoreDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.Create(ctx, testDoc{ID: "d1", Type: "thing"}, nil))

	require.NoError(t, m.Delete(ctx, "d1"))
	require.ErrorIs(t, m.Delete(ctx, "d1"), ErrNotFound)
	require.ErrorIs(t, m.Get(ctx, "d1", &testDoc{}), ErrNotFound)
}

func TestMemStoreFetchFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.Create(ctx, testDoc{ID: "a", Type: "thing", Name: "x", Owner: &refDoc{Ref: "u1"}, Count: 3}, nil))
	require.NoError(t, m.Create(ctx, testDoc{ID: "b", Type: "thing", Name: "y", Owner: &refDoc{Ref: "u1"}, Count: 1}, nil))
	require.NoError(t, m.Create(ctx, testDoc{ID: "c", Type: "thing", Name: "x", Owner: &refDoc{Ref: "u2"}, Count: 2}, nil))
	require.NoError(t, m.Create(ctx, testDoc{ID: "z", Type: "other", Name: "x"}, nil))

	var byType []testDoc
	require.NoError(t, m.Fetch(ctx, Query{Type: "thing"}, &byType))
	assert.Len(t, byType, 3)

	var byEq []testDoc
	require.NoError(t, m.Fetch(ctx, Query{Type: "thing", Eq: map[string]any{"name": "x"}}, &byEq))
	assert.Len(t, byEq, 2)

	var byRef []testDoc
	require.NoError(t, m.Fetch(ctx, Query{Type: "thing", Refs: map[string]string{"owner": "u1"}}, &byRef))
	assert.Len(t, byRef, 2)

	n, err := m.Count(ctx, Query{Type: "thing", Refs: map[string]string{"owner": "u1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemStoreOrderLimitOffset(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	for _, d := range []testDoc{
		{ID: "a", Type: "thing", Count: 3},
		{ID: "b", Type: "thing", Count: 1},
		{ID: "c", Type: "thing", Count: 2},
	} {
		require.NoError(t, m.Create(ctx, d, nil))
	}

	var asc []testDoc
	require.NoError(t, m.Fetch(ctx, Query{Type: "thing", Order: "count"}, &asc))
	require.Len(t, asc, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{asc[0].ID, asc[1].ID, asc[2].ID})

	var desc []testDoc
	require.NoError(t, m.Fetch(ctx, Query{Type: "thing", Order: "count", Desc: true, Limit: 2}, &desc))
	require.Len(t, desc, 2)
	assert.Equal(t, "a", desc[0].ID)

	var paged []testDoc
	require.NoError(t, m.Fetch(ctx, Query{Type: "thing", Order: "count", Offset: 2, Limit: 2}, &paged))
	require.Len(t, paged, 1)
	assert.Equal(t, "a", paged[0].ID)
}

func TestMemStoreSince(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	now := time.Now().UTC()
	require.NoError(t, m.Create(ctx, testDoc{ID: "old", Type: "thing", At: now.Add(-48 * time.Hour).Format(time.RFC3339Nano)}, nil))
	require.NoError(t, m.Create(ctx, testDoc{ID: "new", Type: "thing", At: now.Format(time.RFC3339Nano)}, nil))

	var recent []testDoc
	require.NoError(t, m.Fetch(ctx, Query{
		Type:  "thing",
		Since: &TimeBound{Field: "at", After: now.Add(-time.Hour)},
	}, &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)
}

func TestMemStorePatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.Create(ctx, testDoc{ID: "p1", Type: "thing", Count: 5}, nil))

	require.NoError(t, m.Patch("p1").Inc("count", 1).Commit(ctx))
	require.NoError(t, m.Patch("p1").Dec("count", 2).Commit(ctx))
	require.NoError(t, m.Patch("p1").Set("name", "renamed").Commit(ctx))

	var got testDoc
	require.NoError(t, m.Get(ctx, "p1", &got))
	assert.Equal(t, int64(4), got.Count)
	assert.Equal(t, "renamed", got.Name)

	// Arithmetic on an absent field starts from zero.
	require.NoError(t, m.Patch("p1").Inc("extra", 3).Commit(ctx))
	var raw map[string]any
	require.NoError(t, m.Get(ctx, "p1", &raw))
	assert.Equal(t, float64(3), raw["extra"])

	require.ErrorIs(t, m.Patch("ghost").Inc("count", 1).Commit(ctx), ErrNotFound)

	// An empty patch commits as a no-op even for a missing document.
	require.NoError(t, m.Patch("ghost").Commit(ctx))
}

func TestMemStoreOrdersTimestampsByTime(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	// Trimmed fractional digits would sort ".5Z" after ".51Z" as strings.
	require.NoError(t, m.Create(ctx, testDoc{ID: "half", Type: "thing", At: "2024-01-01T00:00:00.5Z"}, nil))
	require.NoError(t, m.Create(ctx, testDoc{ID: "later", Type: "thing", At: "2024-01-01T00:00:00.51Z"}, nil))

	var asc []testDoc
	require.NoError(t, m.Fetch(ctx, Query{Type: "thing", Order: "at"}, &asc))
	require.Len(t, asc, 2)
	assert.Equal(t, "half", asc[0].ID)
	assert.Equal(t, "later", asc[1].ID)
}

func TestMemStoreConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.Create(ctx, testDoc{ID: "hot", Type: "thing", Count: 0}, nil))

	const writes = 200
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			require.NoError(t, m.Patch("hot").Inc("count", 1).Commit(ctx))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			var d testDoc
			require.NoError(t, m.Get(ctx, "hot", &d))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			var docs []testDoc
			require.NoError(t, m.Fetch(ctx, Query{Type: "thing", Order: "count"}, &docs))
		}
	}()
	wg.Wait()

	var final testDoc
	require.NoError(t, m.Get(ctx, "hot", &final))
	assert.Equal(t, int64(writes), final.Count)
}

func TestMemStoreFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.Create(ctx, testDoc{ID: "a", Type: "thing", Name: "x"}, nil))

	var got testDoc
	ok, err := m.First(ctx, Query{Type: "thing", Eq: map[string]any{"name": "x"}}, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", got.ID)

	ok, err = m.First(ctx, Query{Type: "thing", Eq: map[string]any{"name": "z"}}, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
