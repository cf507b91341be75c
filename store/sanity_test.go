package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSanity(handler http.HandlerFunc) (*SanityClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewSanityClient(SanityConfig{
		ProjectID: "testproj",
		Dataset:   "production",
		Token:     "secret-token",
		BaseURL:   srv.URL,
	})
	return c, srv
}

func TestSanityGet(t *testing.T) {
	var gotQuery, gotParam, gotAuth string
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotParam = r.URL.Query().Get("$id")
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `{"result": {"_id": "c1", "_type": "subreddit", "title": "golang"}}`)
	})
	defer srv.Close()

	var doc map[string]any
	require.NoError(t, c.Get(context.Background(), "c1", &doc))
	assert.Equal(t, "*[_id == $id][0]", gotQuery)
	assert.Equal(t, `"c1"`, gotParam)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "golang", doc["title"])
}

func TestSanityGetNotFound(t *testing.T) {
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result": null}`)
	})
	defer srv.Close()

	var doc map[string]any
	require.ErrorIs(t, c.Get(context.Background(), "missing", &doc), ErrNotFound)
}

func TestSanityFetchCompilesGROQ(t *testing.T) {
	var gotQuery, gotP0 string
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotP0 = r.URL.Query().Get("$p0")
		io.WriteString(w, `{"result": []}`)
	})
	defer srv.Close()

	var out []map[string]any
	err := c.Fetch(context.Background(), Query{
		Type:  "communityMembership",
		Refs:  map[string]string{"community": "c1"},
		Order: "joinedAt",
		Limit: 10,
	}, &out)
	require.NoError(t, err)
	assert.Equal(t,
		`*[_type == "communityMembership" && community._ref == $p0] | order(joinedAt asc) [0...10]`,
		gotQuery)
	assert.Equal(t, `"c1"`, gotP0)
	assert.Empty(t, out)
}

func TestSanityCount(t *testing.T) {
	var gotQuery string
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		io.WriteString(w, `{"result": 3}`)
	})
	defer srv.Close()

	n, err := c.Count(context.Background(), Query{
		Type: "communityMembership",
		Refs: map[string]string{"community": "c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, `count(*[_type == "communityMembership" && community._ref == $p0])`, gotQuery)
}

func TestSanityCreate(t *testing.T) {
	var gotPath, gotRawQuery string
	var gotBody map[string]any
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRawQuery = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"results": [{"id": "m1", "document": {"_id": "m1", "_type": "communityMembership"}}]}`)
	})
	defer srv.Close()

	var created map[string]any
	err := c.Create(context.Background(), map[string]any{"_type": "communityMembership"}, &created)
	require.NoError(t, err)
	assert.Equal(t, "/v2023-08-01/data/mutate/production", gotPath)
	assert.Contains(t, gotRawQuery, "returnDocuments=true")
	assert.Equal(t, "m1", created["_id"])

	mutations := gotBody["mutations"].([]any)
	require.Len(t, mutations, 1)
	create := mutations[0].(map[string]any)["create"].(map[string]any)
	assert.Equal(t, "communityMembership", create["_type"])
}

func TestSanityPatchMutations(t *testing.T) {
	var gotBody map[string]any
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"results": [{"id": "c1"}]}`)
	})
	defer srv.Close()

	require.NoError(t, c.Patch("c1").Inc("memberCount", 1).Commit(context.Background()))

	mutations := gotBody["mutations"].([]any)
	require.Len(t, mutations, 1)
	patch := mutations[0].(map[string]any)["patch"].(map[string]any)
	assert.Equal(t, "c1", patch["id"])
	assert.Equal(t, map[string]any{"memberCount": float64(1)}, patch["inc"])
	assert.Nil(t, patch["set"])
	assert.Nil(t, patch["dec"])
}

func TestSanityDelete(t *testing.T) {
	var gotBody map[string]any
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"results": [{"id": "m1", "operation": "delete"}]}`)
	})
	defer srv.Close()

	require.NoError(t, c.Delete(context.Background(), "m1"))

	mutations := gotBody["mutations"].([]any)
	require.Len(t, mutations, 1)
	del := mutations[0].(map[string]any)["delete"].(map[string]any)
	assert.Equal(t, "m1", del["id"])
}

func TestSanityDeleteMissing(t *testing.T) {
	// Nothing affected, nothing reported.
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results": []}`)
	})
	defer srv.Close()

	require.ErrorIs(t, c.Delete(context.Background(), "ghost"), ErrNotFound)
}

func TestSanityPatchMissing(t *testing.T) {
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error": {"description": "The document with the ID \"ghost\" was not found"}}`)
	})
	defer srv.Close()

	err := c.Patch("ghost").Inc("memberCount", 1).Commit(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSanityErrorStatus(t *testing.T) {
	c, srv := newTestSanity(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": "unauthorized"}`)
	})
	defer srv.Close()

	var doc map[string]any
	err := c.Get(context.Background(), "c1", &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
