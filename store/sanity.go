package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const defaultAPIVersion = "v2023-08-01"

// SanityConfig carries the connection settings for a Sanity Content Lake
// dataset. BaseURL overrides the project endpoint and exists for tests.
type SanityConfig struct {
	ProjectID  string
	Dataset    string
	Token      string
	APIVersion string
	BaseURL    string
}

// SanityClient implements Client against the Sanity HTTP API: GROQ for reads
// and the mutate endpoint for writes. Patches map directly onto the API's
// set/inc/dec operations, which the service applies transactionally per
// document.
type SanityClient struct {
	cfg  SanityConfig
	http *http.Client
}

// NewSanityClient builds a client for the configured dataset.
func NewSanityClient(cfg SanityConfig) *SanityClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID)
	}
	return &SanityClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SanityClient) Get(ctx context.Context, id string, dest any) error {
	raw, err := s.query(ctx, "*[_id == $id][0]", map[string]any{"id": id})
	if err != nil {
		return err
	}
	if isJSONNull(raw) {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (s *SanityClient) Fetch(ctx context.Context, q Query, dest any) error {
	groq, params := compileGROQ(q, false)
	raw, err := s.query(ctx, groq, params)
	if err != nil {
		return err
	}
	if isJSONNull(raw) {
		raw = []byte("[]")
	}
	return json.Unmarshal(raw, dest)
}

func (s *SanityClient) First(ctx context.Context, q Query, dest any) (bool, error) {
	q.Limit = 1
	q.Offset = 0
	groq, params := compileGROQ(q, false)
	raw, err := s.query(ctx, groq+"[0]", params)
	if err != nil {
		return false, err
	}
	if isJSONNull(raw) {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *SanityClient) Count(ctx context.Context, q Query) (int64, error) {
	q.Limit = 0
	q.Offset = 0
	q.Order = ""
	groq, params := compileGROQ(q, true)
	raw, err := s.query(ctx, groq, params)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("sanity: decode count: %w", err)
	}
	return n, nil
}

func (s *SanityClient) Create(ctx context.Context, doc any, dest any) error {
	results, err := s.mutate(ctx, []map[string]any{{"create": doc}}, true)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if len(results) == 0 || results[0].Document == nil {
		return fmt.Errorf("sanity: mutate returned no document")
	}
	return json.Unmarshal(results[0].Document, dest)
}

func (s *SanityClient) Delete(ctx context.Context, id string) error {
	results, err := s.mutate(ctx, []map[string]any{{"delete": map[string]any{"id": id}}}, false)
	if err != nil {
		return err
	}
	// The mutate endpoint reports only affected documents; an empty result
	// set means the id did not resolve.
	if len(results) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SanityClient) Patch(id string) *Patch {
	return newPatch(s, id)
}

func (s *SanityClient) applyPatch(ctx context.Context, id string, ops patchOps) error {
	patch := map[string]any{"id": id}
	if len(ops.Set) > 0 {
		patch["set"] = ops.Set
	}
	if len(ops.Inc) > 0 {
		patch["inc"] = ops.Inc
	}
	if len(ops.Dec) > 0 {
		patch["dec"] = ops.Dec
	}
	_, err := s.mutate(ctx, []map[string]any{{"patch": patch}}, false)
	if err != nil {
		// Patching a missing document rejects the whole mutation with a
		// not-found or conflict status.
		var ae *apiError
		if errors.As(err, &ae) && (ae.status == http.StatusNotFound || ae.status == http.StatusConflict) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// compileGROQ translates a structured query into GROQ with positional
// parameters. Predicate order is made deterministic by sorting field names.
func compileGROQ(q Query, count bool) (string, map[string]any) {
	conds := []string{fmt.Sprintf("_type == %q", q.Type)}
	params := map[string]any{}
	n := 0
	bind := func(v any) string {
		name := fmt.Sprintf("p%d", n)
		n++
		params[name] = v
		return "$" + name
	}

	for _, field := range sortedKeys(q.Refs) {
		conds = append(conds, fmt.Sprintf("%s._ref == %s", field, bind(q.Refs[field])))
	}
	for _, field := range sortedKeysAny(q.Eq) {
		conds = append(conds, fmt.Sprintf("%s == %s", field, bind(q.Eq[field])))
	}
	if q.Since != nil {
		conds = append(conds, fmt.Sprintf("%s > %s", q.Since.Field, bind(q.Since.After.UTC().Format(time.RFC3339))))
	}

	groq := "*[" + strings.Join(conds, " && ") + "]"
	if count {
		return "count(" + groq + ")", params
	}
	if q.Order != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		groq += fmt.Sprintf(" | order(%s %s)", q.Order, dir)
	}
	if q.Limit > 0 {
		groq += fmt.Sprintf(" [%d...%d]", q.Offset, q.Offset+q.Limit)
	} else if q.Offset > 0 {
		groq += fmt.Sprintf(" [%d...%d]", q.Offset, q.Offset+1000000)
	}
	return groq, params
}

type mutateResult struct {
	ID       string          `json:"id"`
	Document json.RawMessage `json:"document"`
}

func (s *SanityClient) query(ctx context.Context, groq string, params map[string]any) (json.RawMessage, error) {
	v := url.Values{}
	v.Set("query", groq)
	for name, val := range params {
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("sanity: encode param %s: %w", name, err)
		}
		v.Set("$"+name, string(b))
	}
	endpoint := fmt.Sprintf("%s/%s/data/query/%s?%s", s.cfg.BaseURL, s.cfg.APIVersion, s.cfg.Dataset, v.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	body, err := s.do(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("sanity: decode query response: %w", err)
	}
	return out.Result, nil
}

func (s *SanityClient) mutate(ctx context.Context, mutations []map[string]any, returnDocs bool) ([]mutateResult, error) {
	payload, err := json.Marshal(map[string]any{"mutations": mutations})
	if err != nil {
		return nil, fmt.Errorf("sanity: encode mutations: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/data/mutate/%s", s.cfg.BaseURL, s.cfg.APIVersion, s.cfg.Dataset)
	if returnDocs {
		endpoint += "?returnDocuments=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := s.do(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Results []mutateResult `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("sanity: decode mutate response: %w", err)
	}
	return out.Results, nil
}

func (s *SanityClient) do(req *http.Request) ([]byte, error) {
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sanity: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("sanity: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sanity: %s %s: %w", req.Method, req.URL.Path,
			&apiError{status: resp.StatusCode, body: trimBody(body)})
	}
	return body, nil
}

// apiError keeps the HTTP status of a failed API call inspectable.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func isJSONNull(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return t == "" || t == "null"
}

func trimBody(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysAny(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
