package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document id does not resolve.
var ErrNotFound = errors.New("store: document not found")

// TimeBound restricts a query to documents whose field is strictly after a
// point in time.
type TimeBound struct {
	Field string
	After time.Time
}

// Query selects documents of a single type by equality and reference
// predicates. Each backend translates it into its own query language; reads
// carry no isolation guarantee against concurrent writers.
type Query struct {
	Type   string            // document type, required
	Eq     map[string]any    // field == value
	Refs   map[string]string // reference field -> target document id
	Since  *TimeBound
	Order  string // field to order by, optional
	Desc   bool
	Limit  int
	Offset int
}

// Client is the document store the repositories are built on. Single-field
// Set/Inc/Dec inside one Patch commit apply atomically on their document;
// nothing is atomic across documents and there is no compare-and-swap.
type Client interface {
	// Get loads a document by id into dest, returning ErrNotFound when missing.
	Get(ctx context.Context, id string, dest any) error
	// Fetch runs q and decodes all matches into dest, a pointer to a slice.
	Fetch(ctx context.Context, q Query, dest any) error
	// First decodes the first match into dest, reporting whether one existed.
	First(ctx context.Context, q Query, dest any) (bool, error)
	// Count returns the number of matching documents.
	Count(ctx context.Context, q Query) (int64, error)
	// Create persists doc, assigning an id when absent. When dest is non-nil
	// the stored document, including its id, is decoded into it.
	Create(ctx context.Context, doc any, dest any) error
	// Delete removes the document, returning ErrNotFound when missing.
	Delete(ctx context.Context, id string) error
	// Patch starts a field mutation on one document.
	Patch(id string) *Patch
}

// patcher is the backend half of a Patch commit.
type patcher interface {
	applyPatch(ctx context.Context, id string, ops patchOps) error
}

type patchOps struct {
	Set map[string]any
	Inc map[string]int64
	Dec map[string]int64
}

func (o patchOps) empty() bool {
	return len(o.Set) == 0 && len(o.Inc) == 0 && len(o.Dec) == 0
}

// Patch accumulates field operations for one document and applies them in a
// single commit.
type Patch struct {
	id  string
	ops patchOps
	p   patcher
}

func newPatch(p patcher, id string) *Patch {
	return &Patch{id: id, p: p}
}

// Set assigns a field.
func (p *Patch) Set(field string, value any) *Patch {
	if p.ops.Set == nil {
		p.ops.Set = map[string]any{}
	}
	p.ops.Set[field] = value
	return p
}

// Inc adds n to a numeric field.
func (p *Patch) Inc(field string, n int64) *Patch {
	if p.ops.Inc == nil {
		p.ops.Inc = map[string]int64{}
	}
	p.ops.Inc[field] = n
	return p
}

// Dec subtracts n from a numeric field.
func (p *Patch) Dec(field string, n int64) *Patch {
	if p.ops.Dec == nil {
		p.ops.Dec = map[string]int64{}
	}
	p.ops.Dec[field] = n
	return p
}

// Commit applies the accumulated operations, returning ErrNotFound when the
// target document does not exist.
func (p *Patch) Commit(ctx context.Context) error {
	if p.ops.empty() {
		return nil
	}
	return p.p.applyPatch(ctx, p.id, p.ops)
}
