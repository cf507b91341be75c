package models

// Document type identifiers as stored in the document collection.
const (
	TypeUser       = "user"
	TypeCommunity  = "subreddit"
	TypePost       = "post"
	TypeVote       = "vote"
	TypeMembership = "communityMembership"
)

// Ref points at another document by id.
type Ref struct {
	Type string `json:"_type,omitempty"`
	Ref  string `json:"_ref"`
}

// NewRef builds a reference to the document with the given id.
func NewRef(id string) Ref {
	return Ref{Type: "reference", Ref: id}
}
