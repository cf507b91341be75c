package services

import "errors"

// Operation outcomes surfaced to handlers. Every public service method maps
// underlying store failures onto this set; nothing below the handler boundary
// panics outward.
var (
	ErrUnauthenticated  = errors.New("you must be logged in")
	ErrAlreadyMember    = errors.New("you are already a member of this community")
	ErrNotMember        = errors.New("you are not a member of this community")
	ErrNotFound         = errors.New("not found")
	ErrInvalidVote      = errors.New("vote type must be upvote or downvote")
	ErrStoreUnavailable = errors.New("the content store is unavailable")
)
