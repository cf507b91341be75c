package models

// Vote directions.
const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

// Vote is a single user's vote on a post. One vote per (user, post) pair is
// maintained by the vote service: casting the same direction again retracts
// the vote, casting the other direction switches it.
type Vote struct {
	ID       string `json:"_id,omitempty"`
	Type     string `json:"_type"`
	User     Ref    `json:"user"`
	Post     Ref    `json:"post"`
	VoteType string `json:"voteType"`
}
