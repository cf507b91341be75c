package models

import "time"

// Post carries denormalized vote aggregates. They are rebuilt wholesale from
// the vote documents after every vote mutation, so unlike the member counter
// there is no incremental drift to accumulate.
type Post struct {
	ID            string    `json:"_id,omitempty"`
	Type          string    `json:"_type"`
	Title         string    `json:"title"`
	Body          string    `json:"body,omitempty"`
	Author        Ref       `json:"author"`
	Community     Ref       `json:"subreddit"`
	PublishedAt   time.Time `json:"publishedAt"`
	UpvoteCount   int64     `json:"upvoteCount"`
	DownvoteCount int64     `json:"downvoteCount"`
	Score         int64     `json:"score"`
	IsDeleted     bool      `json:"isDeleted,omitempty"`
}
