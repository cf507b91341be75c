package models

import "time"

// Membership roles.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
)

// Membership records that a user belongs to a community. Created on join,
// deleted on leave, never updated in between. At most one document should
// exist per (user, community) pair; the store offers no unique constraint so
// the pre-create existence check is advisory and the reconciler deduplicates.
type Membership struct {
	ID        string    `json:"_id,omitempty"`
	Type      string    `json:"_type"`
	User      Ref       `json:"user"`
	Community Ref       `json:"community"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
}
