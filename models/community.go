package models

import (
	"encoding/json"
	"time"
)

// Community is a named grouping users can join. MemberCount is a cached
// aggregate over membership documents, kept close to the true count by the
// membership service and corrected by the reconciler. A nil MemberCount means
// the field was never written, or holds something that is not a number; both
// read as zero.
type Community struct {
	ID          string    `json:"_id,omitempty"`
	Type        string    `json:"_type"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug,omitempty"`
	Description string    `json:"description,omitempty"`
	MemberCount *int64    `json:"memberCount,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON tolerates a corrupted memberCount. An out-of-band edit can
// leave a string or fraction in the field; decoding it as absent keeps the
// clamp-to-zero branch and the reconciler able to repair it, instead of
// failing every read of the document.
func (c *Community) UnmarshalJSON(data []byte) error {
	type alias Community
	aux := struct {
		MemberCount json.RawMessage `json:"memberCount"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.MemberCount = nil
	var n int64
	if len(aux.MemberCount) > 0 && string(aux.MemberCount) != "null" &&
		json.Unmarshal(aux.MemberCount, &n) == nil {
		c.MemberCount = &n
	}
	return nil
}

// Members returns the cached member count, treating an absent field as zero.
func (c *Community) Members() int64 {
	if c.MemberCount == nil {
		return 0
	}
	return *c.MemberCount
}
