package models

// User is the slice of the externally owned user document this service reads.
// Identity resolution itself happens outside; handlers only carry the user
// document id from the verified token.
type User struct {
	ID       string `json:"_id,omitempty"`
	Type     string `json:"_type"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}
