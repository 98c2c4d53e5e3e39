package models

// Group is a named set of users. An expense recorded against a group is
// shared with every member in addition to any explicitly listed users.
type Group struct {
	ID      int64   `json:"id,omitempty" db:"id,omitempty"`
	Name    string  `json:"name,omitempty" db:"name,omitempty"`
	Members []int64 `json:"members,omitempty" db:"-"`
}

type GroupMember struct {
	GroupID int64 `json:"group_id,omitempty" db:"group_id,omitempty"`
	UserID  int64 `json:"user_id,omitempty" db:"user_id,omitempty"`
}
