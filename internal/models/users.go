package models

type User struct {
	ID        int64  `json:"id,omitempty" db:"id,omitempty"`
	Email     string `json:"email,omitempty" db:"email,omitempty"`
	FirstName string `json:"first_name,omitempty" db:"first_name,omitempty"`
}
