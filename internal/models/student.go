package models

import "time"

// Student represents a learner registered in the institution. Students are
// protected entities.
type Student struct {
	ID          string     `db:"id" json:"id"`
	NIS         string     `db:"nis" json:"nis"`
	FirstName   string     `db:"first_name" json:"firstName"`
	LastName    string     `db:"last_name" json:"lastName"`
	Birthplace  string     `db:"birthplace" json:"birthplace"`
	BirthDate   time.Time  `db:"birth_date" json:"birthDate"`
	Gender      string     `db:"gender" json:"gender"`
	Religion    string     `db:"religion" json:"religion"`
	Citizenship string     `db:"citizenship" json:"citizenship"`
	Address     string     `db:"address" json:"address"`
	Grade       string     `db:"grade" json:"grade"`
	ParentID    *string    `db:"parent_id" json:"parentId,omitempty"`
	DataStatus  DataStatus `db:"data_status" json:"dataStatus"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	Grade      string
	ParentID   string
	DataStatus DataStatus
	Page       int
	PageSize   int
}
