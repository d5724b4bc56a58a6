package models

import "time"

// Parent represents a student guardian. Parents are protected entities.
type Parent struct {
	ID          string     `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"firstName"`
	LastName    string     `db:"last_name" json:"lastName"`
	Birthplace  string     `db:"birthplace" json:"birthplace"`
	BirthDate   time.Time  `db:"birth_date" json:"birthDate"`
	Gender      string     `db:"gender" json:"gender"`
	Religion    string     `db:"religion" json:"religion"`
	Citizenship string     `db:"citizenship" json:"citizenship"`
	Address     string     `db:"address" json:"address"`
	Phone       string     `db:"phone" json:"phone"`
	Occupation  string     `db:"occupation" json:"occupation"`
	DataStatus  DataStatus `db:"data_status" json:"dataStatus"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// ParentFilter encapsulates allowed search parameters for listing parents.
type ParentFilter struct {
	Search     string
	DataStatus DataStatus
	Page       int
	PageSize   int
}
