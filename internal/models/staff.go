package models

import "time"

// Staff represents an employee record. Staff are protected entities.
type Staff struct {
	ID          string     `db:"id" json:"id"`
	NIP         string     `db:"nip" json:"nip"`
	FirstName   string     `db:"first_name" json:"firstName"`
	LastName    string     `db:"last_name" json:"lastName"`
	Birthplace  string     `db:"birthplace" json:"birthplace"`
	BirthDate   time.Time  `db:"birth_date" json:"birthDate"`
	Gender      string     `db:"gender" json:"gender"`
	Religion    string     `db:"religion" json:"religion"`
	Citizenship string     `db:"citizenship" json:"citizenship"`
	Address     string     `db:"address" json:"address"`
	Phone       string     `db:"phone" json:"phone"`
	Position    string     `db:"position" json:"position"`
	DataStatus  DataStatus `db:"data_status" json:"dataStatus"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// StaffFilter encapsulates allowed search parameters for listing staff.
type StaffFilter struct {
	Search     string
	Position   string
	DataStatus DataStatus
	Page       int
	PageSize   int
}
