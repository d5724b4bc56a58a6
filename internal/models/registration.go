package models

import "time"

// Registration is an enrollment interest form submitted by a prospective
// family.
type Registration struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone"`
	Address     string    `db:"address" json:"address"`
	NumChildren int       `db:"num_children" json:"numChildren"`
	AgeChildren string    `db:"age_children" json:"ageChildren"`
	Grade       string    `db:"grade" json:"grade"`
	Reason      string    `db:"reason" json:"reason"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// RegistrationFilter constrains registration listing queries.
type RegistrationFilter struct {
	Search   string
	Grade    string
	Page     int
	PageSize int
}
