package models

import "time"

// Account represents an application login stored in the accounts table.
// Accounts are protected entities: their mutations are gated by the approval
// workflow via DataStatus.
type Account struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"fullName"`
	Role         UserRole   `db:"role" json:"role"`
	DataStatus   DataStatus `db:"data_status" json:"dataStatus"`
	Picture      string     `db:"picture" json:"picture,omitempty"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// AccountFilter captures filtering criteria for listing accounts.
type AccountFilter struct {
	Role       *UserRole
	DataStatus DataStatus
	Search     string
	Page       int
	PageSize   int
}
