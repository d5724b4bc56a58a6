package dto

import "github.com/si-yapemri/school-admin-api/internal/models"

// ApprovalQuery mirrors supported listing filters. Page/PageSize of zero
// returns the full result set, matching legacy report tooling expectations.
type ApprovalQuery struct {
	Status       []models.ApprovalStatus
	MutationType models.MutationType
	SeekedBy     string
	TargetKind   models.TargetKind
	TargetID     string
	Page         int
	PageSize     int
}
