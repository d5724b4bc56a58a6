package models

import (
	"encoding/json"
	"time"

	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

// MutationType enumerates protected-entity mutations that require review.
type MutationType string

const (
	MutationAdd    MutationType = "add"
	MutationEdit   MutationType = "edit"
	MutationDelete MutationType = "delete"
)

// Valid reports whether the mutation type is one of add, edit, delete.
func (t MutationType) Valid() bool {
	switch t {
	case MutationAdd, MutationEdit, MutationDelete:
		return true
	}
	return false
}

// ApprovalStatus captures workflow states for approval requests.
type ApprovalStatus string

const (
	ApprovalStatusRequested ApprovalStatus = "requested"
	ApprovalStatusEdited    ApprovalStatus = "edited"
	ApprovalStatusReviewed  ApprovalStatus = "reviewed"
	ApprovalStatusApproved  ApprovalStatus = "approved"
	ApprovalStatusRejected  ApprovalStatus = "rejected"
)

// Terminal reports whether the status is a decision outcome.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// TargetKind identifies which protected entity kind an approval concerns.
// The declaration order (account, staff, student, parent) is the resolution
// order used when decoding the flattened wire representation.
type TargetKind string

const (
	TargetAccount TargetKind = "account"
	TargetStaff   TargetKind = "staff"
	TargetStudent TargetKind = "student"
	TargetParent  TargetKind = "parent"
)

// TargetKinds lists the protected entity kinds in resolution order.
var TargetKinds = []TargetKind{TargetAccount, TargetStaff, TargetStudent, TargetParent}

// TargetRef is a tagged reference to exactly one protected entity.
type TargetRef struct {
	Kind TargetKind
	ID   string
}

// Valid reports whether the reference names a known kind and a non-empty id.
func (r TargetRef) Valid() bool {
	if r.ID == "" {
		return false
	}
	switch r.Kind {
	case TargetAccount, TargetStaff, TargetStudent, TargetParent:
		return true
	}
	return false
}

// ApprovalRequest tracks one pending or decided change to a protected entity.
// The request never owns its target; it holds an id-only reference.
type ApprovalRequest struct {
	ID           string         `db:"id"`
	SeekedBy     string         `db:"seeked_by"`
	ApprovedBy   *string        `db:"approved_by"`
	RejectedBy   *string        `db:"rejected_by"`
	MutationType MutationType   `db:"mutation_type"`
	Status       ApprovalStatus `db:"status"`
	TargetKind   TargetKind     `db:"target_kind"`
	TargetID     string         `db:"target_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// NewApprovalRequest constructs an open request for the given actor, mutation
// and target. The target must reference exactly one protected entity.
func NewApprovalRequest(seekedBy string, mutation MutationType, target TargetRef) (*ApprovalRequest, error) {
	if seekedBy == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "seekedBy is required")
	}
	if !mutation.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mutation type must be add, edit, or delete")
	}
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target must reference exactly one protected entity")
	}
	return &ApprovalRequest{
		SeekedBy:     seekedBy,
		MutationType: mutation,
		Status:       ApprovalStatusRequested,
		TargetKind:   target.Kind,
		TargetID:     target.ID,
	}, nil
}

// Target returns the tagged target reference.
func (a *ApprovalRequest) Target() TargetRef {
	return TargetRef{Kind: a.TargetKind, ID: a.TargetID}
}

// approvalWire is the persisted JSON contract: the target is flattened into
// four nullable id fields, exactly one of which is non-null. Reports and audit
// tooling depend on this shape.
type approvalWire struct {
	ID           string         `json:"id"`
	SeekedBy     string         `json:"seekedBy"`
	ApprovedBy   *string        `json:"approvedBy"`
	RejectedBy   *string        `json:"rejectedBy"`
	MutationType MutationType   `json:"mutationType"`
	Status       ApprovalStatus `json:"status"`
	AccountID    *string        `json:"accountId"`
	StaffID      *string        `json:"staffId"`
	StudentID    *string        `json:"studentId"`
	ParentID     *string        `json:"parentId"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (a ApprovalRequest) wire() approvalWire {
	w := approvalWire{
		ID:           a.ID,
		SeekedBy:     a.SeekedBy,
		ApprovedBy:   a.ApprovedBy,
		RejectedBy:   a.RejectedBy,
		MutationType: a.MutationType,
		Status:       a.Status,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	id := a.TargetID
	switch a.TargetKind {
	case TargetAccount:
		w.AccountID = &id
	case TargetStaff:
		w.StaffID = &id
	case TargetStudent:
		w.StudentID = &id
	case TargetParent:
		w.ParentID = &id
	}
	return w
}

// MarshalJSON flattens the tagged target into the four nullable id fields.
func (a ApprovalRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.wire())
}

// UnmarshalJSON restores the tagged target from the flattened wire shape.
// When more than one id field is set, the first in resolution order wins.
func (a *ApprovalRequest) UnmarshalJSON(data []byte) error {
	var w approvalWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.ID = w.ID
	a.SeekedBy = w.SeekedBy
	a.ApprovedBy = w.ApprovedBy
	a.RejectedBy = w.RejectedBy
	a.MutationType = w.MutationType
	a.Status = w.Status
	a.CreatedAt = w.CreatedAt
	a.UpdatedAt = w.UpdatedAt
	a.TargetKind = ""
	a.TargetID = ""
	candidates := []struct {
		kind TargetKind
		id   *string
	}{
		{TargetAccount, w.AccountID},
		{TargetStaff, w.StaffID},
		{TargetStudent, w.StudentID},
		{TargetParent, w.ParentID},
	}
	for _, c := range candidates {
		if c.id != nil && *c.id != "" {
			a.TargetKind = c.kind
			a.TargetID = *c.id
			break
		}
	}
	return nil
}

// ApprovalDetail is an approval with requester and decider biodata resolved
// for display.
type ApprovalDetail struct {
	ApprovalRequest
	SeekedByName   *string `db:"seeked_by_name"`
	SeekedByEmail  *string `db:"seeked_by_email"`
	DecidedByName  *string `db:"decided_by_name"`
	DecidedByEmail *string `db:"decided_by_email"`
}

// MarshalJSON extends the wire shape with the resolved biodata fields.
func (d ApprovalDetail) MarshalJSON() ([]byte, error) {
	type detailWire struct {
		approvalWire
		SeekedByName   *string `json:"seekedByName,omitempty"`
		SeekedByEmail  *string `json:"seekedByEmail,omitempty"`
		DecidedByName  *string `json:"decidedByName,omitempty"`
		DecidedByEmail *string `json:"decidedByEmail,omitempty"`
	}
	return json.Marshal(detailWire{
		approvalWire:   d.wire(),
		SeekedByName:   d.SeekedByName,
		SeekedByEmail:  d.SeekedByEmail,
		DecidedByName:  d.DecidedByName,
		DecidedByEmail: d.DecidedByEmail,
	})
}

// ApprovalFilter constrains listing queries.
type ApprovalFilter struct {
	Status       []ApprovalStatus
	MutationType MutationType
	SeekedBy     string
	TargetKind   TargetKind
	TargetID     string
	Limit        int
	Offset       int
}
