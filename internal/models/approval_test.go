package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewApprovalRequest(t *testing.T) {
	approval, err := NewApprovalRequest("admin-1", MutationEdit, TargetRef{Kind: TargetStudent, ID: "student-1"})
	require.NoError(t, err)
	require.Equal(t, ApprovalStatusRequested, approval.Status)
	require.Equal(t, MutationEdit, approval.MutationType)
	require.Equal(t, TargetStudent, approval.TargetKind)
	require.Equal(t, "student-1", approval.TargetID)

	_, err = NewApprovalRequest("", MutationAdd, TargetRef{Kind: TargetStaff, ID: "staff-1"})
	require.Error(t, err)

	_, err = NewApprovalRequest("admin-1", MutationType("rename"), TargetRef{Kind: TargetStaff, ID: "staff-1"})
	require.Error(t, err)

	_, err = NewApprovalRequest("admin-1", MutationAdd, TargetRef{Kind: "classroom", ID: "class-1"})
	require.Error(t, err)

	_, err = NewApprovalRequest("admin-1", MutationAdd, TargetRef{Kind: TargetParent})
	require.Error(t, err)
}

func TestApprovalRequestMarshalFlattensTarget(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	approval := ApprovalRequest{
		ID:           "apr-1",
		SeekedBy:     "admin-1",
		MutationType: MutationAdd,
		Status:       ApprovalStatusRequested,
		TargetKind:   TargetStaff,
		TargetID:     "staff-7",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	raw, err := json.Marshal(approval)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &wire))
	require.JSONEq(t, `"staff-7"`, string(wire["staffId"]))
	require.JSONEq(t, `null`, string(wire["accountId"]))
	require.JSONEq(t, `null`, string(wire["studentId"]))
	require.JSONEq(t, `null`, string(wire["parentId"]))
	require.JSONEq(t, `null`, string(wire["approvedBy"]))
	require.JSONEq(t, `null`, string(wire["rejectedBy"]))
}

func TestApprovalRequestUnmarshalRestoresTarget(t *testing.T) {
	payload := `{
		"id": "apr-2",
		"seekedBy": "admin-1",
		"approvedBy": null,
		"rejectedBy": null,
		"mutationType": "delete",
		"status": "requested",
		"accountId": null,
		"staffId": null,
		"studentId": "student-3",
		"parentId": null,
		"createdAt": "2026-03-01T09:00:00Z",
		"updatedAt": "2026-03-01T09:00:00Z"
	}`

	var approval ApprovalRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &approval))
	require.Equal(t, TargetStudent, approval.TargetKind)
	require.Equal(t, "student-3", approval.TargetID)
	require.Equal(t, MutationDelete, approval.MutationType)
}

func TestApprovalRequestUnmarshalFirstMatchWins(t *testing.T) {
	// Legacy rows occasionally carry more than one id. Resolution order is
	// account, staff, student, parent.
	payload := `{
		"id": "apr-3",
		"seekedBy": "admin-1",
		"mutationType": "edit",
		"status": "requested",
		"staffId": "staff-1",
		"parentId": "parent-1"
	}`

	var approval ApprovalRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &approval))
	require.Equal(t, TargetStaff, approval.TargetKind)
	require.Equal(t, "staff-1", approval.TargetID)
}

func TestApprovalRequestJSONRoundTrip(t *testing.T) {
	reviewer := "super-1"
	original := ApprovalRequest{
		ID:           "apr-4",
		SeekedBy:     "admin-2",
		ApprovedBy:   &reviewer,
		MutationType: MutationEdit,
		Status:       ApprovalStatusApproved,
		TargetKind:   TargetParent,
		TargetID:     "parent-9",
		CreatedAt:    time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ApprovalRequest
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, original, decoded)
}

func TestApprovalStatusTerminal(t *testing.T) {
	require.True(t, ApprovalStatusApproved.Terminal())
	require.True(t, ApprovalStatusRejected.Terminal())
	require.False(t, ApprovalStatusRequested.Terminal())
	require.False(t, ApprovalStatusEdited.Terminal())
	require.False(t, ApprovalStatusReviewed.Terminal())
}

func TestApprovalDetailMarshal(t *testing.T) {
	name := "Siti Admin"
	email := "siti@example.sch.id"
	detail := ApprovalDetail{
		ApprovalRequest: ApprovalRequest{
			ID:           "apr-5",
			SeekedBy:     "admin-3",
			MutationType: MutationAdd,
			Status:       ApprovalStatusRequested,
			TargetKind:   TargetAccount,
			TargetID:     "acc-2",
		},
		SeekedByName:  &name,
		SeekedByEmail: &email,
	}

	raw, err := json.Marshal(detail)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &wire))
	require.JSONEq(t, `"acc-2"`, string(wire["accountId"]))
	require.JSONEq(t, `"Siti Admin"`, string(wire["seekedByName"]))
	_, hasDecider := wire["decidedByName"]
	require.False(t, hasDecider)
}
