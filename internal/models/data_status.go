package models

// DataStatus is the lifecycle state a protected entity carries independently
// of any approval request that references it. A freshly submitted record is
// "requested"; "reviewed" marks a soft-deleted record awaiting a delete
// decision.
type DataStatus string

const (
	DataStatusRequested DataStatus = "requested"
	DataStatusEdited    DataStatus = "edited"
	DataStatusApproved  DataStatus = "approved"
	DataStatusRejected  DataStatus = "rejected"
	DataStatusReviewed  DataStatus = "reviewed"
)
