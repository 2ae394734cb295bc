package domain

import (
	"encoding/json"
	"time"
)

// AuditLog is an audit trail entry written alongside every decision
type AuditLog struct {
	ID           string
	UserID       string // Who performed the action
	UserRole     Role
	Action       AuditAction
	ResourceType string // account, transaction or transfer
	ResourceID   string
	BeforeState  JSON
	AfterState   JSON
	Status       AuditStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionAccountOpen       AuditAction = "account.open"
	AuditActionAccountDecide     AuditAction = "account.decide"
	AuditActionTransactionDecide AuditAction = "transaction.decide"
	AuditActionTransferDecide    AuditAction = "transfer.decide"
	AuditActionTransferFault     AuditAction = "transfer.fault"
	AuditActionTransferClear     AuditAction = "transfer.clear_fault"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// NewAuditLog fills the actor fields from the request identity.
func NewAuditLog(id string, identity Identity, action AuditAction, resourceType, resourceID string, before, after any, at time.Time) *AuditLog {
	return &AuditLog{
		ID:           id,
		UserID:       identity.UserID,
		UserRole:     identity.Role,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  MarshalState(before),
		AfterState:   MarshalState(after),
		Status:       AuditStatusSuccess,
		CreatedAt:    at,
	}
}

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	// Transfers are audited as both legs at once.
	if obj, ok := decoded.(map[string]any); ok {
		return obj
	}
	return JSON{"items": decoded}
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	UserID       string
	Action       AuditAction
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
