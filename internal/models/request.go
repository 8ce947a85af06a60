package models

import "time"

type RequestKind string

const (
	KindDonation RequestKind = "DONATION"
	KindBlood    RequestKind = "BLOOD"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "Pending"
	RequestApproved  RequestStatus = "Approved"
	RequestCompleted RequestStatus = "Completed"
	RequestRejected  RequestStatus = "Rejected"
)

// CanMoveTo reports whether an admin may move a request from s to next.
func (s RequestStatus) CanMoveTo(next RequestStatus) bool {
	switch s {
	case RequestPending:
		return next == RequestApproved || next == RequestRejected
	case RequestApproved:
		return next == RequestCompleted || next == RequestRejected
	}
	return false
}

type Urgency string

const (
	UrgencyNormal   Urgency = "Normal"
	UrgencyHigh     Urgency = "High"
	UrgencyCritical Urgency = "Critical"
)

// ParseUrgency accepts both label sets used by the dashboard.
func ParseUrgency(s string) (Urgency, bool) {
	switch s {
	case "", "Normal", "Low":
		return UrgencyNormal, true
	case "High", "Medium":
		return UrgencyHigh, true
	case "Critical":
		return UrgencyCritical, true
	}
	return "", false
}

// Requester is the snapshot of the identity that filed a request.
type Requester struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type BloodRequest struct {
	ID        string        `json:"id"`
	Kind      RequestKind   `json:"kind"`
	Requester Requester     `json:"requester"`
	BloodType string        `json:"bloodType"`
	Units     int           `json:"units"`
	Status    RequestStatus `json:"status"`
	Urgency   Urgency       `json:"urgency"`
	Hospital  string        `json:"hospital,omitempty"`
	Location  string        `json:"location,omitempty"`
	Date      time.Time     `json:"date"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// NewRequest is the client payload for create_request.
type NewRequest struct {
	BloodType string `json:"bloodType"`
	Units     int    `json:"units"`
	Urgency   string `json:"urgency"`
	Hospital  string `json:"hospital,omitempty"`
	Location  string `json:"location,omitempty"`
}
