package models

import "time"

// BloodTypes lists every group tracked in stock.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func ValidBloodType(t string) bool {
	for _, bt := range BloodTypes {
		if bt == t {
			return true
		}
	}
	return false
}

type Hospital struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type BloodStock struct {
	ID        string    `json:"id"`
	BloodType string    `json:"bloodType"`
	Units     int       `json:"units"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Feedback struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	UserName  string     `json:"userName"`
	Message   string     `json:"message"`
	Rating    int        `json:"rating"`
	Reply     string     `json:"reply,omitempty"`
	RepliedAt *time.Time `json:"repliedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type SecurityLog struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "Scheduled"
	AppointmentCompleted AppointmentStatus = "Completed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
)

type Appointment struct {
	ID           string            `json:"id"`
	DonorID      string            `json:"donorId"`
	DonorName    string            `json:"donorName"`
	HospitalID   string            `json:"hospitalId"`
	HospitalName string            `json:"hospitalName"`
	Date         time.Time         `json:"date"`
	Status       AppointmentStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type Certificate struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	DonorID   string    `json:"donorId"`
	DonorName string    `json:"donorName"`
	RequestID string    `json:"requestId"`
	BloodType string    `json:"bloodType"`
	IssuedAt  time.Time `json:"issuedAt"`
}

type EmergencyKey struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	IssuedTo  string     `json:"issuedTo"`
	BloodType string     `json:"bloodType"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
	Read       bool      `json:"read"`
}
