package api

import (
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// Action names accepted in the ?action= query parameter.
const (
	ActionLogin               = "login"
	ActionSendOTP             = "send_otp"
	ActionVerifyOTP           = "verify_otp"
	ActionRegister            = "register"
	ActionMe                  = "me"
	ActionListUsers           = "list_users"
	ActionToggleUserStatus    = "toggle_user_status"
	ActionDeleteUser          = "delete_user"
	ActionUpdateProfile       = "update_profile"
	ActionListRequests        = "list_requests"
	ActionCreateRequest       = "create_request"
	ActionUpdateRequestStatus = "update_request_status"
	ActionListStocks          = "list_stocks"
	ActionUpdateStock         = "update_stock"
	ActionListHospitals       = "list_hospitals"
	ActionAddHospital         = "add_hospital"
	ActionDeleteHospital      = "delete_hospital"
	ActionListFeedback        = "list_feedback"
	ActionAddFeedback         = "add_feedback"
	ActionReplyFeedback       = "reply_feedback"
	ActionListLogs            = "list_logs"
	ActionListChats           = "list_chats"
	ActionSendMessage         = "send_message"
	ActionListAppointments    = "list_appointments"
	ActionBookAppointment     = "book_appointment"
	ActionCancelAppointment   = "cancel_appointment"
	ActionListCertificates    = "list_certificates"
	ActionIssueEmergencyKey   = "issue_emergency_key"
	ActionRedeemEmergencyKey  = "redeem_emergency_key"
)

// DateLayout is the format of the from/to appointment filters.
const DateLayout = "2006-01-02"

// Params are sent as query parameters on GET actions.
type Params map[string]string

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type LoginRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// AuthResponse answers login and register.
type AuthResponse struct {
	Token string          `json:"token"`
	User  models.Identity `json:"user"`
}

type OTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

type OTPResponse struct {
	Success   bool   `json:"success"`
	DebugCode string `json:"debugCode,omitempty"`
}

type UserRef struct {
	UserID string `json:"userId"`
}

type UserResponse struct {
	User models.Identity `json:"user"`
}

type UsersResponse struct {
	Users []models.Identity `json:"users"`
}

type StatusUpdate struct {
	RequestID string               `json:"requestId"`
	Status    models.RequestStatus `json:"status"`
}

type RequestResponse struct {
	Request models.BloodRequest `json:"request"`
}

type RequestsResponse struct {
	Requests []models.BloodRequest `json:"requests"`
}

type StockUpdate struct {
	BloodType string `json:"bloodType"`
	Units     int    `json:"units"`
}

type StockResponse struct {
	Stock models.BloodStock `json:"stock"`
}

type StocksResponse struct {
	Stocks []models.BloodStock `json:"stocks"`
}

type HospitalRef struct {
	HospitalID string `json:"hospitalId"`
}

type HospitalResponse struct {
	Hospital models.Hospital `json:"hospital"`
}

type HospitalsResponse struct {
	Hospitals []models.Hospital `json:"hospitals"`
}

type NewFeedback struct {
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

type FeedbackReply struct {
	FeedbackID string `json:"feedbackId"`
	Reply      string `json:"reply"`
}

type FeedbackResponse struct {
	Feedback models.Feedback `json:"feedback"`
}

type FeedbackListResponse struct {
	Feedback []models.Feedback `json:"feedback"`
}

type LogsResponse struct {
	Logs []models.SecurityLog `json:"logs"`
}

type NewMessage struct {
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

type MessageResponse struct {
	Message models.ChatMessage `json:"message"`
}

type MessagesResponse struct {
	Messages []models.ChatMessage `json:"messages"`
}

type NewAppointment struct {
	HospitalID string    `json:"hospitalId"`
	Date       time.Time `json:"date"`
}

type AppointmentRef struct {
	AppointmentID string `json:"appointmentId"`
}

type AppointmentResponse struct {
	Appointment models.Appointment `json:"appointment"`
}

type AppointmentsResponse struct {
	Appointments []models.Appointment `json:"appointments"`
}

type CertificatesResponse struct {
	Certificates []models.Certificate `json:"certificates"`
}

type EmergencyKeyRequest struct {
	BloodType string `json:"bloodType,omitempty"`
	Code      string `json:"code,omitempty"`
}

type EmergencyKeyResponse struct {
	Key models.EmergencyKey `json:"key"`
}
