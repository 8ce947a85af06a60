package api

import (
	"context"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string, role models.Role) (models.Identity, error) {
	var resp AuthResponse
	if err := c.post(ctx, ActionLogin, LoginRequest{Username: username, Password: password, Role: role}, &resp); err != nil {
		return models.Identity{}, err
	}
	c.SetToken(resp.Token)
	return resp.User, nil
}

// Logout forgets the token. Tokens are stateless so nothing is sent.
func (c *Client) Logout(ctx context.Context) error {
	c.SetToken("")
	return nil
}

// SendOTP returns the debug code when the endpoint exposes one.
func (c *Client) SendOTP(ctx context.Context, email string) (string, error) {
	var resp OTPResponse
	if err := c.post(ctx, ActionSendOTP, OTPRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	return resp.DebugCode, nil
}

func (c *Client) VerifyOTP(ctx context.Context, email, code string) error {
	return c.post(ctx, ActionVerifyOTP, OTPRequest{Email: email, Code: code}, nil)
}

// Register creates the account and signs in as it.
func (c *Client) Register(ctx context.Context, reg models.Registration) (models.Identity, error) {
	var resp AuthResponse
	if err := c.post(ctx, ActionRegister, reg, &resp); err != nil {
		return models.Identity{}, err
	}
	c.SetToken(resp.Token)
	return resp.User, nil
}

func (c *Client) Me(ctx context.Context) (models.Identity, error) {
	var resp UserResponse
	err := c.get(ctx, ActionMe, nil, &resp)
	return resp.User, err
}

func (c *Client) ListUsers(ctx context.Context) ([]models.Identity, error) {
	var resp UsersResponse
	err := c.get(ctx, ActionListUsers, nil, &resp)
	return resp.Users, err
}

func (c *Client) ToggleUserStatus(ctx context.Context, userID string) (models.Identity, error) {
	var resp UserResponse
	err := c.post(ctx, ActionToggleUserStatus, UserRef{UserID: userID}, &resp)
	return resp.User, err
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.post(ctx, ActionDeleteUser, UserRef{UserID: userID}, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, patch models.ProfileUpdate) (models.Identity, error) {
	var resp UserResponse
	err := c.post(ctx, ActionUpdateProfile, patch, &resp)
	return resp.User, err
}

// ListRequests filters by status unless it is empty.
func (c *Client) ListRequests(ctx context.Context, status models.RequestStatus) ([]models.BloodRequest, error) {
	var params Params
	if status != "" {
		params = Params{"status": string(status)}
	}
	var resp RequestsResponse
	err := c.get(ctx, ActionListRequests, params, &resp)
	return resp.Requests, err
}

func (c *Client) CreateRequest(ctx context.Context, in models.NewRequest) (models.BloodRequest, error) {
	var resp RequestResponse
	err := c.post(ctx, ActionCreateRequest, in, &resp)
	return resp.Request, err
}

func (c *Client) UpdateRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) (models.BloodRequest, error) {
	var resp RequestResponse
	err := c.post(ctx, ActionUpdateRequestStatus, StatusUpdate{RequestID: requestID, Status: status}, &resp)
	return resp.Request, err
}

func (c *Client) ListStocks(ctx context.Context) ([]models.BloodStock, error) {
	var resp StocksResponse
	err := c.get(ctx, ActionListStocks, nil, &resp)
	return resp.Stocks, err
}

func (c *Client) UpdateStock(ctx context.Context, bloodType string, units int) (models.BloodStock, error) {
	var resp StockResponse
	err := c.post(ctx, ActionUpdateStock, StockUpdate{BloodType: bloodType, Units: units}, &resp)
	return resp.Stock, err
}

func (c *Client) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	var resp HospitalsResponse
	err := c.get(ctx, ActionListHospitals, nil, &resp)
	return resp.Hospitals, err
}

func (c *Client) AddHospital(ctx context.Context, h models.Hospital) (models.Hospital, error) {
	var resp HospitalResponse
	err := c.post(ctx, ActionAddHospital, h, &resp)
	return resp.Hospital, err
}

func (c *Client) DeleteHospital(ctx context.Context, hospitalID string) error {
	return c.post(ctx, ActionDeleteHospital, HospitalRef{HospitalID: hospitalID}, nil)
}

func (c *Client) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	var resp FeedbackListResponse
	err := c.get(ctx, ActionListFeedback, nil, &resp)
	return resp.Feedback, err
}

func (c *Client) AddFeedback(ctx context.Context, message string, rating int) (models.Feedback, error) {
	var resp FeedbackResponse
	err := c.post(ctx, ActionAddFeedback, NewFeedback{Message: message, Rating: rating}, &resp)
	return resp.Feedback, err
}

func (c *Client) ReplyFeedback(ctx context.Context, feedbackID, reply string) (models.Feedback, error) {
	var resp FeedbackResponse
	err := c.post(ctx, ActionReplyFeedback, FeedbackReply{FeedbackID: feedbackID, Reply: reply}, &resp)
	return resp.Feedback, err
}

func (c *Client) ListLogs(ctx context.Context) ([]models.SecurityLog, error) {
	var resp LogsResponse
	err := c.get(ctx, ActionListLogs, nil, &resp)
	return resp.Logs, err
}

// ListChats returns the caller's messages, only those with peerID when set.
func (c *Client) ListChats(ctx context.Context, peerID string) ([]models.ChatMessage, error) {
	var params Params
	if peerID != "" {
		params = Params{"peerId": peerID}
	}
	var resp MessagesResponse
	err := c.get(ctx, ActionListChats, params, &resp)
	return resp.Messages, err
}

func (c *Client) SendMessage(ctx context.Context, receiverID, text string) (models.ChatMessage, error) {
	var resp MessageResponse
	err := c.post(ctx, ActionSendMessage, NewMessage{ReceiverID: receiverID, Text: text}, &resp)
	return resp.Message, err
}

// ListAppointments filters by day range and status; zero values are
// omitted.
func (c *Client) ListAppointments(ctx context.Context, from, to time.Time, status models.AppointmentStatus) ([]models.Appointment, error) {
	params := Params{}
	if !from.IsZero() {
		params["startDate"] = from.Format(DateLayout)
	}
	if !to.IsZero() {
		params["endDate"] = to.Format(DateLayout)
	}
	if status != "" {
		params["status"] = string(status)
	}
	var resp AppointmentsResponse
	err := c.get(ctx, ActionListAppointments, params, &resp)
	return resp.Appointments, err
}

func (c *Client) BookAppointment(ctx context.Context, hospitalID string, date time.Time) (models.Appointment, error) {
	var resp AppointmentResponse
	err := c.post(ctx, ActionBookAppointment, NewAppointment{HospitalID: hospitalID, Date: date}, &resp)
	return resp.Appointment, err
}

func (c *Client) CancelAppointment(ctx context.Context, appointmentID string) (models.Appointment, error) {
	var resp AppointmentResponse
	err := c.post(ctx, ActionCancelAppointment, AppointmentRef{AppointmentID: appointmentID}, &resp)
	return resp.Appointment, err
}

func (c *Client) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	var resp CertificatesResponse
	err := c.get(ctx, ActionListCertificates, nil, &resp)
	return resp.Certificates, err
}

func (c *Client) IssueEmergencyKey(ctx context.Context, bloodType string) (models.EmergencyKey, error) {
	var resp EmergencyKeyResponse
	err := c.post(ctx, ActionIssueEmergencyKey, EmergencyKeyRequest{BloodType: bloodType}, &resp)
	return resp.Key, err
}

// RedeemEmergencyKey spends a key and returns the critical request it filed.
func (c *Client) RedeemEmergencyKey(ctx context.Context, code string) (models.BloodRequest, error) {
	var resp RequestResponse
	err := c.post(ctx, ActionRedeemEmergencyKey, EmergencyKeyRequest{Code: code}, &resp)
	return resp.Request, err
}
