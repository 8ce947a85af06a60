package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// Notifier delivers messages to people outside the dashboard.
type Notifier interface {
	SendSignupCode(email, code string)
	SendAppointmentConfirmation(donor models.Identity, apt models.Appointment)
}

type notification struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NotificationService posts notifications to a webhook. With no webhook
// configured it only logs them.
type NotificationService struct {
	client *resty.Client
	log    *zap.Logger
	sent   func(notification, error)
}

func NewNotificationService(webhookURL string, log *zap.Logger) *NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &NotificationService{log: log}
	if webhookURL != "" {
		s.client = resty.New().
			SetBaseURL(webhookURL).
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	}
	return s
}

func (s *NotificationService) SendSignupCode(email, code string) {
	s.dispatch(notification{
		Kind:    "signup_code",
		To:      email,
		Code:    code,
		Message: fmt.Sprintf("Your blood bank verification code is %s.", code),
	})
}

func (s *NotificationService) SendAppointmentConfirmation(donor models.Identity, apt models.Appointment) {
	to := donor.Phone
	if to == "" {
		to = donor.Email
	}
	if to == "" {
		s.log.Info("appointment notification not sent: donor has no contact", zap.String("donor_id", donor.ID))
		return
	}
	s.dispatch(notification{
		Kind: "appointment",
		To:   to,
		Message: fmt.Sprintf("Donation appointment %s: %s at %s on %s.",
			apt.Status, donor.Name, apt.HospitalName, apt.Date.Format("Jan 2 at 3:04 PM")),
	})
}

// dispatch sends in a goroutine so it never blocks the API response.
func (s *NotificationService) dispatch(n notification) {
	if s.client == nil {
		s.log.Info("notification (no webhook configured)",
			zap.String("kind", n.Kind), zap.String("to", n.To))
		if s.sent != nil {
			s.sent(n, nil)
		}
		return
	}
	go func() {
		err := s.post(n)
		if s.sent != nil {
			s.sent(n, err)
		}
	}()
}

func (s *NotificationService) post(n notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(n).
		SetResult(&result).
		Post("")
	if err != nil {
		s.log.Error("notification webhook call failed", zap.String("to", n.To), zap.Error(err))
		return err
	}
	if resp.IsError() || !result.Success {
		s.log.Error("notification webhook rejected message",
			zap.String("to", n.To),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("reason", result.Error))
		return fmt.Errorf("webhook rejected notification: %s", result.Error)
	}
	s.log.Info("notification delivered", zap.String("kind", n.Kind), zap.String("to", n.To))
	return nil
}
