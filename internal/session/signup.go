package session

import (
	"context"
	"net/mail"
	"strings"

	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// CodeLength is the length of the emailed verification code.
const CodeLength = 6

type Step string

const (
	StepEmail   Step = "email"
	StepOTP     Step = "otp"
	StepDetails Step = "details"
)

// Details is the profile entered in the last signup step.
type Details struct {
	Role            models.Role
	Name            string
	Username        string
	Password        string
	ConfirmPassword string
	Phone           string
	BloodType       string
	Location        string
}

// Signup walks email -> otp -> details. It shares its controller's lock and
// stops working once the controller logs out or starts another signup.
type Signup struct {
	c         *Controller
	step      Step
	email     string
	code      string
	debugCode string
}

func (s *Signup) Step() Step {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.step
}

func (s *Signup) Email() string {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.email
}

// DebugCode is the code echoed by a non-production backend, or "".
func (s *Signup) DebugCode() string {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.debugCode
}

// RequestCode asks the backend to email a code. It is also how a code is
// resent while in StepOTP.
func (s *Signup) RequestCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	s.c.mu.Lock()
	if err := s.usable(StepEmail, StepOTP); err != nil {
		s.c.mu.Unlock()
		return err
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		s.c.mu.Unlock()
		return s.fail(errs.Validation("Please enter a valid email address"))
	}
	s.c.mu.Unlock()

	debugCode, err := s.c.backend.SendOTP(ctx, email)

	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if !s.current() {
		return ErrStale
	}
	if err != nil {
		s.c.lastErr = errs.Message(err)
		return err
	}
	s.email = email
	s.code = ""
	s.debugCode = debugCode
	s.step = StepOTP
	s.c.lastErr = ""
	return nil
}

// VerifyCode checks the code for the requested email. A wrong code keeps
// the flow in StepOTP.
func (s *Signup) VerifyCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	s.c.mu.Lock()
	if err := s.usable(StepOTP); err != nil {
		s.c.mu.Unlock()
		return err
	}
	if len(code) != CodeLength {
		s.c.mu.Unlock()
		return s.fail(errs.Validation("Please enter the %d-digit code", CodeLength))
	}
	email := s.email
	s.c.mu.Unlock()

	err := s.c.backend.VerifyOTP(ctx, email, code)

	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if !s.current() {
		return ErrStale
	}
	if err != nil {
		s.c.lastErr = errs.Message(err)
		return err
	}
	s.code = code
	s.step = StepDetails
	s.c.lastErr = ""
	return nil
}

// Complete registers the account. On success the controller is signed in
// as it and the signup ends.
func (s *Signup) Complete(ctx context.Context, d Details) error {
	s.c.mu.Lock()
	if err := s.usable(StepDetails); err != nil {
		s.c.mu.Unlock()
		return err
	}
	if err := validateDetails(&d); err != nil {
		s.c.mu.Unlock()
		return s.fail(err)
	}
	reg := models.Registration{
		Email:     s.email,
		Role:      d.Role,
		Name:      d.Name,
		Username:  d.Username,
		Password:  d.Password,
		Phone:     d.Phone,
		BloodType: d.BloodType,
		Location:  d.Location,
	}
	epoch := s.c.epoch
	s.c.mu.Unlock()

	id, err := s.c.backend.Register(ctx, reg)

	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if !s.current() || s.c.epoch != epoch {
		return ErrStale
	}
	if err != nil {
		s.c.lastErr = errs.Message(err)
		return err
	}
	s.c.signIn(id)
	return nil
}

// Back moves one step toward StepEmail. An issued code stays valid. A
// signup that has ended is left as is.
func (s *Signup) Back() Step {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if !s.current() {
		return s.step
	}
	switch s.step {
	case StepDetails:
		s.step = StepOTP
	case StepOTP:
		s.step = StepEmail
	}
	s.c.lastErr = ""
	return s.step
}

// usable must be called with the controller lock held.
func (s *Signup) usable(allowed ...Step) error {
	if !s.current() {
		return ErrStale
	}
	for _, st := range allowed {
		if s.step == st {
			return nil
		}
	}
	return s.fail(errs.Validation("This step is not available right now"))
}

func (s *Signup) current() bool {
	return s.c.signup == s
}

// fail records err as the controller's last error; lock held.
func (s *Signup) fail(err *errs.Error) error {
	s.c.lastErr = err.Message
	return err
}

func validateDetails(d *Details) *errs.Error {
	d.Name = strings.TrimSpace(d.Name)
	d.Username = strings.TrimSpace(d.Username)
	switch {
	case d.Role != models.RoleUser && d.Role != models.RoleDonor:
		return errs.Validation("Please choose to register as a donor or a recipient")
	case d.Name == "":
		return errs.Validation("Full name is required")
	case d.Username == "":
		return errs.Validation("Username is required")
	case d.Password == "":
		return errs.Validation("Password is required")
	case d.ConfirmPassword != "" && d.Password != d.ConfirmPassword:
		return errs.Validation("Passwords do not match")
	}
	return nil
}
