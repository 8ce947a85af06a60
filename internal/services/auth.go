package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/ids"
	"github.com/harentsoaR/bloodbank-api/internal/models"
	"github.com/harentsoaR/bloodbank-api/internal/utils"
)

const invalidCredentials = "Invalid username or password"

// Login checks credentials for the given role.
func (s *Service) Login(ctx context.Context, username, password string, role models.Role) (models.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Identity{}, errs.Validation("Username and password are required")
	}
	if !role.Valid() || role == models.RoleGuest {
		return models.Identity{}, errs.Validation("Please choose a valid role")
	}

	u, err := s.store.Users.FindOne(ctx, func(u models.User) bool {
		return strings.EqualFold(u.Username, username)
	})
	if errors.Is(err, collections.ErrNoMatch) {
		s.audit(ctx, "LOGIN", username, "unknown user", false)
		return models.Identity{}, errs.Rejected(invalidCredentials)
	}
	if err != nil {
		return models.Identity{}, errs.Internal("Login failed", err)
	}
	if u.Role != role || !utils.PasswordMatches(u.PasswordHash, password) {
		s.audit(ctx, "LOGIN", u.Username, "bad credentials", false)
		return models.Identity{}, errs.Rejected(invalidCredentials)
	}
	if u.Status == models.StatusBlocked {
		s.audit(ctx, "LOGIN", u.Username, "account blocked", false)
		return models.Identity{}, errs.Rejected("Your account has been blocked. Please contact the administrator.")
	}

	s.audit(ctx, "LOGIN", u.Username, string(u.Role), true)
	return u.Identity(), nil
}

// SendOTP issues a signup code for email. The code is returned only when
// debug codes are enabled.
func (s *Service) SendOTP(ctx context.Context, email string) (string, error) {
	email, err := validEmail(email)
	if err != nil {
		return "", err
	}
	taken, err := s.emailTaken(ctx, email)
	if err != nil {
		return "", err
	}
	if taken {
		return "", errs.Rejected("An account with this email already exists")
	}

	code, err := s.otp.Issue(email)
	if err != nil {
		return "", err
	}
	s.notifier.SendSignupCode(email, code)
	s.log.Info("signup code issued", zap.String("email", email))

	if s.debug {
		return code, nil
	}
	return "", nil
}

func (s *Service) VerifyOTP(_ context.Context, email, code string) error {
	email, err := validEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if len(code) != OTPLength {
		return errs.Validation("The verification code must have %d digits", OTPLength)
	}
	return s.otp.Verify(email, code)
}

// Register creates the account for an email that passed VerifyOTP.
func (s *Service) Register(ctx context.Context, reg models.Registration) (models.Identity, error) {
	email, err := validEmail(reg.Email)
	if err != nil {
		return models.Identity{}, err
	}
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Name = strings.TrimSpace(reg.Name)
	switch {
	case reg.Role != models.RoleUser && reg.Role != models.RoleDonor:
		return models.Identity{}, errs.Validation("Please register as a donor or a recipient")
	case reg.Name == "":
		return models.Identity{}, errs.Validation("Full name is required")
	case reg.Username == "":
		return models.Identity{}, errs.Validation("Username is required")
	case reg.Password == "":
		return models.Identity{}, errs.Validation("Password is required")
	case len(reg.Password) > utils.MaxPasswordBytes:
		return models.Identity{}, errs.Validation("Password must be at most %d bytes", utils.MaxPasswordBytes)
	case reg.BloodType != "" && !models.ValidBloodType(reg.BloodType):
		return models.Identity{}, errs.Validation("Unknown blood type %q", reg.BloodType)
	}
	if !s.otp.Verified(email) {
		return models.Identity{}, errs.Rejected("Please verify your email before creating an account")
	}

	hash, err := utils.HashPassword(reg.Password)
	if err != nil {
		return models.Identity{}, errs.Internal("Failed to secure password", err)
	}
	user := models.User{
		ID:           ids.New(),
		Username:     reg.Username,
		PasswordHash: hash,
		Role:         reg.Role,
		Name:         reg.Name,
		Email:        email,
		Phone:        strings.TrimSpace(reg.Phone),
		BloodType:    reg.BloodType,
		Location:     strings.TrimSpace(reg.Location),
		Verified:     true,
		Status:       models.StatusActive,
		CreatedAt:    s.now().UTC(),
	}

	err = s.store.Users.Mutate(ctx, func(all []models.User) ([]models.User, error) {
		for _, u := range all {
			if strings.EqualFold(u.Username, user.Username) {
				return nil, errs.Rejected("Username is already taken")
			}
			if u.Email == email {
				return nil, errs.Rejected("An account with this email already exists")
			}
		}
		return append(all, user), nil
	})
	if err != nil {
		return models.Identity{}, storeErr("Failed to create account", err)
	}

	s.otp.Consume(email)
	s.audit(ctx, "REGISTER", user.Username, string(user.Role), true)
	s.publish(ctx, broadcast.EventUsersUpdated, user.Identity())
	return user.Identity(), nil
}

func (s *Service) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.store.Users.FindOne(ctx, func(u models.User) bool { return u.Email == email })
	if errors.Is(err, collections.ErrNoMatch) {
		return false, nil
	}
	if err != nil {
		return false, errs.Internal("Failed to check email", fmt.Errorf("lookup email: %w", err))
	}
	return true, nil
}

func validEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", errs.Validation("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errs.Validation("Please enter a valid email address")
	}
	return email, nil
}
