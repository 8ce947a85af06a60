package services

import (
	"context"
	"strings"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

func (s *ServiceSuite) register(email string) (models.Identity, error) {
	code, err := s.svc.SendOTP(s.ctx, email)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.VerifyOTP(s.ctx, email, code))
	return s.svc.Register(s.ctx, models.Registration{
		Email: email, Role: models.RoleDonor, Name: "A", Username: "a", Password: "p",
	})
}

func (s *ServiceSuite) TestSignupFlow() {
	s.otp.generate = func() (string, error) { return "123456", nil }

	code, err := s.svc.SendOTP(s.ctx, "a@b.com")
	s.Require().NoError(err)
	s.Equal("123456", code)
	s.Equal("123456", s.notifier.codes["a@b.com"])

	s.Require().NoError(s.svc.VerifyOTP(s.ctx, "a@b.com", "123456"))

	id, err := s.svc.Register(s.ctx, models.Registration{
		Email: "a@b.com", Role: models.RoleDonor, Name: "A", Username: "a", Password: "p",
	})
	s.Require().NoError(err)
	s.Equal(models.RoleDonor, id.Role)
	s.True(id.Verified)
	s.Equal(models.StatusActive, id.Status)

	logged, err := s.svc.Login(s.ctx, "a", "p", models.RoleDonor)
	s.Require().NoError(err)
	s.Equal(id.ID, logged.ID)

	s.False(s.otp.Verified("a@b.com"), "code is consumed by registration")
}

func (s *ServiceSuite) TestDebugCodeHiddenWhenDisabled() {
	s.svc.debug = false
	code, err := s.svc.SendOTP(s.ctx, "quiet@b.com")
	s.Require().NoError(err)
	s.Empty(code)
	s.Len(s.notifier.codes["quiet@b.com"], OTPLength)
}

func (s *ServiceSuite) TestWrongCodeCreatesNoAccount() {
	s.otp.generate = func() (string, error) { return "123456", nil }
	_, err := s.svc.SendOTP(s.ctx, "a@b.com")
	s.Require().NoError(err)

	err = s.svc.VerifyOTP(s.ctx, "a@b.com", "654321")
	s.Require().ErrorIs(err, errs.ErrRejected)
	s.Equal("Invalid verification code", errs.Message(err))

	_, err = s.svc.Register(s.ctx, models.Registration{
		Email: "a@b.com", Role: models.RoleDonor, Name: "A", Username: "a", Password: "p",
	})
	s.ErrorIs(err, errs.ErrRejected)

	users, err := s.store.Users.List(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 3)
}

func (s *ServiceSuite) TestOTPInputValidation() {
	_, err := s.svc.SendOTP(s.ctx, "not-an-email")
	s.ErrorIs(err, errs.ErrValidation)

	_, err = s.svc.SendOTP(s.ctx, "john@bloodbank.local")
	s.ErrorIs(err, errs.ErrRejected, "email already registered")

	err = s.svc.VerifyOTP(s.ctx, "a@b.com", "123")
	s.ErrorIs(err, errs.ErrValidation)

	err = s.svc.VerifyOTP(s.ctx, "never@b.com", "123456")
	s.ErrorIs(err, errs.ErrRejected)
}

func (s *ServiceSuite) TestRegisterValidation() {
	base := models.Registration{Email: "v@b.com", Role: models.RoleUser, Name: "V", Username: "v", Password: "p"}
	cases := map[string]func(r *models.Registration){
		"admin role":     func(r *models.Registration) { r.Role = models.RoleAdmin },
		"empty name":     func(r *models.Registration) { r.Name = " " },
		"empty username": func(r *models.Registration) { r.Username = "" },
		"empty password": func(r *models.Registration) { r.Password = "" },
		"long password":  func(r *models.Registration) { r.Password = strings.Repeat("x", 73) },
		"bad blood type": func(r *models.Registration) { r.BloodType = "C+" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			reg := base
			mutate(&reg)
			_, err := s.svc.Register(s.ctx, reg)
			s.ErrorIs(err, errs.ErrValidation)
		})
	}
}

func (s *ServiceSuite) TestRegisterRejectsTakenUsername() {
	code, err := s.svc.SendOTP(s.ctx, "other@b.com")
	s.Require().NoError(err)
	s.Require().NoError(s.svc.VerifyOTP(s.ctx, "other@b.com", code))

	_, err = s.svc.Register(s.ctx, models.Registration{
		Email: "other@b.com", Role: models.RoleUser, Name: "O", Username: "John", Password: "p",
	})
	s.Require().ErrorIs(err, errs.ErrRejected)
	s.Equal("Username is already taken", errs.Message(err))
}

func (s *ServiceSuite) TestRegisteredEmailCannotSignUpAgain() {
	_, err := s.register("again@b.com")
	s.Require().NoError(err)

	_, err = s.svc.SendOTP(s.ctx, "again@b.com")
	s.ErrorIs(err, errs.ErrRejected)
}

func (s *ServiceSuite) TestOTPExpiryAndAttempts() {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	m := NewOTPManager(OTPConfig{TTL: time.Minute, MaxAttempts: 2})
	m.now = func() time.Time { return now }
	m.generate = func() (string, error) { return "111111", nil }

	_, err := m.Issue("x@b.com")
	s.Require().NoError(err)
	s.ErrorIs(m.Verify("x@b.com", "000000"), errs.ErrRejected)
	s.ErrorIs(m.Verify("x@b.com", "000000"), errs.ErrRejected)
	err = m.Verify("x@b.com", "111111")
	s.Require().Error(err)
	s.Contains(errs.Message(err), "Too many incorrect attempts")

	_, err = m.Issue("y@b.com")
	s.Require().NoError(err)
	now = now.Add(2 * time.Minute)
	err = m.Verify("y@b.com", "111111")
	s.Require().Error(err)
	s.Contains(errs.Message(err), "expired")
}

func (s *ServiceSuite) TestOTPResendIsRateLimited() {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	m := NewOTPManager(OTPConfig{ResendInterval: time.Minute, ResendBurst: 2})
	m.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := m.Issue("r@b.com")
		s.Require().NoError(err)
	}
	_, err := m.Issue("r@b.com")
	s.ErrorIs(err, errs.ErrRejected)

	_, err = m.Issue("other@b.com")
	s.NoError(err, "limits are per email")

	now = now.Add(time.Minute)
	_, err = m.Issue("r@b.com")
	s.NoError(err)
}

func (s *ServiceSuite) TestOTPForgetsIdleEmails() {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	m := NewOTPManager(OTPConfig{TTL: 10 * time.Minute, ResendInterval: time.Minute, ResendBurst: 2})
	m.now = func() time.Time { return now }

	_, err := m.Issue("old@b.com")
	s.Require().NoError(err)
	_, err = m.Issue("recent@b.com")
	s.Require().NoError(err)
	s.Len(m.entries, 2)
	s.Len(m.limiters, 2)

	now = now.Add(11 * time.Minute)
	_, err = m.Issue("new@b.com")
	s.Require().NoError(err)
	s.Len(m.entries, 1)
	s.Contains(m.entries, "new@b.com")
	s.Len(m.limiters, 1)
	s.Contains(m.limiters, "new@b.com")
	s.ErrorIs(m.Verify("old@b.com", "123456"), errs.ErrRejected)
}

func (s *ServiceSuite) TestLocalBackendDelegates() {
	local := NewLocal(s.svc, time.Millisecond)
	id, err := local.Login(s.ctx, collections.SeedAdminUsername, collections.SeedAdminPassword, models.RoleAdmin)
	s.Require().NoError(err)
	s.Equal(models.RoleAdmin, id.Role)
	s.NoError(local.Logout(s.ctx))

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = NewLocal(s.svc, time.Hour).SendOTP(ctx, "late@b.com")
	s.ErrorIs(err, context.Canceled)
}
