package session

import (
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

func (s *ControllerSuite) TestSignupScenario() {
	created := models.Identity{ID: "n1", Username: "a", Name: "A", Role: models.RoleDonor, Email: "a@b.com", Status: models.StatusActive}
	gomock.InOrder(
		s.backend.EXPECT().SendOTP(gomock.Any(), "a@b.com").Return("123456", nil),
		s.backend.EXPECT().VerifyOTP(gomock.Any(), "a@b.com", "123456").Return(nil),
		s.backend.EXPECT().Register(gomock.Any(), models.Registration{
			Email: "a@b.com", Role: models.RoleDonor, Name: "A", Username: "a", Password: "p",
		}).Return(created, nil),
	)

	signup := s.session.ShowRegister()
	s.Equal(ViewRegister, s.session.View())
	s.Equal(StepEmail, signup.Step())

	s.Require().NoError(signup.RequestCode(s.ctx, "a@b.com"))
	s.Equal(StepOTP, signup.Step())
	s.Equal("123456", signup.DebugCode())

	s.Require().NoError(signup.VerifyCode(s.ctx, signup.DebugCode()))
	s.Equal(StepDetails, signup.Step())

	s.Require().NoError(signup.Complete(s.ctx, Details{Role: models.RoleDonor, Name: "A", Username: "a", Password: "p"}))

	id, ok := s.session.Identity()
	s.Require().True(ok)
	s.Equal(models.RoleDonor, id.Role)
	s.Equal(ViewDashboard, s.session.View())
	s.Equal(DashboardDonor, s.session.Dashboard())
	s.Nil(s.session.Signup())
}

func (s *ControllerSuite) TestWrongCodeStaysInOTP() {
	s.backend.EXPECT().SendOTP(gomock.Any(), "a@b.com").Return("", nil)
	s.backend.EXPECT().VerifyOTP(gomock.Any(), "a@b.com", "000000").Return(errs.Rejected("Invalid verification code"))

	signup := s.session.ShowRegister()
	s.Require().NoError(signup.RequestCode(s.ctx, "a@b.com"))
	s.Empty(signup.DebugCode())

	err := signup.VerifyCode(s.ctx, "000000")
	s.Require().ErrorIs(err, errs.ErrRejected)
	s.Equal(StepOTP, signup.Step())
	s.Equal("Invalid verification code", s.session.LastError())
	_, ok := s.session.Identity()
	s.False(ok)
}

func (s *ControllerSuite) TestSignupValidation() {
	signup := s.session.ShowRegister()

	s.ErrorIs(signup.RequestCode(s.ctx, "not-an-email"), errs.ErrValidation)
	s.Equal(StepEmail, signup.Step())
	s.ErrorIs(signup.VerifyCode(s.ctx, "123456"), errs.ErrValidation, "code before email")

	s.backend.EXPECT().SendOTP(gomock.Any(), "a@b.com").Return("", nil)
	s.Require().NoError(signup.RequestCode(s.ctx, "a@b.com"))
	s.ErrorIs(signup.VerifyCode(s.ctx, "12345"), errs.ErrValidation)
	s.Equal(StepOTP, signup.Step())

	s.backend.EXPECT().VerifyOTP(gomock.Any(), "a@b.com", "123456").Return(nil)
	s.Require().NoError(signup.VerifyCode(s.ctx, "123456"))

	cases := map[string]Details{
		"admin role":        {Role: models.RoleAdmin, Name: "A", Username: "a", Password: "p"},
		"missing name":      {Role: models.RoleUser, Username: "a", Password: "p"},
		"missing username":  {Role: models.RoleUser, Name: "A", Password: "p"},
		"missing password":  {Role: models.RoleUser, Name: "A", Username: "a"},
		"password mismatch": {Role: models.RoleUser, Name: "A", Username: "a", Password: "p", ConfirmPassword: "q"},
	}
	for name, d := range cases {
		s.Run(name, func() {
			s.ErrorIs(signup.Complete(s.ctx, d), errs.ErrValidation)
			s.Equal(StepDetails, signup.Step())
		})
	}
}

func (s *ControllerSuite) TestRegisterFailureStaysInDetails() {
	s.backend.EXPECT().SendOTP(gomock.Any(), gomock.Any()).Return("", nil)
	s.backend.EXPECT().VerifyOTP(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.backend.EXPECT().Register(gomock.Any(), gomock.Any()).Return(models.Identity{}, errs.Rejected("Username is already taken"))

	signup := s.session.ShowRegister()
	require.NoError(s.T(), signup.RequestCode(s.ctx, "a@b.com"))
	require.NoError(s.T(), signup.VerifyCode(s.ctx, "123456"))

	err := signup.Complete(s.ctx, Details{Role: models.RoleUser, Name: "A", Username: "john", Password: "p", ConfirmPassword: "p"})
	s.ErrorIs(err, errs.ErrRejected)
	s.Equal(StepDetails, signup.Step())
	s.Equal("Username is already taken", s.session.LastError())
	s.Equal(ViewRegister, s.session.View())
}

func (s *ControllerSuite) TestBackKeepsIssuedCode() {
	s.backend.EXPECT().SendOTP(gomock.Any(), "a@b.com").Return("", nil)
	s.backend.EXPECT().VerifyOTP(gomock.Any(), "a@b.com", "123456").Return(nil).Times(2)

	signup := s.session.ShowRegister()
	s.Require().NoError(signup.RequestCode(s.ctx, "a@b.com"))
	s.Require().NoError(signup.VerifyCode(s.ctx, "123456"))

	s.Equal(StepOTP, signup.Back())
	s.Require().NoError(signup.VerifyCode(s.ctx, "123456"))
	s.Equal(StepOTP, signup.Back())
	s.Equal(StepEmail, signup.Back())
	s.Equal(StepEmail, signup.Back())
	s.Equal("a@b.com", signup.Email())
}

func (s *ControllerSuite) TestNewSignupReplacesOld() {
	first := s.session.ShowRegister()
	second := s.session.ShowRegister()
	s.NotSame(first, second)
	s.ErrorIs(first.RequestCode(s.ctx, "a@b.com"), ErrStale)

	s.session.ShowLanding()
	s.Nil(s.session.Signup())
	s.ErrorIs(second.RequestCode(s.ctx, "a@b.com"), ErrStale)
}

func (s *ControllerSuite) TestEndedSignupIsInert() {
	s.backend.EXPECT().SendOTP(gomock.Any(), "a@b.com").Return("123456", nil)

	first := s.session.ShowRegister()
	s.Require().NoError(first.RequestCode(s.ctx, "a@b.com"))
	s.Equal("123456", first.DebugCode())

	second := s.session.ShowRegister()
	s.Empty(first.Email())
	s.Empty(first.DebugCode())

	s.ErrorIs(second.RequestCode(s.ctx, "not-an-email"), errs.ErrValidation)
	msg := s.session.LastError()
	s.Require().NotEmpty(msg)

	s.Equal(StepOTP, first.Back())
	s.Equal(msg, s.session.LastError())
	s.Equal(StepEmail, second.Step())
}
