package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// Backend is what a session needs from the data layer. api.Client talks to
// the endpoint; services.Local runs in-process.
type Backend interface {
	Login(ctx context.Context, username, password string, role models.Role) (models.Identity, error)
	Logout(ctx context.Context) error
	SendOTP(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, code string) error
	Register(ctx context.Context, reg models.Registration) (models.Identity, error)
}

type View string

const (
	ViewLanding   View = "landing"
	ViewLogin     View = "login"
	ViewRegister  View = "register"
	ViewDashboard View = "dashboard"
)

// Dashboard is the role-specific area shown on ViewDashboard.
type Dashboard string

const (
	DashboardNone      Dashboard = ""
	DashboardAdmin     Dashboard = "admin"
	DashboardDonor     Dashboard = "donor"
	DashboardRecipient Dashboard = "recipient"
)

// ErrStale is returned when a backend answer arrives after the session it
// belonged to was logged out or replaced. The answer is dropped.
var ErrStale = errors.New("session: result discarded")

// BlockedMessage is recorded when an admin blocks the signed-in account.
const BlockedMessage = "Your account has been blocked. Please contact the administrator."

// Controller is the application context of one dashboard: current view,
// signed-in identity and the signup in progress.
type Controller struct {
	backend Backend
	log     *zap.Logger

	mu       sync.Mutex
	view     View
	identity *models.Identity
	lastErr  string
	signup   *Signup
	epoch    uint64
}

func NewController(backend Backend, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{backend: backend, log: log, view: ViewLanding}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Identity returns the signed-in account, if any.
func (c *Controller) Identity() (models.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return models.Identity{}, false
	}
	return *c.identity, true
}

// LastError is the message of the most recent failed action, or "".
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Signup returns the signup in progress, or nil.
func (c *Controller) Signup() *Signup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signup
}

func (c *Controller) Dashboard() Dashboard {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return DashboardNone
	}
	return DashboardFor(c.identity.Role)
}

// DashboardFor maps a role to its dashboard.
func DashboardFor(role models.Role) Dashboard {
	switch role {
	case models.RoleAdmin:
		return DashboardAdmin
	case models.RoleDonor:
		return DashboardDonor
	case models.RoleUser:
		return DashboardRecipient
	}
	return DashboardNone
}

func (c *Controller) ShowLanding() {
	c.navigate(ViewLanding)
}

func (c *Controller) ShowLogin() {
	c.navigate(ViewLogin)
}

// ShowRegister opens a fresh signup, dropping any earlier one.
func (c *Controller) ShowRegister() *Signup {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return nil
	}
	c.view = ViewRegister
	c.lastErr = ""
	c.dropSignup()
	c.signup = &Signup{c: c, step: StepEmail}
	return c.signup
}

func (c *Controller) navigate(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return
	}
	c.view = v
	c.lastErr = ""
	c.dropSignup()
}

// Login signs in. On failure identity and view are untouched and the
// message is kept in LastError.
func (c *Controller) Login(ctx context.Context, username, password string, role models.Role) error {
	username = strings.TrimSpace(username)
	c.mu.Lock()
	if username == "" || password == "" {
		err := errs.Validation("Please enter your username and password")
		c.lastErr = err.Message
		c.mu.Unlock()
		return err
	}
	epoch := c.epoch
	c.mu.Unlock()

	id, err := c.backend.Login(ctx, username, password, role)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrStale
	}
	if err != nil {
		c.lastErr = errs.Message(err)
		return err
	}
	c.signIn(id)
	return nil
}

// signIn must be called with mu held.
func (c *Controller) signIn(id models.Identity) {
	c.identity = &id
	c.view = ViewDashboard
	c.lastErr = ""
	c.dropSignup()
}

// Logout clears the identity and any signup, returns to the landing view and
// drops results of calls still in flight.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()

	if err := c.backend.Logout(ctx); err != nil {
		c.log.Warn("backend logout failed", zap.Error(err))
	}
}

// reset must be called with mu held.
func (c *Controller) reset() {
	c.epoch++
	c.identity = nil
	c.view = ViewLanding
	c.lastErr = ""
	c.dropSignup()
}

// dropSignup ends the signup in progress and wipes what it collected; mu
// held.
func (c *Controller) dropSignup() {
	if c.signup == nil {
		return
	}
	c.signup.email = ""
	c.signup.code = ""
	c.signup.debugCode = ""
	c.signup = nil
}

type statusEvent struct {
	UserID string            `json:"userId"`
	Status models.UserStatus `json:"status"`
}

// Watch follows account changes on bus: blocking or deleting the signed-in
// account logs the session out, other profile changes refresh the identity.
// The returned func stops watching.
func (c *Controller) Watch(bus *broadcast.Bus) (stop func()) {
	statusID := bus.Subscribe(broadcast.EventUserStatus, func(_ string, data json.RawMessage) {
		var ev statusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn("bad user status event", zap.Error(err))
			return
		}
		if ev.Status == models.StatusBlocked {
			c.forceLogout(ev.UserID, BlockedMessage)
		}
	})
	usersID := bus.Subscribe(broadcast.EventUsersUpdated, func(_ string, data json.RawMessage) {
		var ev struct {
			models.Identity
			Deleted string `json:"deleted"`
		}
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn("bad users event", zap.Error(err))
			return
		}
		if ev.Deleted != "" {
			c.forceLogout(ev.Deleted, "Your account has been removed.")
			return
		}
		c.refresh(ev.Identity)
	})
	return func() {
		bus.Unsubscribe(broadcast.EventUserStatus, statusID)
		bus.Unsubscribe(broadcast.EventUsersUpdated, usersID)
	}
}

func (c *Controller) forceLogout(userID, message string) {
	c.mu.Lock()
	if c.identity == nil || c.identity.ID != userID {
		c.mu.Unlock()
		return
	}
	c.reset()
	c.lastErr = message
	c.mu.Unlock()

	c.log.Info("session ended by account change", zap.String("user_id", userID))
	if err := c.backend.Logout(context.Background()); err != nil {
		c.log.Warn("backend logout failed", zap.Error(err))
	}
}

func (c *Controller) refresh(id models.Identity) {
	if id.Status == models.StatusBlocked {
		c.forceLogout(id.ID, BlockedMessage)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil && c.identity.ID == id.ID {
		c.identity = &id
	}
}
