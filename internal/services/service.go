package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/ids"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// Options tunes a Service.
type Options struct {
	// DebugCodes returns signup codes to the caller; never set in production.
	DebugCodes bool
	Logger     *zap.Logger
}

// Service holds the business rules behind every endpoint action.
type Service struct {
	store    *collections.Store
	bus      *broadcast.Bus
	otp      *OTPManager
	notifier Notifier
	debug    bool
	log      *zap.Logger
	now      func() time.Time
}

func New(store *collections.Store, bus *broadcast.Bus, otp *OTPManager, notifier Notifier, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewNotificationService("", log)
	}
	return &Service{
		store:    store,
		bus:      bus,
		otp:      otp,
		notifier: notifier,
		debug:    opts.DebugCodes,
		log:      log,
		now:      time.Now,
	}
}

// Actor loads the account behind an authenticated token. Deleted and
// blocked accounts are refused.
func (s *Service) Actor(ctx context.Context, userID string) (models.Identity, error) {
	u, err := s.store.Users.FindOne(ctx, byUserID(userID))
	if errors.Is(err, collections.ErrNoMatch) {
		return models.Identity{}, errs.Unauthorized("Account no longer exists")
	}
	if err != nil {
		return models.Identity{}, errs.Internal("Failed to load account", err)
	}
	if u.Status == models.StatusBlocked {
		return models.Identity{}, errs.Forbidden("Your account has been blocked")
	}
	return u.Identity(), nil
}

func (s *Service) publish(ctx context.Context, event string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event, payload); err != nil {
		s.log.Warn("sync publish failed", zap.String("event", event), zap.Error(err))
	}
}

// audit prepends a security log entry. Failures are logged and swallowed so
// they never mask the outcome of the audited action.
func (s *Service) audit(ctx context.Context, action, actor, detail string, success bool) {
	entry := models.SecurityLog{
		ID:        ids.New(),
		Action:    action,
		Actor:     actor,
		Detail:    detail,
		Success:   success,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.Logs.Prepend(ctx, entry, collections.LogLimit); err != nil {
		s.log.Error("failed to write security log", zap.String("action", action), zap.Error(err))
		return
	}
	s.publish(ctx, broadcast.EventLogsUpdated, entry)
}

func requireAdmin(actor models.Identity) error {
	if actor.Role != models.RoleAdmin {
		return errs.Forbidden("Only administrators can perform this action")
	}
	return nil
}

func requireRole(actor models.Identity, roles ...models.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return errs.Forbidden("Your role is not allowed to perform this action")
}

func storeErr(message string, err error) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}
	return errs.Internal(message, err)
}

func byUserID(id string) func(models.User) bool {
	return func(u models.User) bool { return u.ID == id }
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
