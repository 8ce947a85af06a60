package services

import (
	"context"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// DefaultLatency mimics the round trip of the remote endpoint.
const DefaultLatency = 300 * time.Millisecond

// Local runs the signup and login operations in-process, delayed by Latency,
// so a session can work without the HTTP endpoint.
type Local struct {
	svc     *Service
	Latency time.Duration
}

func NewLocal(svc *Service, latency time.Duration) *Local {
	return &Local{svc: svc, Latency: latency}
}

func (l *Local) Login(ctx context.Context, username, password string, role models.Role) (models.Identity, error) {
	if err := l.wait(ctx); err != nil {
		return models.Identity{}, err
	}
	return l.svc.Login(ctx, username, password, role)
}

// Logout has nothing to revoke in-process.
func (l *Local) Logout(ctx context.Context) error {
	return nil
}

func (l *Local) SendOTP(ctx context.Context, email string) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.svc.SendOTP(ctx, email)
}

func (l *Local) VerifyOTP(ctx context.Context, email, code string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.svc.VerifyOTP(ctx, email, code)
}

func (l *Local) Register(ctx context.Context, reg models.Registration) (models.Identity, error) {
	if err := l.wait(ctx); err != nil {
		return models.Identity{}, err
	}
	return l.svc.Register(ctx, reg)
}

func (l *Local) wait(ctx context.Context) error {
	if l.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(l.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
