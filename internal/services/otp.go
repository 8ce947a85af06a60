package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/harentsoaR/bloodbank-api/internal/errs"
)

// OTPLength is the number of digits in a signup code.
const OTPLength = 6

type OTPConfig struct {
	TTL            time.Duration
	MaxAttempts    int // 0 means unlimited
	ResendInterval time.Duration
	ResendBurst    int
}

type otpEntry struct {
	code       string
	issuedAt   time.Time
	expiresAt  time.Time
	attempts   int
	verified   bool
	verifiedAt time.Time
}

// OTPManager issues and checks the one-time codes that gate account
// creation. Codes live in memory only.
type OTPManager struct {
	cfg      OTPConfig
	mu       sync.Mutex
	entries  map[string]*otpEntry
	limiters map[string]*rate.Limiter
	now      func() time.Time
	generate func() (string, error)
}

func NewOTPManager(cfg OTPConfig) *OTPManager {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.ResendBurst <= 0 {
		cfg.ResendBurst = 3
	}
	return &OTPManager{
		cfg:      cfg,
		entries:  make(map[string]*otpEntry),
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
		generate: randomCode,
	}
}

// Issue creates a fresh code for email, replacing any earlier one.
func (m *OTPManager) Issue(email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.limiter(email).AllowN(m.now(), 1) {
		return "", errs.Rejected("Too many code requests. Please wait before trying again.")
	}
	code, err := m.generate()
	if err != nil {
		return "", errs.Internal("Failed to generate verification code", err)
	}
	now := m.now()
	m.sweep(now)
	m.entries[email] = &otpEntry{code: code, issuedAt: now, expiresAt: now.Add(m.cfg.TTL)}
	return code, nil
}

// sweep drops codes that can no longer be used and limiters that have
// refilled; mu held.
func (m *OTPManager) sweep(now time.Time) {
	for email, e := range m.entries {
		until := e.expiresAt
		if e.verified {
			until = e.verifiedAt.Add(m.cfg.TTL)
		}
		if now.After(until) {
			delete(m.entries, email)
		}
	}
	for email, l := range m.limiters {
		if l.Limit() == rate.Inf || l.TokensAt(now) >= float64(l.Burst()) {
			delete(m.limiters, email)
		}
	}
}

// Verify checks code against the latest code issued for email.
func (m *OTPManager) Verify(email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[email]
	if !ok {
		return errs.Rejected("No verification code was requested for this email")
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, email)
		return errs.Rejected("Verification code has expired. Request a new one.")
	}
	if m.cfg.MaxAttempts > 0 && e.attempts >= m.cfg.MaxAttempts {
		return errs.Rejected("Too many incorrect attempts. Request a new code.")
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		e.attempts++
		return errs.Rejected("Invalid verification code")
	}
	e.verified = true
	e.verifiedAt = m.now()
	return nil
}

// Verified reports whether email passed Verify within the last TTL.
func (m *OTPManager) Verified(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[email]
	return ok && e.verified && m.now().Before(e.verifiedAt.Add(m.cfg.TTL))
}

// Consume forgets the code for email once the account exists.
func (m *OTPManager) Consume(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, email)
}

func (m *OTPManager) limiter(email string) *rate.Limiter {
	l, ok := m.limiters[email]
	if !ok {
		every := rate.Inf
		if m.cfg.ResendInterval > 0 {
			every = rate.Every(m.cfg.ResendInterval)
		}
		l = rate.NewLimiter(every, m.cfg.ResendBurst)
		m.limiters[email] = l
	}
	return l
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}
