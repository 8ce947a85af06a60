package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/ids"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// EmergencyKeyTTL is how long an emergency key stays redeemable.
const EmergencyKeyTTL = 24 * time.Hour

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func (s *Service) ListCertificates(ctx context.Context, actor models.Identity) ([]models.Certificate, error) {
	certs, err := s.store.Certificates.Find(ctx, func(c models.Certificate) bool {
		return actor.Role == models.RoleAdmin || c.DonorID == actor.ID
	})
	if err != nil {
		return nil, errs.Internal("Failed to retrieve certificates", err)
	}
	return certs, nil
}

func (s *Service) issueCertificate(ctx context.Context, req models.BloodRequest) (models.Certificate, error) {
	code, err := randomKey("CERT", 8)
	if err != nil {
		return models.Certificate{}, err
	}
	cert := models.Certificate{
		ID:        ids.New(),
		Code:      code,
		DonorID:   req.Requester.ID,
		DonorName: req.Requester.Name,
		RequestID: req.ID,
		BloodType: req.BloodType,
		IssuedAt:  s.now().UTC(),
	}
	if err := s.store.Certificates.Insert(ctx, cert); err != nil {
		return models.Certificate{}, fmt.Errorf("store certificate: %w", err)
	}
	return cert, nil
}

// IssueEmergencyKey hands a recipient (or an admin) a one-time key that
// fast-tracks a critical blood request.
func (s *Service) IssueEmergencyKey(ctx context.Context, actor models.Identity, bloodType string) (models.EmergencyKey, error) {
	if err := requireRole(actor, models.RoleUser, models.RoleAdmin); err != nil {
		return models.EmergencyKey{}, err
	}
	if bloodType == "" {
		bloodType = actor.BloodType
	}
	if !models.ValidBloodType(bloodType) {
		return models.EmergencyKey{}, errs.Validation("Please choose a valid blood type")
	}
	code, err := randomKey("EMG", 8)
	if err != nil {
		return models.EmergencyKey{}, errs.Internal("Failed to generate emergency key", err)
	}
	now := s.now().UTC()
	key := models.EmergencyKey{
		ID:        ids.New(),
		Code:      code,
		IssuedTo:  actor.ID,
		BloodType: bloodType,
		ExpiresAt: now.Add(EmergencyKeyTTL),
		CreatedAt: now,
	}
	if err := s.store.EmergencyKeys.Insert(ctx, key); err != nil {
		return models.EmergencyKey{}, errs.Internal("Failed to save emergency key", err)
	}
	s.audit(ctx, "EMERGENCY_KEY", actor.Username, bloodType, true)
	return key, nil
}

// RedeemEmergencyKey spends a key and files a Critical blood request for its
// holder.
func (s *Service) RedeemEmergencyKey(ctx context.Context, actor models.Identity, code string) (models.BloodRequest, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	key, err := s.store.EmergencyKeys.UpdateOne(ctx, func(k models.EmergencyKey) bool { return k.Code == code }, func(k *models.EmergencyKey) error {
		now := s.now().UTC()
		if k.IssuedTo != actor.ID && actor.Role != models.RoleAdmin {
			return errs.Forbidden("This emergency key was issued to someone else")
		}
		if k.Used {
			return errs.Rejected("This emergency key has already been used")
		}
		if now.After(k.ExpiresAt) {
			return errs.Rejected("This emergency key has expired")
		}
		k.Used = true
		k.UsedAt = &now
		return nil
	})
	if errors.Is(err, collections.ErrNoMatch) {
		return models.BloodRequest{}, errs.NotFound("Emergency key not found")
	}
	if err != nil {
		return models.BloodRequest{}, storeErr("Failed to redeem emergency key", err)
	}

	requester := actor
	if requester.Role == models.RoleAdmin {
		requester.Role = models.RoleUser
	}
	return s.CreateRequest(ctx, requester, models.NewRequest{
		BloodType: key.BloodType,
		Units:     1,
		Urgency:   string(models.UrgencyCritical),
	})
}

// randomKey returns prefix-XXXX-XXXX style codes.
func randomKey(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(prefix)
	for i, c := range buf {
		if i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return b.String(), nil
}
