package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/ids"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// CreateRequest files a donation offer (donors) or a blood request
// (recipients).
func (s *Service) CreateRequest(ctx context.Context, actor models.Identity, in models.NewRequest) (models.BloodRequest, error) {
	var kind models.RequestKind
	switch actor.Role {
	case models.RoleDonor:
		kind = models.KindDonation
	case models.RoleUser:
		kind = models.KindBlood
	default:
		return models.BloodRequest{}, errs.Forbidden("Only donors and recipients can file requests")
	}

	bloodType := in.BloodType
	if bloodType == "" {
		bloodType = actor.BloodType
	}
	if !models.ValidBloodType(bloodType) {
		return models.BloodRequest{}, errs.Validation("Please choose a valid blood type")
	}
	urgency, ok := models.ParseUrgency(in.Urgency)
	if !ok {
		return models.BloodRequest{}, errs.Validation("Unknown urgency %q", in.Urgency)
	}
	units := in.Units
	if units == 0 {
		units = 1
	}
	if units < 0 {
		return models.BloodRequest{}, errs.Validation("Units must be positive")
	}

	now := s.now().UTC()
	req := models.BloodRequest{
		ID:   ids.New(),
		Kind: kind,
		Requester: models.Requester{
			ID:       actor.ID,
			Name:     actor.Name,
			Username: actor.Username,
			Role:     actor.Role,
		},
		BloodType: bloodType,
		Units:     units,
		Status:    models.RequestPending,
		Urgency:   urgency,
		Hospital:  strings.TrimSpace(in.Hospital),
		Location:  strings.TrimSpace(in.Location),
		Date:      now,
		UpdatedAt: now,
	}
	if err := s.store.Requests.Insert(ctx, req); err != nil {
		return models.BloodRequest{}, errs.Internal("Failed to create request", err)
	}
	s.publish(ctx, broadcast.EventRequestsUpdated, req)
	return req, nil
}

// ListRequests returns every request for admins and the caller's own
// otherwise, newest first. An empty status means all.
func (s *Service) ListRequests(ctx context.Context, actor models.Identity, status models.RequestStatus) ([]models.BloodRequest, error) {
	reqs, err := s.store.Requests.Find(ctx, func(r models.BloodRequest) bool {
		if actor.Role != models.RoleAdmin && r.Requester.ID != actor.ID {
			return false
		}
		return status == "" || r.Status == status
	})
	if err != nil {
		return nil, errs.Internal("Failed to retrieve requests", err)
	}
	reverse(reqs)
	return reqs, nil
}

// UpdateRequestStatus moves a request along its admin workflow. Completing
// a donation adds its units to stock and issues a certificate; completing a
// blood request draws the units from stock.
func (s *Service) UpdateRequestStatus(ctx context.Context, actor models.Identity, requestID string, next models.RequestStatus) (models.BloodRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return models.BloodRequest{}, err
	}
	current, err := s.store.Requests.FindOne(ctx, byRequestID(requestID))
	if errors.Is(err, collections.ErrNoMatch) {
		return models.BloodRequest{}, errs.NotFound("Request not found")
	}
	if err != nil {
		return models.BloodRequest{}, errs.Internal("Failed to load request", err)
	}
	if !current.Status.CanMoveTo(next) {
		return models.BloodRequest{}, errs.Rejected("Cannot move a %s request to %s", current.Status, next)
	}

	// Stock is drawn under the requests lock, once the transition holds.
	var drawn models.BloodRequest
	updated, err := s.store.Requests.UpdateOne(ctx, byRequestID(requestID), func(r *models.BloodRequest) error {
		if !r.Status.CanMoveTo(next) {
			return errs.Rejected("Cannot move a %s request to %s", r.Status, next)
		}
		if next == models.RequestCompleted && r.Kind == models.KindBlood {
			if _, err := s.adjustStock(ctx, r.BloodType, -r.Units); err != nil {
				return err
			}
			drawn = *r
		}
		r.Status = next
		r.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if drawn.Units > 0 {
			if _, rerr := s.adjustStock(ctx, drawn.BloodType, drawn.Units); rerr != nil {
				s.log.Error("request not completed and drawn stock not returned",
					zap.String("request_id", requestID), zap.Int("units", drawn.Units), zap.Error(rerr))
			}
		}
		return models.BloodRequest{}, storeErr("Failed to update request", err)
	}

	if next == models.RequestCompleted && updated.Kind == models.KindDonation {
		if _, err := s.adjustStock(ctx, updated.BloodType, updated.Units); err != nil {
			s.log.Error("donation completed but stock not updated", zap.String("request_id", updated.ID), zap.Error(err))
		}
		if _, err := s.issueCertificate(ctx, updated); err != nil {
			s.log.Error("donation completed but certificate not issued", zap.String("request_id", updated.ID), zap.Error(err))
		}
	}

	s.audit(ctx, "REQUEST_STATUS", actor.Username, fmt.Sprintf("%s -> %s", updated.ID, next), true)
	s.publish(ctx, broadcast.EventRequestsUpdated, updated)
	return updated, nil
}

func byRequestID(id string) func(models.BloodRequest) bool {
	return func(r models.BloodRequest) bool { return r.ID == id }
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
