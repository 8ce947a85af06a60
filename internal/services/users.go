package services

import (
	"context"
	"errors"
	"strings"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// StatusChange is the payload of broadcast.EventUserStatus.
type StatusChange struct {
	UserID string            `json:"userId"`
	Status models.UserStatus `json:"status"`
}

func (s *Service) ListUsers(ctx context.Context, actor models.Identity) ([]models.Identity, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return nil, errs.Internal("Failed to retrieve users", err)
	}
	out := make([]models.Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	return out, nil
}

// ToggleUserStatus flips an account between Active and Blocked.
func (s *Service) ToggleUserStatus(ctx context.Context, actor models.Identity, userID string) (models.Identity, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Identity{}, err
	}
	if userID == actor.ID {
		return models.Identity{}, errs.Rejected("You cannot change the status of your own account")
	}
	u, err := s.store.Users.UpdateOne(ctx, byUserID(userID), func(u *models.User) error {
		u.Status = u.Status.Toggled()
		return nil
	})
	if errors.Is(err, collections.ErrNoMatch) {
		return models.Identity{}, errs.NotFound("User not found")
	}
	if err != nil {
		return models.Identity{}, errs.Internal("Failed to update user status", err)
	}

	s.audit(ctx, "USER_STATUS", actor.Username, u.Username+" -> "+string(u.Status), true)
	s.publish(ctx, broadcast.EventUserStatus, StatusChange{UserID: u.ID, Status: u.Status})
	s.publish(ctx, broadcast.EventUsersUpdated, u.Identity())
	return u.Identity(), nil
}

func (s *Service) DeleteUser(ctx context.Context, actor models.Identity, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if userID == actor.ID {
		return errs.Rejected("You cannot delete your own account")
	}
	err := s.store.Users.DeleteOne(ctx, byUserID(userID))
	if errors.Is(err, collections.ErrNoMatch) {
		return errs.NotFound("User not found")
	}
	if err != nil {
		return errs.Internal("Failed to delete user", err)
	}
	s.audit(ctx, "USER_DELETE", actor.Username, userID, true)
	s.publish(ctx, broadcast.EventUsersUpdated, map[string]string{"deleted": userID})
	return nil
}

// UpdateProfile changes the caller's own profile fields.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Identity, patch models.ProfileUpdate) (models.Identity, error) {
	if patch.Name == nil && patch.Phone == nil && patch.BloodType == nil && patch.Location == nil {
		return models.Identity{}, errs.Validation("No update fields provided")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return models.Identity{}, errs.Validation("Full name cannot be empty")
	}
	if patch.BloodType != nil && *patch.BloodType != "" && !models.ValidBloodType(*patch.BloodType) {
		return models.Identity{}, errs.Validation("Unknown blood type %q", *patch.BloodType)
	}

	u, err := s.store.Users.UpdateOne(ctx, byUserID(actor.ID), func(u *models.User) error {
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Phone != nil {
			u.Phone = strings.TrimSpace(*patch.Phone)
		}
		if patch.BloodType != nil {
			u.BloodType = *patch.BloodType
		}
		if patch.Location != nil {
			u.Location = strings.TrimSpace(*patch.Location)
		}
		return nil
	})
	if errors.Is(err, collections.ErrNoMatch) {
		return models.Identity{}, errs.NotFound("User not found")
	}
	if err != nil {
		return models.Identity{}, errs.Internal("Failed to update user profile", err)
	}
	s.publish(ctx, broadcast.EventUsersUpdated, u.Identity())
	return u.Identity(), nil
}
