package services

import (
	"context"
	"errors"
	"strings"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/ids"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

func (s *Service) ListStocks(ctx context.Context) ([]models.BloodStock, error) {
	stocks, err := s.store.Stocks.List(ctx)
	if err != nil {
		return nil, errs.Internal("Failed to retrieve blood stock", err)
	}
	return stocks, nil
}

// UpdateStock sets the level for a blood type.
func (s *Service) UpdateStock(ctx context.Context, actor models.Identity, bloodType string, units int) (models.BloodStock, error) {
	if err := requireAdmin(actor); err != nil {
		return models.BloodStock{}, err
	}
	if !models.ValidBloodType(bloodType) {
		return models.BloodStock{}, errs.Validation("Please choose a valid blood type")
	}
	if units < 0 {
		return models.BloodStock{}, errs.Validation("Stock cannot be negative")
	}
	stock, err := s.setStock(ctx, bloodType, func(int) (int, error) { return units, nil })
	if err != nil {
		return models.BloodStock{}, err
	}
	s.audit(ctx, "STOCK_UPDATE", actor.Username, bloodType, true)
	return stock, nil
}

// adjustStock adds delta units, refusing to go below zero.
func (s *Service) adjustStock(ctx context.Context, bloodType string, delta int) (models.BloodStock, error) {
	return s.setStock(ctx, bloodType, func(current int) (int, error) {
		if current+delta < 0 {
			return 0, errs.Rejected("Not enough %s units in stock", bloodType)
		}
		return current + delta, nil
	})
}

func (s *Service) setStock(ctx context.Context, bloodType string, level func(current int) (int, error)) (models.BloodStock, error) {
	var stock models.BloodStock
	err := s.store.Stocks.Mutate(ctx, func(all []models.BloodStock) ([]models.BloodStock, error) {
		for i := range all {
			if all[i].BloodType != bloodType {
				continue
			}
			units, err := level(all[i].Units)
			if err != nil {
				return nil, err
			}
			all[i].Units = units
			all[i].UpdatedAt = s.now().UTC()
			stock = all[i]
			return all, nil
		}
		units, err := level(0)
		if err != nil {
			return nil, err
		}
		stock = models.BloodStock{ID: ids.New(), BloodType: bloodType, Units: units, UpdatedAt: s.now().UTC()}
		return append(all, stock), nil
	})
	if err != nil {
		return models.BloodStock{}, storeErr("Failed to update blood stock", err)
	}
	s.publish(ctx, broadcast.EventStocksUpdated, stock)
	return stock, nil
}

func (s *Service) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	hospitals, err := s.store.Hospitals.List(ctx)
	if err != nil {
		return nil, errs.Internal("Failed to retrieve hospitals", err)
	}
	return hospitals, nil
}

func (s *Service) AddHospital(ctx context.Context, actor models.Identity, h models.Hospital) (models.Hospital, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Hospital{}, err
	}
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return models.Hospital{}, errs.Validation("Hospital name is required")
	}
	h.ID = ids.New()
	h.CreatedAt = s.now().UTC()

	err := s.store.Hospitals.Mutate(ctx, func(all []models.Hospital) ([]models.Hospital, error) {
		for _, other := range all {
			if strings.EqualFold(other.Name, h.Name) {
				return nil, errs.Rejected("A hospital named %q already exists", h.Name)
			}
		}
		return append(all, h), nil
	})
	if err != nil {
		return models.Hospital{}, storeErr("Failed to add hospital", err)
	}
	s.audit(ctx, "HOSPITAL_ADD", actor.Username, h.Name, true)
	s.publish(ctx, broadcast.EventHospitalsUpdated, h)
	return h, nil
}

func (s *Service) DeleteHospital(ctx context.Context, actor models.Identity, hospitalID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	err := s.store.Hospitals.DeleteOne(ctx, func(h models.Hospital) bool { return h.ID == hospitalID })
	if errors.Is(err, collections.ErrNoMatch) {
		return errs.NotFound("Hospital not found")
	}
	if err != nil {
		return errs.Internal("Failed to delete hospital", err)
	}
	s.audit(ctx, "HOSPITAL_DELETE", actor.Username, hospitalID, true)
	s.publish(ctx, broadcast.EventHospitalsUpdated, map[string]string{"deleted": hospitalID})
	return nil
}
