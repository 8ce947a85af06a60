package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/ids"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// AppointmentFilter narrows ListAppointments. Zero values match everything.
type AppointmentFilter struct {
	From   time.Time
	To     time.Time
	Status models.AppointmentStatus
}

// BookAppointment schedules a donation visit for a donor.
func (s *Service) BookAppointment(ctx context.Context, actor models.Identity, hospitalID string, date time.Time) (models.Appointment, error) {
	if err := requireRole(actor, models.RoleDonor); err != nil {
		return models.Appointment{}, errs.Forbidden("Only donors can book appointments")
	}
	if date.IsZero() {
		return models.Appointment{}, errs.Validation("Appointment date is required")
	}
	if date.Before(s.now()) {
		return models.Appointment{}, errs.Validation("Appointment date must be in the future")
	}
	hospital, err := s.store.Hospitals.FindOne(ctx, func(h models.Hospital) bool { return h.ID == hospitalID })
	if errors.Is(err, collections.ErrNoMatch) {
		return models.Appointment{}, errs.NotFound("Hospital not found")
	}
	if err != nil {
		return models.Appointment{}, errs.Internal("Failed to load hospital", err)
	}

	apt := models.Appointment{
		ID:           ids.New(),
		DonorID:      actor.ID,
		DonorName:    actor.Name,
		HospitalID:   hospital.ID,
		HospitalName: hospital.Name,
		Date:         date.UTC(),
		Status:       models.AppointmentScheduled,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Appointments.Insert(ctx, apt); err != nil {
		return models.Appointment{}, errs.Internal("Failed to create appointment", err)
	}

	s.notifier.SendAppointmentConfirmation(actor, apt)
	s.publish(ctx, broadcast.EventAppointmentsUpdated, apt)
	return apt, nil
}

// ListAppointments returns the caller's appointments (all of them for
// admins), newest first.
func (s *Service) ListAppointments(ctx context.Context, actor models.Identity, f AppointmentFilter) ([]models.Appointment, error) {
	apts, err := s.store.Appointments.Find(ctx, func(a models.Appointment) bool {
		if actor.Role != models.RoleAdmin && a.DonorID != actor.ID {
			return false
		}
		if !f.From.IsZero() && a.Date.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && a.Date.After(f.To) {
			return false
		}
		return f.Status == "" || a.Status == f.Status
	})
	if err != nil {
		return nil, errs.Internal("Failed to retrieve appointments", err)
	}
	sort.SliceStable(apts, func(i, j int) bool { return apts[i].Date.After(apts[j].Date) })
	return apts, nil
}

// CancelAppointment is allowed for the donor who booked it and for admins.
func (s *Service) CancelAppointment(ctx context.Context, actor models.Identity, appointmentID string) (models.Appointment, error) {
	apt, err := s.store.Appointments.UpdateOne(ctx, func(a models.Appointment) bool { return a.ID == appointmentID }, func(a *models.Appointment) error {
		if actor.Role != models.RoleAdmin && a.DonorID != actor.ID {
			return errs.Forbidden("Permission denied")
		}
		if a.Status != models.AppointmentScheduled {
			return errs.Rejected("Only scheduled appointments can be cancelled")
		}
		a.Status = models.AppointmentCancelled
		return nil
	})
	if errors.Is(err, collections.ErrNoMatch) {
		return models.Appointment{}, errs.NotFound("Appointment not found")
	}
	if err != nil {
		return models.Appointment{}, storeErr("Failed to cancel appointment", err)
	}

	if donor, err := s.store.Users.FindOne(ctx, byUserID(apt.DonorID)); err == nil {
		s.notifier.SendAppointmentConfirmation(donor.Identity(), apt)
	}
	s.publish(ctx, broadcast.EventAppointmentsUpdated, apt)
	return apt, nil
}
