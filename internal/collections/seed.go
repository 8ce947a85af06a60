package collections

import (
	"context"
	"fmt"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/models"
	"github.com/harentsoaR/bloodbank-api/internal/utils"
)

// Seed accounts. The passwords are sample credentials for local use.
const (
	SeedAdminUsername     = "admin"
	SeedAdminPassword     = "admin123"
	SeedDonorUsername     = "john"
	SeedDonorPassword     = "donor123"
	SeedRecipientUsername = "jane"
	SeedRecipientPassword = "user123"

	SeedAdminID     = "seed-user-admin"
	SeedDonorID     = "seed-user-donor"
	SeedRecipientID = "seed-user-recipient"
)

var seedTime = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

// Seed writes the sample rows of every collection whose key is still
// absent. Collections that already exist are left untouched, so calling Seed
// again is a no-op. It returns the keys it wrote.
func (s *Store) Seed(ctx context.Context) ([]string, error) {
	var written []string

	present, err := s.Users.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !present {
		users, err := seedUsers()
		if err != nil {
			return nil, err
		}
		if err := seedInto(ctx, s.Users, users, &written); err != nil {
			return nil, err
		}
	}

	steps := []func() error{
		func() error { return seedInto(ctx, s.Stocks, seedStocks(), &written) },
		func() error { return seedInto(ctx, s.Hospitals, seedHospitals(), &written) },
		func() error { return seedInto(ctx, s.Requests, seedRequests(), &written) },
		func() error { return seedInto(ctx, s.Feedback, seedFeedback(), &written) },
		func() error { return seedInto(ctx, s.Chats, seedChats(), &written) },
		func() error { return seedInto(ctx, s.Certificates, seedCertificates(), &written) },
		func() error { return seedInto(ctx, s.Appointments, seedAppointments(), &written) },
		func() error { return seedInto(ctx, s.Logs, seedLogs(), &written) },
		func() error { return seedInto(ctx, s.EmergencyKeys, []models.EmergencyKey{}, &written) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return written, nil
}

func seedInto[T any](ctx context.Context, c *Collection[T], rows []T, written *[]string) error {
	wrote, err := c.seed(ctx, rows)
	if err != nil {
		return err
	}
	if wrote {
		*written = append(*written, c.Key())
	}
	return nil
}

func seedUsers() ([]models.User, error) {
	type account struct {
		user     models.User
		password string
	}
	accounts := []account{
		{models.User{ID: SeedAdminID, Username: SeedAdminUsername, Role: models.RoleAdmin, Name: "System Administrator",
			Email: "admin@bloodbank.local", Verified: true}, SeedAdminPassword},
		{models.User{ID: SeedDonorID, Username: SeedDonorUsername, Role: models.RoleDonor, Name: "John Doe",
			Email: "john@bloodbank.local", Phone: "+1-555-0101", BloodType: "O+", Location: "Downtown", Verified: true}, SeedDonorPassword},
		{models.User{ID: SeedRecipientID, Username: SeedRecipientUsername, Role: models.RoleUser, Name: "Jane Smith",
			Email: "jane@bloodbank.local", Phone: "+1-555-0102", BloodType: "A+", Location: "Uptown", Verified: true}, SeedRecipientPassword},
	}

	users := make([]models.User, 0, len(accounts))
	for _, a := range accounts {
		hash, err := utils.HashPassword(a.password)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", a.user.Username, err)
		}
		u := a.user
		u.PasswordHash = hash
		u.Status = models.StatusActive
		u.CreatedAt = seedTime
		users = append(users, u)
	}
	return users, nil
}

func seedStocks() []models.BloodStock {
	units := map[string]int{"A+": 45, "A-": 12, "B+": 30, "B-": 8, "AB+": 15, "AB-": 5, "O+": 60, "O-": 20}
	stocks := make([]models.BloodStock, 0, len(models.BloodTypes))
	for _, bt := range models.BloodTypes {
		stocks = append(stocks, models.BloodStock{ID: "seed-stock-" + bt, BloodType: bt, Units: units[bt], UpdatedAt: seedTime})
	}
	return stocks
}

func seedHospitals() []models.Hospital {
	return []models.Hospital{
		{ID: "seed-hospital-1", Name: "City General Hospital", Address: "12 Main Street", City: "Downtown", Phone: "+1-555-0200", CreatedAt: seedTime},
		{ID: "seed-hospital-2", Name: "St. Mary's Medical Center", Address: "48 Oak Avenue", City: "Uptown", Phone: "+1-555-0201", CreatedAt: seedTime},
		{ID: "seed-hospital-3", Name: "Red Cross Blood Center", Address: "7 Harbor Road", City: "Eastside", Phone: "+1-555-0202", CreatedAt: seedTime},
	}
}

func seedRequests() []models.BloodRequest {
	return []models.BloodRequest{
		{
			ID: "seed-request-1", Kind: models.KindDonation,
			Requester: models.Requester{ID: SeedDonorID, Name: "John Doe", Username: SeedDonorUsername, Role: models.RoleDonor},
			BloodType: "O+", Units: 1, Status: models.RequestPending, Urgency: models.UrgencyNormal,
			Hospital: "City General Hospital", Location: "Downtown", Date: seedTime, UpdatedAt: seedTime,
		},
		{
			ID: "seed-request-2", Kind: models.KindBlood,
			Requester: models.Requester{ID: SeedRecipientID, Name: "Jane Smith", Username: SeedRecipientUsername, Role: models.RoleUser},
			BloodType: "A+", Units: 2, Status: models.RequestPending, Urgency: models.UrgencyHigh,
			Hospital: "St. Mary's Medical Center", Location: "Uptown", Date: seedTime, UpdatedAt: seedTime,
		},
	}
}

func seedFeedback() []models.Feedback {
	return []models.Feedback{
		{ID: "seed-feedback-1", UserID: SeedRecipientID, UserName: "Jane Smith",
			Message: "The request process was quick and the staff kept me informed.", Rating: 5, CreatedAt: seedTime},
	}
}

func seedChats() []models.ChatMessage {
	return []models.ChatMessage{
		{ID: "seed-chat-1", SenderID: SeedRecipientID, ReceiverID: SeedAdminID,
			Text: "Hello, is A+ blood available this week?", SentAt: seedTime},
	}
}

func seedCertificates() []models.Certificate {
	return []models.Certificate{
		{ID: "seed-certificate-1", Code: "CERT-SEED-0001", DonorID: SeedDonorID, DonorName: "John Doe",
			RequestID: "seed-request-0", BloodType: "O+", IssuedAt: seedTime},
	}
}

func seedAppointments() []models.Appointment {
	return []models.Appointment{
		{ID: "seed-appointment-1", DonorID: SeedDonorID, DonorName: "John Doe", HospitalID: "seed-hospital-1",
			HospitalName: "City General Hospital", Date: seedTime.AddDate(0, 0, 7), Status: models.AppointmentScheduled, CreatedAt: seedTime},
	}
}

func seedLogs() []models.SecurityLog {
	return []models.SecurityLog{
		{ID: "seed-log-1", Action: "SYSTEM_INIT", Actor: "system", Detail: "sample data loaded", Success: true, Timestamp: seedTime},
	}
}
