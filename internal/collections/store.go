package collections

import (
	"context"
	"fmt"

	"github.com/harentsoaR/bloodbank-api/internal/models"
	"github.com/harentsoaR/bloodbank-api/internal/storage"
)

// Storage keys, one per collection. Renaming one orphans existing data.
const (
	KeyUsers         = "bb_users"
	KeyStocks        = "bb_stocks"
	KeyRequests      = "bb_requests"
	KeyFeedback      = "bb_feedback"
	KeyHospitals     = "bb_hospitals"
	KeyChats         = "bb_chats"
	KeyCertificates  = "bb_certificates"
	KeyAppointments  = "bb_appointments"
	KeyLogs          = "bb_logs"
	KeyEmergencyKeys = "bb_emergency_keys"
)

// Keys lists every collection key.
var Keys = []string{
	KeyUsers, KeyStocks, KeyRequests, KeyFeedback, KeyHospitals, KeyChats,
	KeyCertificates, KeyAppointments, KeyLogs, KeyEmergencyKeys,
}

// LogLimit caps the security log; older entries fall off the end.
const LogLimit = 50

// Store groups every collection on one KV.
type Store struct {
	KV            storage.KV
	Users         *Collection[models.User]
	Stocks        *Collection[models.BloodStock]
	Requests      *Collection[models.BloodRequest]
	Feedback      *Collection[models.Feedback]
	Hospitals     *Collection[models.Hospital]
	Chats         *Collection[models.ChatMessage]
	Certificates  *Collection[models.Certificate]
	Appointments  *Collection[models.Appointment]
	Logs          *Collection[models.SecurityLog]
	EmergencyKeys *Collection[models.EmergencyKey]
}

func New(kv storage.KV) *Store {
	return &Store{
		KV:            kv,
		Users:         newCollection[models.User](kv, KeyUsers),
		Stocks:        newCollection[models.BloodStock](kv, KeyStocks),
		Requests:      newCollection[models.BloodRequest](kv, KeyRequests),
		Feedback:      newCollection[models.Feedback](kv, KeyFeedback),
		Hospitals:     newCollection[models.Hospital](kv, KeyHospitals),
		Chats:         newCollection[models.ChatMessage](kv, KeyChats),
		Certificates:  newCollection[models.Certificate](kv, KeyCertificates),
		Appointments:  newCollection[models.Appointment](kv, KeyAppointments),
		Logs:          newCollection[models.SecurityLog](kv, KeyLogs),
		EmergencyKeys: newCollection[models.EmergencyKey](kv, KeyEmergencyKeys),
	}
}

// Reset deletes every collection, so the next Seed writes the sample data
// again. Other keys on the KV are left alone.
func (s *Store) Reset(ctx context.Context) error {
	for _, key := range Keys {
		if err := s.KV.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	return nil
}
