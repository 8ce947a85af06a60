package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/models"
	"github.com/harentsoaR/bloodbank-api/internal/storage"
)

// slowKV delays reads to widen the window between load and write.
type slowKV struct {
	storage.KV
	delay time.Duration
}

func (k slowKV) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(k.delay)
	return k.KV.Get(ctx, key)
}

// brokenKV fails writes to one key once failing is set.
type brokenKV struct {
	storage.KV
	key     string
	failing atomic.Bool
}

func (k *brokenKV) Set(ctx context.Context, key string, value []byte) error {
	if key == k.key && k.failing.Load() {
		return errors.New("disk full")
	}
	return k.KV.Set(ctx, key, value)
}

// countingKV counts writes per key.
type countingKV struct {
	storage.KV
	mu     sync.Mutex
	writes map[string]int
}

func (k *countingKV) Set(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	if k.writes == nil {
		k.writes = make(map[string]int)
	}
	k.writes[key]++
	k.mu.Unlock()
	return k.KV.Set(ctx, key, value)
}

func (k *countingKV) count(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.writes[key]
}

// serviceOver builds a service on a seeded KV wrapped by wrap.
func (s *ServiceSuite) serviceOver(wrap func(storage.KV) storage.KV) *Service {
	kv := storage.NewMemory()
	_, err := collections.New(kv).Seed(s.ctx)
	s.Require().NoError(err)
	wrapped := wrap(kv)
	return New(collections.New(wrapped), nil, NewOTPManager(OTPConfig{}), nil, Options{})
}

func stockIn(s *ServiceSuite, svc *Service, bloodType string) int {
	stocks, err := svc.ListStocks(s.ctx)
	s.Require().NoError(err)
	for _, st := range stocks {
		if st.BloodType == bloodType {
			return st.Units
		}
	}
	return 0
}

func (s *ServiceSuite) stockOf(bloodType string) int {
	stocks, err := s.svc.ListStocks(s.ctx)
	s.Require().NoError(err)
	for _, st := range stocks {
		if st.BloodType == bloodType {
			return st.Units
		}
	}
	return 0
}

func (s *ServiceSuite) TestCreateRequestKindFollowsRole() {
	donation, err := s.svc.CreateRequest(s.ctx, s.donor, models.NewRequest{})
	s.Require().NoError(err)
	s.Equal(models.KindDonation, donation.Kind)
	s.Equal("O+", donation.BloodType)
	s.Equal(1, donation.Units)
	s.Equal(models.RequestPending, donation.Status)
	s.Equal(models.UrgencyNormal, donation.Urgency)

	blood, err := s.svc.CreateRequest(s.ctx, s.recipient, models.NewRequest{Units: 3, Urgency: "Medium"})
	s.Require().NoError(err)
	s.Equal(models.KindBlood, blood.Kind)
	s.Equal(models.UrgencyHigh, blood.Urgency)
	s.Equal(s.recipient.ID, blood.Requester.ID)

	_, err = s.svc.CreateRequest(s.ctx, s.admin, models.NewRequest{BloodType: "A+"})
	s.ErrorIs(err, errs.ErrForbidden)

	_, err = s.svc.CreateRequest(s.ctx, s.donor, models.NewRequest{Urgency: "Whenever"})
	s.ErrorIs(err, errs.ErrValidation)
}

func (s *ServiceSuite) TestListRequestsScope() {
	_, err := s.svc.CreateRequest(s.ctx, s.donor, models.NewRequest{})
	s.Require().NoError(err)

	all, err := s.svc.ListRequests(s.ctx, s.admin, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	mine, err := s.svc.ListRequests(s.ctx, s.donor, "")
	s.Require().NoError(err)
	s.Len(mine, 2)
	for _, r := range mine {
		s.Equal(s.donor.ID, r.Requester.ID)
	}
	s.NotEqual("seed-request-1", mine[0].ID, "newest first")
}

func (s *ServiceSuite) TestCompletingDonationAddsStockAndCertificate() {
	before := s.stockOf("O+")

	_, err := s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-1", models.RequestApproved)
	s.Require().NoError(err)
	done, err := s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-1", models.RequestCompleted)
	s.Require().NoError(err)
	s.Equal(models.RequestCompleted, done.Status)

	s.Equal(before+1, s.stockOf("O+"))

	certs, err := s.svc.ListCertificates(s.ctx, s.donor)
	s.Require().NoError(err)
	s.Require().Len(certs, 2)
	s.Equal("seed-request-1", certs[1].RequestID)
	s.Regexp(`^CERT-[A-Z0-9]{4}-[A-Z0-9]{4}$`, certs[1].Code)

	theirs, err := s.svc.ListCertificates(s.ctx, s.recipient)
	s.Require().NoError(err)
	s.Empty(theirs)
}

func (s *ServiceSuite) TestCompletingBloodRequestDrawsStock() {
	before := s.stockOf("A+")
	_, err := s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestApproved)
	s.Require().NoError(err)
	_, err = s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestCompleted)
	s.Require().NoError(err)
	s.Equal(before-2, s.stockOf("A+"))
}

func (s *ServiceSuite) TestBloodRequestFailsOnShortStock() {
	_, err := s.svc.UpdateStock(s.ctx, s.admin, "A+", 1)
	s.Require().NoError(err)
	_, err = s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestApproved)
	s.Require().NoError(err)

	_, err = s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestCompleted)
	s.Require().ErrorIs(err, errs.ErrRejected)
	s.Equal(1, s.stockOf("A+"))

	reqs, err := s.svc.ListRequests(s.ctx, s.admin, models.RequestApproved)
	s.Require().NoError(err)
	s.Len(reqs, 1)
}

func (s *ServiceSuite) TestConcurrentCompletionDrawsStockOnce() {
	svc := s.serviceOver(func(kv storage.KV) storage.KV { return slowKV{KV: kv, delay: 2 * time.Millisecond} })
	_, err := svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestApproved)
	s.Require().NoError(err)
	before := stockIn(s, svc, "A+")

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestCompleted)
			if err == nil {
				successes.Add(1)
				return
			}
			s.ErrorIs(err, errs.ErrRejected)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(before-2, stockIn(s, svc, "A+"))
}

func (s *ServiceSuite) TestFailedCompletionReturnsDrawnStock() {
	var broken *brokenKV
	svc := s.serviceOver(func(kv storage.KV) storage.KV {
		broken = &brokenKV{KV: kv, key: collections.KeyRequests}
		return broken
	})
	_, err := svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestApproved)
	s.Require().NoError(err)
	before := stockIn(s, svc, "A+")

	broken.failing.Store(true)
	_, err = svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-2", models.RequestCompleted)
	s.Require().Error(err)
	s.Equal(errs.KindInternal, errs.KindOf(err))
	s.Equal(before, stockIn(s, svc, "A+"))

	broken.failing.Store(false)
	reqs, err := svc.ListRequests(s.ctx, s.admin, models.RequestApproved)
	s.Require().NoError(err)
	s.Len(reqs, 1)
}

func (s *ServiceSuite) TestRequestTransitions() {
	_, err := s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-1", models.RequestCompleted)
	s.ErrorIs(err, errs.ErrRejected, "pending cannot complete directly")

	_, err = s.svc.UpdateRequestStatus(s.ctx, s.donor, "seed-request-1", models.RequestApproved)
	s.ErrorIs(err, errs.ErrForbidden)

	_, err = s.svc.UpdateRequestStatus(s.ctx, s.admin, "missing", models.RequestApproved)
	s.ErrorIs(err, errs.ErrNotFound)

	_, err = s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-1", models.RequestRejected)
	s.Require().NoError(err)
	_, err = s.svc.UpdateRequestStatus(s.ctx, s.admin, "seed-request-1", models.RequestApproved)
	s.ErrorIs(err, errs.ErrRejected, "rejected is final")
}

func (s *ServiceSuite) TestStockAndHospitals() {
	_, err := s.svc.UpdateStock(s.ctx, s.donor, "A+", 3)
	s.ErrorIs(err, errs.ErrForbidden)
	_, err = s.svc.UpdateStock(s.ctx, s.admin, "A+", -1)
	s.ErrorIs(err, errs.ErrValidation)

	h, err := s.svc.AddHospital(s.ctx, s.admin, models.Hospital{Name: "North Clinic", City: "North"})
	s.Require().NoError(err)
	s.NotEmpty(h.ID)

	_, err = s.svc.AddHospital(s.ctx, s.admin, models.Hospital{Name: "city general hospital"})
	s.Require().ErrorIs(err, errs.ErrRejected)
	s.Contains(errs.Message(err), "already exists")

	s.Require().NoError(s.svc.DeleteHospital(s.ctx, s.admin, h.ID))
	s.ErrorIs(s.svc.DeleteHospital(s.ctx, s.admin, h.ID), errs.ErrNotFound)

	hospitals, err := s.svc.ListHospitals(s.ctx)
	s.Require().NoError(err)
	s.Len(hospitals, 3)
}

func (s *ServiceSuite) TestEmergencyKeyRedeemsOnce() {
	key, err := s.svc.IssueEmergencyKey(s.ctx, s.recipient, "")
	s.Require().NoError(err)
	s.Equal("A+", key.BloodType)
	s.Regexp(`^EMG-[A-Z0-9]{4}-[A-Z0-9]{4}$`, key.Code)
	s.WithinDuration(key.CreatedAt.Add(EmergencyKeyTTL), key.ExpiresAt, time.Second)

	_, err = s.svc.RedeemEmergencyKey(s.ctx, s.donor, key.Code)
	s.ErrorIs(err, errs.ErrForbidden)

	req, err := s.svc.RedeemEmergencyKey(s.ctx, s.recipient, key.Code)
	s.Require().NoError(err)
	s.Equal(models.KindBlood, req.Kind)
	s.Equal(models.UrgencyCritical, req.Urgency)

	_, err = s.svc.RedeemEmergencyKey(s.ctx, s.recipient, key.Code)
	s.ErrorIs(err, errs.ErrRejected)

	_, err = s.svc.IssueEmergencyKey(s.ctx, s.donor, "O+")
	s.ErrorIs(err, errs.ErrForbidden)
}

func (s *ServiceSuite) TestExpiredEmergencyKey() {
	key, err := s.svc.IssueEmergencyKey(s.ctx, s.recipient, "B-")
	s.Require().NoError(err)

	s.svc.now = func() time.Time { return time.Now().Add(EmergencyKeyTTL + time.Minute) }
	_, err = s.svc.RedeemEmergencyKey(s.ctx, s.recipient, key.Code)
	s.Require().ErrorIs(err, errs.ErrRejected)
	s.Contains(errs.Message(err), "expired")
}

func (s *ServiceSuite) TestAppointments() {
	date := time.Now().Add(72 * time.Hour)
	apt, err := s.svc.BookAppointment(s.ctx, s.donor, "seed-hospital-2", date)
	s.Require().NoError(err)
	s.Equal("St. Mary's Medical Center", apt.HospitalName)
	s.Equal(models.AppointmentScheduled, apt.Status)
	s.Len(s.notifier.appointments, 1)

	_, err = s.svc.BookAppointment(s.ctx, s.recipient, "seed-hospital-2", date)
	s.ErrorIs(err, errs.ErrForbidden)
	_, err = s.svc.BookAppointment(s.ctx, s.donor, "nowhere", date)
	s.ErrorIs(err, errs.ErrNotFound)
	_, err = s.svc.BookAppointment(s.ctx, s.donor, "seed-hospital-2", time.Now().Add(-time.Hour))
	s.ErrorIs(err, errs.ErrValidation)

	mine, err := s.svc.ListAppointments(s.ctx, s.donor, AppointmentFilter{})
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(apt.ID, mine[0].ID)

	_, err = s.svc.CancelAppointment(s.ctx, s.recipient, apt.ID)
	s.ErrorIs(err, errs.ErrForbidden)

	cancelled, err := s.svc.CancelAppointment(s.ctx, s.donor, apt.ID)
	s.Require().NoError(err)
	s.Equal(models.AppointmentCancelled, cancelled.Status)
	s.Len(s.notifier.appointments, 2)

	_, err = s.svc.CancelAppointment(s.ctx, s.admin, apt.ID)
	s.ErrorIs(err, errs.ErrRejected)

	scheduled, err := s.svc.ListAppointments(s.ctx, s.admin, AppointmentFilter{Status: models.AppointmentScheduled})
	s.Require().NoError(err)
	s.Len(scheduled, 1)
}

func (s *ServiceSuite) TestFeedback() {
	_, err := s.svc.AddFeedback(s.ctx, s.donor, "Great", 6)
	s.ErrorIs(err, errs.ErrValidation)

	fb, err := s.svc.AddFeedback(s.ctx, s.donor, "Great staff", 4)
	s.Require().NoError(err)

	_, err = s.svc.ReplyFeedback(s.ctx, s.donor, fb.ID, "thanks")
	s.ErrorIs(err, errs.ErrForbidden)

	replied, err := s.svc.ReplyFeedback(s.ctx, s.admin, fb.ID, "Thank you!")
	s.Require().NoError(err)
	s.Equal("Thank you!", replied.Reply)
	s.NotNil(replied.RepliedAt)

	mine, err := s.svc.ListFeedback(s.ctx, s.donor)
	s.Require().NoError(err)
	s.Len(mine, 1)
	all, err := s.svc.ListFeedback(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *ServiceSuite) TestChats() {
	_, err := s.svc.SendMessage(s.ctx, s.admin, s.recipient.ID, "  ")
	s.ErrorIs(err, errs.ErrValidation)

	_, err = s.svc.SendMessage(s.ctx, s.admin, s.recipient.ID, "Yes, A+ is in stock.")
	s.Require().NoError(err)
	_, err = s.svc.SendMessage(s.ctx, s.donor, s.admin.ID, "When can I donate?")
	s.Require().NoError(err)

	thread, err := s.svc.ListChats(s.ctx, s.recipient, s.admin.ID)
	s.Require().NoError(err)
	s.Require().Len(thread, 2)
	s.Equal("Hello, is A+ blood available this week?", thread[0].Text)
	s.True(thread[1].Read)

	adminInbox, err := s.svc.ListChats(s.ctx, s.admin, "")
	s.Require().NoError(err)
	s.Len(adminInbox, 3)
}

func (s *ServiceSuite) TestListChatsWritesOnlyWhenMarkingRead() {
	var counter *countingKV
	svc := s.serviceOver(func(kv storage.KV) storage.KV {
		counter = &countingKV{KV: kv}
		return counter
	})

	thread, err := svc.ListChats(s.ctx, s.admin, "")
	s.Require().NoError(err)
	s.Require().Len(thread, 1)
	s.True(thread[0].Read)
	s.Equal(1, counter.count(collections.KeyChats))

	_, err = svc.ListChats(s.ctx, s.admin, "")
	s.Require().NoError(err)
	_, err = svc.ListChats(s.ctx, s.recipient, "")
	s.Require().NoError(err)
	s.Equal(1, counter.count(collections.KeyChats), "nothing left to mark read")
}

func (s *ServiceSuite) TestListLogsIsAdminOnly() {
	_, err := s.svc.ListLogs(s.ctx, s.donor)
	s.ErrorIs(err, errs.ErrForbidden)
}
