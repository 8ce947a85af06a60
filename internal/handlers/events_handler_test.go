package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/harentsoaR/bloodbank-api/internal/api"
	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/models"
	"github.com/harentsoaR/bloodbank-api/internal/services"
)

// openStream connects to /events with token and returns a scanner over the
// body. The stream is closed when the test's context is cancelled.
func (s *HandlerSuite) openStream(ctx context.Context, baseURL, token string) *bufio.Scanner {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/events?token="+token, nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	return bufio.NewScanner(resp.Body)
}

// readUntilMarker collects data lines up to the stock event carrying marker.
func (s *HandlerSuite) readUntilMarker(scanner *bufio.Scanner, marker int) []string {
	want := `{"units":` + strconv.Itoa(marker) + `}`
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		if strings.Contains(line, want) {
			return data
		}
		data = append(data, line)
	}
	s.FailNow("stream ended before marker")
	return nil
}

func (s *HandlerSuite) TestEventStreamForwardsBusEvents() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?token="+s.donorToken(), nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "text/event-stream")

	s.Require().NoError(s.bus.Publish(ctx, broadcast.EventStocksUpdated, map[string]int{"units": 7}))

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	s.Contains(lines, "event:"+broadcast.EventStocksUpdated)
	s.Contains(lines[len(lines)-1], `{"units":7}`)
}

func (s *HandlerSuite) TestEventStreamNeedsToken() {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestEventStreamRefusesBlockedAccount() {
	donor := s.donorToken()
	w := s.call(http.MethodPost, api.ActionToggleUserStatus, s.adminToken(), api.UserRef{UserID: collections.SeedDonorID})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events?token="+donor, nil))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlerSuite) TestEventStreamHidesOtherAccountsChats() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	admin := s.adminToken()
	stream := s.openStream(ctx, srv.URL, s.donorToken())

	w := s.call(http.MethodPost, api.ActionSendMessage, admin, api.NewMessage{ReceiverID: collections.SeedRecipientID, Text: "only-for-jane"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	w = s.call(http.MethodPost, api.ActionSendMessage, admin, api.NewMessage{ReceiverID: collections.SeedDonorID, Text: "hello-john"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Require().NoError(s.bus.Publish(ctx, broadcast.EventStocksUpdated, map[string]int{"units": 1}))

	data := strings.Join(s.readUntilMarker(stream, 1), "\n")
	s.NotContains(data, "only-for-jane")
	s.Contains(data, "hello-john")
}

func (s *HandlerSuite) TestEventStreamScopesRecordsToOwner() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := s.openStream(ctx, srv.URL, s.donorToken())

	publish := func(event string, payload any) {
		s.Require().NoError(s.bus.Publish(ctx, event, payload))
	}
	publish(broadcast.EventRequestsUpdated, models.BloodRequest{ID: "req-jane", Requester: models.Requester{ID: collections.SeedRecipientID}})
	publish(broadcast.EventRequestsUpdated, models.BloodRequest{ID: "req-john", Requester: models.Requester{ID: collections.SeedDonorID}})
	publish(broadcast.EventAppointmentsUpdated, models.Appointment{ID: "apt-other", DonorID: "someone-else"})
	publish(broadcast.EventUsersUpdated, models.Identity{ID: collections.SeedRecipientID, Email: "jane@example.com"})
	publish(broadcast.EventUserStatus, services.StatusChange{UserID: collections.SeedRecipientID, Status: models.StatusBlocked})
	publish(broadcast.EventUserStatus, services.StatusChange{UserID: collections.SeedDonorID, Status: models.StatusActive})
	publish(broadcast.EventFeedbackUpdated, models.Feedback{ID: "fb-jane", UserID: collections.SeedRecipientID})
	publish(broadcast.EventLogsUpdated, models.SecurityLog{ID: "log-1", Action: "login"})
	publish(broadcast.EventHospitalsUpdated, models.Hospital{ID: "hosp-new"})
	publish(broadcast.EventStocksUpdated, map[string]int{"units": 2})

	data := strings.Join(s.readUntilMarker(stream, 2), "\n")
	s.Contains(data, "req-john")
	s.Contains(data, `"userId":"`+collections.SeedDonorID+`"`)
	s.Contains(data, "hosp-new")
	for _, hidden := range []string{"req-jane", "apt-other", "jane@example.com", collections.SeedRecipientID, "fb-jane", "log-1"} {
		s.NotContains(data, hidden)
	}
}

func (s *HandlerSuite) TestEventStreamShowsAdminEverythingButOthersChats() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := s.openStream(ctx, srv.URL, s.adminToken())

	publish := func(event string, payload any) {
		s.Require().NoError(s.bus.Publish(ctx, event, payload))
	}
	publish(broadcast.EventRequestsUpdated, models.BloodRequest{ID: "req-jane", Requester: models.Requester{ID: collections.SeedRecipientID}})
	publish(broadcast.EventUsersUpdated, map[string]string{"deleted": "gone-user"})
	publish(broadcast.EventLogsUpdated, models.SecurityLog{ID: "log-1", Action: "login"})
	publish(broadcast.EventChatMessage, models.ChatMessage{ID: "chat-private", SenderID: collections.SeedDonorID, ReceiverID: collections.SeedRecipientID})
	publish(broadcast.EventStocksUpdated, map[string]int{"units": 3})

	data := strings.Join(s.readUntilMarker(stream, 3), "\n")
	s.Contains(data, "req-jane")
	s.Contains(data, "gone-user")
	s.Contains(data, "log-1")
	s.NotContains(data, "chat-private")
}

func (s *HandlerSuite) TestVisibleTo() {
	donor := models.Identity{ID: "d1", Role: models.RoleDonor}
	admin := models.Identity{ID: "a1", Role: models.RoleAdmin}
	raw := func(v any) json.RawMessage {
		b, err := json.Marshal(v)
		s.Require().NoError(err)
		return b
	}

	s.True(visibleTo(donor, broadcast.EventStocksUpdated, raw(models.BloodStock{ID: "s"})))
	s.True(visibleTo(donor, broadcast.EventUsersUpdated, raw(map[string]string{"deleted": "d1"})))
	s.False(visibleTo(donor, broadcast.EventUsersUpdated, raw(map[string]string{"deleted": "x"})))
	s.True(visibleTo(donor, broadcast.EventAppointmentsUpdated, raw(models.Appointment{DonorID: "d1"})))
	s.False(visibleTo(donor, broadcast.EventLogsUpdated, raw(models.SecurityLog{ID: "l"})))
	s.False(visibleTo(donor, broadcast.EventRequestsUpdated, json.RawMessage(`not json`)))
	s.True(visibleTo(admin, broadcast.EventRequestsUpdated, json.RawMessage(`not json`)))
	s.True(visibleTo(admin, broadcast.EventChatMessage, raw(models.ChatMessage{SenderID: "a1", ReceiverID: "d1"})))
	s.False(visibleTo(admin, broadcast.EventChatMessage, raw(models.ChatMessage{SenderID: "d1", ReceiverID: "u1"})))
}
