package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dormstack/dormops_client/models"
	"github.com/dormstack/dormops_client/utils"
)

func sessionJSON(sessionId string, status models.SessionStatus) map[string]any {
	return map[string]any{
		"sessionId": sessionId,
		"slotId":    "slot-7",
		"slotIndex": 7,
		"floorNo":   3,
		"status":    string(status),
		"startedBy": "actor-1",
		"startedAt": time.Now().UTC().Format(time.RFC3339),
		"items":     []any{},
		"summary":   []any{},
		"actions":   []any{},
	}
}

func TestFetchSessionMapsStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(error) bool
	}{
		{http.StatusNotFound, `{"code":"SESSION_NOT_FOUND","message":"no such session"}`, func(err error) bool {
			var e *models.NotFoundError
			return errors.As(err, &e) && e.Resource == "session"
		}},
		{http.StatusConflict, `{"code":"SESSION_ACTIVE","message":"slot busy"}`, func(err error) bool {
			var e *models.ConflictError
			return errors.As(err, &e)
		}},
		{http.StatusUnprocessableEntity, `{"message":"bad payload"}`, func(err error) bool {
			var e *models.ValidationError
			return errors.As(err, &e)
		}},
		{http.StatusBadGateway, "upstream down", func(err error) bool {
			var e *models.TransientServiceError
			return errors.As(err, &e)
		}},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		client := NewWithBaseURL(server.URL)
		_, err := client.FetchSession(context.Background(), "s1")
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !tc.check(err) {
			t.Fatalf("status %d: wrong error type: %v", tc.status, err)
		}
	}
}

func TestFetchActiveSessionNilCases(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound, http.StatusUnauthorized} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client := NewWithBaseURL(server.URL)
		session, err := client.FetchActiveSession(context.Background())
		server.Close()
		if err != nil {
			t.Fatalf("status %d: unexpected error: %v", status, err)
		}
		if session != nil {
			t.Fatalf("status %d: expected nil session", status)
		}
	}
}

func TestFetchActiveSessionSendsAuthAndFloor(t *testing.T) {
	var gotAuth, gotFloor string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFloor = r.URL.Query().Get("floor")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessionJSON("s1", models.SessionStatusInProgress))
	}))
	defer server.Close()

	ctx := utils.SetTokenInContext(context.Background(), "tok-123")
	ctx = utils.SetFloorNoInContext(ctx, 3)
	client := NewWithBaseURL(server.URL)
	session, err := client.FetchActiveSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || session.SessionId != "s1" {
		t.Fatalf("expected session s1, got %+v", session)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotFloor != "3" {
		t.Fatalf("expected floor query 3, got %q", gotFloor)
	}
}

func TestFetchSessionRejectsUnknownStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := sessionJSON("s1", models.SessionStatusInProgress)
		payload["status"] = "ARCHIVED"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL)
	_, err := client.FetchSession(context.Background(), "s1")
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestFetchSessionNormalizesLegacyCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := sessionJSON("s1", models.SessionStatusInProgress)
		payload["status"] = "CANCELLED"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL)
	session, err := client.FetchSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != models.SessionStatusCanceled {
		t.Fatalf("expected CANCELED, got %s", session.Status)
	}
}

func TestCreateActionsRejectsEmptyBatch(t *testing.T) {
	client := NewWithBaseURL("http://127.0.0.1:1")
	_, err := client.CreateActions(context.Background(), "s1", nil)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListSlotsParsesItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "active" {
			t.Errorf("expected status=active query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"slotId":"slot-1","slotIndex":1,"floorNo":2,"resourceStatus":"ACTIVE","locked":false}]}`))
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL)
	slots, err := client.ListSlots(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 || slots[0].SlotId != "slot-1" {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	client := NewWithBaseURL("http://127.0.0.1:1")
	_, err := client.FetchSession(context.Background(), "s1")
	var terr *models.TransientServiceError
	if !errors.As(err, &terr) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNewHonorsFixtureMode(t *testing.T) {
	t.Setenv("DORMOPS_API_BASE_URL", "https://dormops.example.com")
	if got := New().baseURL; got != "https://dormops.example.com" {
		t.Fatalf("env URL not honored: %q", got)
	}

	// The fixture switch wins over an explicit env URL.
	t.Setenv("DORMOPS_FIXTURE", "1")
	if got := New().baseURL; got != FixtureBaseURL {
		t.Fatalf("fixture mode not honored: %q", got)
	}
}
