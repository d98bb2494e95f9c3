// Package apiclient implements the dormitory backend contracts over HTTP.
// Payloads are validated and enum-narrowed before any field is trusted;
// transport and status failures map onto the engine's error taxonomy.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dormstack/dormops_client/config"
	"github.com/dormstack/dormops_client/models"
	"github.com/dormstack/dormops_client/utils"
)

type Client struct {
	baseURL string
	http    *http.Client
}

// FixtureBaseURL is where the in-process fixture backend listens.
const FixtureBaseURL = "http://127.0.0.1:8085"

// New builds a client against DORMOPS_API_BASE_URL (default local fixture
// port). DORMOPS_FIXTURE=1 wins over the env URL and pins the client at the
// fixture backend. The bearer token travels in the request context, not the
// client, so one client serves every actor on a shared terminal.
func New() *Client {
	if config.FixtureMode() {
		return NewWithBaseURL(FixtureBaseURL)
	}
	baseURL := strings.TrimSpace(os.Getenv("DORMOPS_API_BASE_URL"))
	if baseURL == "" {
		baseURL = FixtureBaseURL
	}
	return NewWithBaseURL(baseURL)
}

func NewWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiErrorBody is the backend's error envelope.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) (int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := utils.GetTokenFromContext(ctx); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok && correlationId != "" {
		req.Header.Set("X-Correlation-Id", correlationId)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &models.TransientServiceError{Msg: "dormitory service unreachable; try again", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, mapStatusError(resp.StatusCode, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, models.NewValidationError("unexpected response shape: " + err.Error())
	}
	return resp.StatusCode, nil
}

func mapStatusError(status int, raw []byte) error {
	var body apiErrorBody
	_ = json.Unmarshal(raw, &body)
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return &models.NotFoundError{Resource: resourceFromCode(body.Code), Id: ""}
	case status == http.StatusConflict:
		return &models.ConflictError{Msg: message}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return models.NewValidationError(message)
	case status >= 500 || status == http.StatusTooManyRequests:
		return &models.TransientServiceError{Msg: message}
	default:
		return errors.New(message)
	}
}

func resourceFromCode(code string) string {
	switch code {
	case "ACTION_NOT_FOUND":
		return "action"
	case "SESSION_NOT_FOUND":
		return "session"
	case "COMPARTMENT_NOT_FOUND":
		return "compartment"
	default:
		return "resource"
	}
}

func normalizeSession(session *models.InspectionSession) (*models.InspectionSession, error) {
	if err := session.Normalize(); err != nil {
		return nil, err
	}
	return session, nil
}

// FetchSession implements models.SessionAPI.
func (c *Client) FetchSession(ctx context.Context, sessionId string) (*models.InspectionSession, error) {
	var session models.InspectionSession
	if _, err := c.do(ctx, http.MethodGet, "/fridge/inspections/"+url.PathEscape(sessionId), nil, nil, &session); err != nil {
		return nil, err
	}
	return normalizeSession(&session)
}

// FetchActiveSession returns nil without error when no session is active
// (204/404), when unauthenticated (401), or on a floor-scope rejection.
func (c *Client) FetchActiveSession(ctx context.Context) (*models.InspectionSession, error) {
	query := url.Values{}
	if floor, ok := utils.GetFloorNoFromContext(ctx); ok {
		query.Set("floor", strconv.Itoa(floor))
	}
	var session models.InspectionSession
	status, err := c.do(ctx, http.MethodGet, "/fridge/inspections/active", query, nil, &session)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, nil
		}
		return nil, err
	}
	if status == http.StatusNoContent || session.SessionId == "" {
		return nil, nil
	}
	return normalizeSession(&session)
}

func (c *Client) StartSession(ctx context.Context, slotId string, scheduleId string) (*models.InspectionSession, error) {
	body := map[string]any{"slotId": slotId}
	if scheduleId != "" {
		body["scheduleId"] = scheduleId
	}
	var session models.InspectionSession
	if _, err := c.do(ctx, http.MethodPost, "/fridge/inspections", nil, body, &session); err != nil {
		return nil, err
	}
	return normalizeSession(&session)
}

func (c *Client) CreateActions(ctx context.Context, sessionId string, actions []models.ActionRequest) (*models.InspectionSession, error) {
	if len(actions) == 0 {
		return nil, models.NewValidationError("no actions to record")
	}
	body := map[string]any{"actions": actions}
	var session models.InspectionSession
	path := "/fridge/inspections/" + url.PathEscape(sessionId) + "/actions"
	if _, err := c.do(ctx, http.MethodPost, path, nil, body, &session); err != nil {
		return nil, err
	}
	return normalizeSession(&session)
}

func (c *Client) DeleteAction(ctx context.Context, sessionId string, actionId int) (*models.InspectionSession, error) {
	var session models.InspectionSession
	path := "/fridge/inspections/" + url.PathEscape(sessionId) + "/actions/" + strconv.Itoa(actionId)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, nil, &session); err != nil {
		return nil, err
	}
	return normalizeSession(&session)
}

func (c *Client) SubmitSession(ctx context.Context, sessionId string, notes string) (*models.InspectionSession, error) {
	body := map[string]any{}
	if notes != "" {
		body["notes"] = notes
	}
	var session models.InspectionSession
	path := "/fridge/inspections/" + url.PathEscape(sessionId) + "/submit"
	if _, err := c.do(ctx, http.MethodPost, path, nil, body, &session); err != nil {
		return nil, err
	}
	return normalizeSession(&session)
}

func (c *Client) CancelSession(ctx context.Context, sessionId string) error {
	_, err := c.do(ctx, http.MethodDelete, "/fridge/inspections/"+url.PathEscape(sessionId), nil, nil, nil)
	return err
}

func (c *Client) ListSlots(ctx context.Context, activeOnly bool) ([]models.Slot, error) {
	query := url.Values{}
	query.Set("view", "full")
	if activeOnly {
		query.Set("status", "active")
	}
	var payload struct {
		Items []models.Slot `json:"items"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/fridge/slots", query, nil, &payload); err != nil {
		return nil, err
	}
	for i := range payload.Items {
		if err := utils.ValidateStruct(&payload.Items[i]); err != nil {
			return nil, models.NewValidationError("invalid slot payload: " + err.Error())
		}
	}
	return payload.Items, nil
}
