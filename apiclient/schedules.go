package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dormstack/dormops_client/models"
	"github.com/dormstack/dormops_client/utils"
)

// ListSchedules implements models.ScheduleAPI.
func (c *Client) ListSchedules(ctx context.Context, status models.ScheduleStatus, limit int) ([]models.InspectionSchedule, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var payload struct {
		Items []models.InspectionSchedule `json:"items"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/fridge/schedules", query, nil, &payload); err != nil {
		return nil, err
	}
	for i := range payload.Items {
		if err := utils.ValidateStruct(&payload.Items[i]); err != nil {
			return nil, models.NewValidationError("invalid schedule payload: " + err.Error())
		}
	}
	return payload.Items, nil
}

// NextSchedule returns the soonest planned schedule, or nil when the backlog
// is empty.
func (c *Client) NextSchedule(ctx context.Context) (*models.InspectionSchedule, error) {
	var schedule models.InspectionSchedule
	status, err := c.do(ctx, http.MethodGet, "/fridge/schedules/next", nil, nil, &schedule)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	if status == http.StatusNoContent || schedule.ScheduleId == "" {
		return nil, nil
	}
	if err := utils.ValidateStruct(&schedule); err != nil {
		return nil, models.NewValidationError("invalid schedule payload: " + err.Error())
	}
	return &schedule, nil
}
