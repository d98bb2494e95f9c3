package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dormstack/dormops_client/models"
	"github.com/dormstack/dormops_client/utils"
)

// PreviewReallocation implements models.AdminAPI.
func (c *Client) PreviewReallocation(ctx context.Context, floor int) (*models.ReallocationPreview, error) {
	query := url.Values{}
	query.Set("floor", strconv.Itoa(floor))
	var preview models.ReallocationPreview
	if _, err := c.do(ctx, http.MethodGet, "/fridge/admin/reallocation/preview", query, nil, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// ApplyCompartmentAssignment writes one compartment's room assignment and
// returns how many room links the server created. A room listed twice in the
// plan counts once.
func (c *Client) ApplyCompartmentAssignment(ctx context.Context, floor int, assignment models.CompartmentAssignment) (int, error) {
	body := map[string]any{
		"floor":   floor,
		"roomIds": utils.UniqueSlice(assignment.RoomIds),
	}
	var payload struct {
		CreatedAssignments int `json:"createdAssignments"`
	}
	path := "/fridge/admin/compartments/" + url.PathEscape(assignment.CompartmentId) + "/assignments"
	if _, err := c.do(ctx, http.MethodPut, path, nil, body, &payload); err != nil {
		return 0, err
	}
	return payload.CreatedAssignments, nil
}
