package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/hivewarden/apis-viewer/internal/model"
)

// ErrUnitNotFound is returned when the server does not know the unit.
var ErrUnitNotFound = errors.New("unit not found")

// unitsListResponse is the {"data": [...]} envelope from GET /api/units.
type unitsListResponse struct {
	Data []model.Unit `json:"data"`
}

// unitResponse is the {"data": {...}} envelope from GET /api/units/{id}.
type unitResponse struct {
	Data model.Unit `json:"data"`
}

// ListUnits fetches all detection units visible to the API key.
func (c *Client) ListUnits(ctx context.Context) ([]model.Unit, error) {
	var resp unitsListResponse
	if err := c.get(ctx, "/api/units", nil, &resp); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return resp.Data, nil
}

// GetUnit fetches a single unit by id.
func (c *Client) GetUnit(ctx context.Context, id string) (model.Unit, error) {
	if id == "" {
		return model.Unit{}, errors.New("unit id is required")
	}

	var resp unitResponse
	err := c.get(ctx, "/api/units/"+id, nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return model.Unit{}, ErrUnitNotFound
		}
		return model.Unit{}, fmt.Errorf("get unit: %w", err)
	}

	return resp.Data, nil
}
