package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/crewzy/internal/dispatch"
	"github.com/spigell/crewzy/internal/geo"
	"github.com/spigell/crewzy/internal/records"
)

// AssignEmployeeRequest is the body of POST /assign-employee. Coordinates is
// either a [lon, lat] pair or a location token; eLoc is always a token.
type AssignEmployeeRequest struct {
	Name        string          `json:"name" validate:"required"`
	Number      string          `json:"number" validate:"required"`
	Coordinates json.RawMessage `json:"coordinates" validate:"required_without=ELoc"`
	ELoc        string          `json:"eLoc" validate:"required_without=Coordinates"`
	Task        string          `json:"task" validate:"required"`
}

// ToDispatchRequest converts the DTO into a dispatch.Request.
func (r *AssignEmployeeRequest) ToDispatchRequest() (dispatch.Request, error) {
	location, err := r.location()
	if err != nil {
		return dispatch.Request{}, err
	}

	return dispatch.Request{
		CustomerName:     strings.TrimSpace(r.Name),
		CustomerNumber:   strings.TrimSpace(r.Number),
		CustomerLocation: location,
		TaskDescription:  strings.TrimSpace(r.Task),
	}, nil
}

func (r *AssignEmployeeRequest) location() (records.Location, error) {
	location := records.Location{Token: strings.TrimSpace(r.ELoc)}

	raw := bytes.TrimSpace(r.Coordinates)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return location, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return records.Location{}, fmt.Errorf("%w: %v", geo.ErrInvalidCoordinate, err)
	}

	if token, ok := value.(string); ok {
		if location.Token == "" {
			location.Token = strings.TrimSpace(token)
		}
		return location, nil
	}

	point, err := geo.ParsePoint(value)
	if err != nil {
		return records.Location{}, err
	}
	location.Point = &point

	return location, nil
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID string `json:"_id" validate:"required"`
	Query  string `json:"query" validate:"required"`
}

// ChatResponse is the body of every /chat reply.
type ChatResponse struct {
	Response string `json:"response"`
}
