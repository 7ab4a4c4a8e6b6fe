// Package records maps raw store documents into typed employee, user and
// task shapes.
package records

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spigell/crewzy/internal/geo"
	"github.com/spigell/crewzy/internal/store"

	"github.com/mitchellh/mapstructure"
)

// Location is where an employee, task or customer is: raw coordinates, an
// opaque routing token (eLoc), or both.
type Location struct {
	Point *geo.Point `json:"coordinates,omitempty"`
	Token string     `json:"eLoc,omitempty"`
}

// Usable reports whether the location can take part in a distance lookup.
func (l Location) Usable() bool {
	return l.Point != nil || strings.TrimSpace(l.Token) != ""
}

// RoutingToken returns the value sent to the routing API: the eLoc when
// present, otherwise "lon,lat".
func (l Location) RoutingToken() string {
	if token := strings.TrimSpace(l.Token); token != "" {
		return token
	}
	if l.Point != nil {
		return l.Point.String()
	}
	return ""
}

// Employee is a user document that can be dispatched.
// Required: ID. Everything else is optional in the store.
type Employee struct {
	ID           string   `json:"_id"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	Role         string   `json:"role,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Category     string   `json:"subRole,omitempty"`
	Skills       []string `json:"skills"`
	WorkType     string   `json:"workType,omitempty"`
	FullAddress  string   `json:"fullAddress,omitempty"`
	Pincode      string   `json:"pincode,omitempty"`
	Location
}

// User is the subset of a user document the query assistant needs.
// Required: ID and Role.
type User struct {
	ID           string `json:"_id"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role"`
	Organization string `json:"organization,omitempty"`
	Category     string `json:"subRole,omitempty"`
}

// Task is a customer task document. Required: ID, Name, Task, Status.
type Task struct {
	ID           string     `json:"_id"`
	Name         string     `json:"name"`
	ContactNo    string     `json:"contactNo,omitempty"`
	FullAddress  string     `json:"fullAddress,omitempty"`
	Pincode      string     `json:"pincode,omitempty"`
	Task         string     `json:"task"`
	AssigneeID   string     `json:"assigneeId,omitempty"`
	Status       string     `json:"status"`
	ExpectedDate *time.Time `json:"expectedDate,omitempty"`
	RevisitDate  *time.Time `json:"revisitDate,omitempty"`
	Location
}

type employeeDoc struct {
	ID           any      `mapstructure:"_id"`
	Name         string   `mapstructure:"name"`
	Email        string   `mapstructure:"email"`
	Role         string   `mapstructure:"role"`
	Organization string   `mapstructure:"organization"`
	SubRole      string   `mapstructure:"subRole"`
	Skills       []string `mapstructure:"skills"`
	WorkType     string   `mapstructure:"workType"`
	FullAddress  string   `mapstructure:"fullAddress"`
	Pincode      string   `mapstructure:"pincode"`
	ELoc         string   `mapstructure:"eLoc"`
	Coordinates  any      `mapstructure:"coordinates"`
}

type taskDoc struct {
	ID           any        `mapstructure:"_id"`
	Name         string     `mapstructure:"name"`
	ContactNo    string     `mapstructure:"contactNo"`
	FullAddress  string     `mapstructure:"fullAddress"`
	Pincode      string     `mapstructure:"pincode"`
	Task         string     `mapstructure:"task"`
	AssigneeID   any        `mapstructure:"assigneeId"`
	Status       string     `mapstructure:"status"`
	ExpectedDate *time.Time `mapstructure:"expectedDate"`
	RevisitDate  *time.Time `mapstructure:"revisitDate"`
	ELoc         string     `mapstructure:"eLoc"`
	Coordinates  any        `mapstructure:"coordinates"`
}

// LocationIssue describes coordinates that were present but unusable.
type LocationIssue struct {
	Err error
}

// EmployeeFromDocument maps a user document into an Employee. Malformed
// coordinates do not fail the mapping: the point is left nil and the problem
// is returned as a LocationIssue for the caller to log.
func EmployeeFromDocument(doc store.Document) (Employee, *LocationIssue, error) {
	var raw employeeDoc
	if err := decode(doc, &raw); err != nil {
		return Employee{}, nil, fmt.Errorf("decode employee %s: %w", doc.ID(), err)
	}

	id := store.IDString(raw.ID)
	if id == "" {
		return Employee{}, nil, fmt.Errorf("decode employee: missing _id")
	}

	loc, issue := location(raw.Coordinates, raw.ELoc)

	skills := raw.Skills
	if skills == nil {
		skills = []string{}
	}

	return Employee{
		ID:           id,
		Name:         strings.TrimSpace(raw.Name),
		Email:        strings.TrimSpace(raw.Email),
		Role:         strings.TrimSpace(raw.Role),
		Organization: strings.TrimSpace(raw.Organization),
		Category:     strings.TrimSpace(raw.SubRole),
		Skills:       skills,
		WorkType:     strings.TrimSpace(raw.WorkType),
		FullAddress:  strings.TrimSpace(raw.FullAddress),
		Pincode:      strings.TrimSpace(raw.Pincode),
		Location:     loc,
	}, issue, nil
}

// UserFromDocument maps a user document into a User.
func UserFromDocument(doc store.Document) (User, error) {
	var raw employeeDoc
	if err := decode(doc, &raw); err != nil {
		return User{}, fmt.Errorf("decode user %s: %w", doc.ID(), err)
	}

	id := store.IDString(raw.ID)
	if id == "" {
		return User{}, fmt.Errorf("decode user: missing _id")
	}

	return User{
		ID:           id,
		Name:         strings.TrimSpace(raw.Name),
		Email:        strings.TrimSpace(raw.Email),
		Role:         strings.ToLower(strings.TrimSpace(raw.Role)),
		Organization: strings.TrimSpace(raw.Organization),
		Category:     strings.TrimSpace(raw.SubRole),
	}, nil
}

// TaskFromDocument maps a task document into a Task.
func TaskFromDocument(doc store.Document) (Task, error) {
	var raw taskDoc
	if err := decode(doc, &raw); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", doc.ID(), err)
	}

	id := store.IDString(raw.ID)
	if id == "" {
		return Task{}, fmt.Errorf("decode task: missing _id")
	}

	loc, _ := location(raw.Coordinates, raw.ELoc)

	return Task{
		ID:           id,
		Name:         strings.TrimSpace(raw.Name),
		ContactNo:    strings.TrimSpace(raw.ContactNo),
		FullAddress:  strings.TrimSpace(raw.FullAddress),
		Pincode:      strings.TrimSpace(raw.Pincode),
		Task:         strings.TrimSpace(raw.Task),
		AssigneeID:   store.IDString(raw.AssigneeID),
		Status:       strings.TrimSpace(raw.Status),
		ExpectedDate: raw.ExpectedDate,
		RevisitDate:  raw.RevisitDate,
		Location:     loc,
	}, nil
}

func location(coordinates any, token string) (Location, *LocationIssue) {
	loc := Location{Token: strings.TrimSpace(token)}

	if isEmpty(coordinates) {
		return loc, nil
	}

	point, err := geo.ParsePoint(coordinates)
	if err != nil {
		return loc, &LocationIssue{Err: err}
	}
	loc.Point = &point

	return loc, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		return rv.Len() == 0
	}
	return false
}

func decode(doc store.Document, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]any(doc))
}
