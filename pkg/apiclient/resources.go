package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Page is a paginated listing as returned by the API.
type Page[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	NextOffset *int `json:"next_offset,omitempty"`
}

type Practice struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Audiologist struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	PracticeID     string    `json:"practice_id"`
	Specialization *string   `json:"specialization,omitempty"`
	IsActive       *bool     `json:"is_active,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewPractice is the body of a create request. The server assigns the id.
type NewPractice struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

type NewAudiologist struct {
	UserID         string  `json:"user_id"`
	PracticeID     string  `json:"practice_id"`
	Specialization *string `json:"specialization,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

type Appointment struct {
	ID              string    `json:"id"`
	PatientName     string    `json:"patient_name"`
	PatientEmail    *string   `json:"patient_email,omitempty"`
	PatientPhone    *string   `json:"patient_phone,omitempty"`
	AudiologistID   string    `json:"audiologist_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type NewAppointment struct {
	PatientName     string    `json:"patient_name"`
	PatientEmail    *string   `json:"patient_email,omitempty"`
	PatientPhone    *string   `json:"patient_phone,omitempty"`
	AudiologistID   string    `json:"audiologist_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
}

// AppointmentPatch changes only the non-nil fields. An empty PatientEmail,
// PatientPhone or Notes clears the stored value.
type AppointmentPatch struct {
	PatientName     *string    `json:"patient_name,omitempty"`
	PatientEmail    *string    `json:"patient_email,omitempty"`
	PatientPhone    *string    `json:"patient_phone,omitempty"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

type Health struct {
	Status string `json:"status"`
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.Request(ctx, "/health", Options{}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// -- Practices --

func (c *Client) ListPractices(ctx context.Context, limit, offset int) (*Page[Practice], error) {
	var page Page[Practice]
	err := c.Request(ctx, "/api/v1/practices", Options{Query: pageQuery(limit, offset)}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) CreatePractice(ctx context.Context, p NewPractice) (*Practice, error) {
	var out Practice
	if err := c.Request(ctx, "/api/v1/practices", Options{Method: http.MethodPost, Body: p}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -- Audiologists --

// ListAudiologists lists audiologists, filtered to one practice when
// practiceID is not empty.
func (c *Client) ListAudiologists(ctx context.Context, practiceID string, limit, offset int) (*Page[Audiologist], error) {
	q := pageQuery(limit, offset)
	if practiceID != "" {
		q.Set("practice_id", practiceID)
	}
	var page Page[Audiologist]
	if err := c.Request(ctx, "/api/v1/audiologists", Options{Query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetAudiologist(ctx context.Context, id string) (*Audiologist, error) {
	var out Audiologist
	if err := c.Request(ctx, "/api/v1/audiologists/"+url.PathEscape(id), Options{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAudiologist(ctx context.Context, a NewAudiologist) (*Audiologist, error) {
	var out Audiologist
	if err := c.Request(ctx, "/api/v1/audiologists", Options{Method: http.MethodPost, Body: a}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -- Appointments --

func (c *Client) ListAppointments(ctx context.Context, audiologistID string, limit, offset int) (*Page[Appointment], error) {
	q := pageQuery(limit, offset)
	q.Set("audiologist_id", audiologistID)
	var page Page[Appointment]
	if err := c.Request(ctx, "/api/v1/appointments", Options{Query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	var out Appointment
	if err := c.Request(ctx, "/api/v1/appointments/"+url.PathEscape(id), Options{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, a NewAppointment) (*Appointment, error) {
	var out Appointment
	if err := c.Request(ctx, "/api/v1/appointments", Options{Method: http.MethodPost, Body: a}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAppointment(ctx context.Context, id string, patch AppointmentPatch) (*Appointment, error) {
	var out Appointment
	opts := Options{Method: http.MethodPatch, Body: patch}
	if err := c.Request(ctx, "/api/v1/appointments/"+url.PathEscape(id), opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransitionAppointment asks the server to move the appointment to status.
// Disallowed moves come back as an *APIError with status 409.
func (c *Client) TransitionAppointment(ctx context.Context, id, status string) (*Appointment, error) {
	var out Appointment
	opts := Options{Method: http.MethodPost, Body: map[string]string{"status": status}}
	if err := c.Request(ctx, "/api/v1/appointments/"+url.PathEscape(id)+"/status", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
