package clinic

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDurationMinutes is used when an appointment is created without a
// duration.
const DefaultDurationMinutes = 60

// User is the local record of an identity owned by the external auth
// provider. ID is the token subject.
type User struct {
	ID          string    `db:"id" json:"id"`
	Email       *string   `db:"email" json:"email,omitempty"`
	DisplayName *string   `db:"display_name" json:"display_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Practice maps to the practice table.
type Practice struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Audiologist maps to the audiologist table. Deleting the owning practice or
// user removes the audiologist and its appointments.
type Audiologist struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	PracticeID     uuid.UUID `db:"practice_id" json:"practice_id"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	IsActive       *bool     `db:"is_active" json:"is_active,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Active reports the is_active flag, treating an unset flag as active.
func (a *Audiologist) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientName     string    `db:"patient_name" json:"patient_name"`
	PatientEmail    *string   `db:"patient_email" json:"patient_email,omitempty"`
	PatientPhone    *string   `db:"patient_phone" json:"patient_phone,omitempty"`
	AudiologistID   uuid.UUID `db:"audiologist_id" json:"audiologist_id"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Status          Status    `db:"status" json:"status"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// AppointmentPatch is a partial update. Nil fields are left untouched. An
// empty PatientEmail, PatientPhone or Notes clears the stored value.
//
// A non-nil Status must come with ExpectedStatus: the update only applies
// while the stored status still equals it, so the status and updated_at
// change together or not at all.
type AppointmentPatch struct {
	PatientName     *string    `json:"patient_name,omitempty"`
	PatientEmail    *string    `json:"patient_email,omitempty"`
	PatientPhone    *string    `json:"patient_phone,omitempty"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	Status          *Status    `json:"status,omitempty"`

	ExpectedStatus *Status `json:"-"`
}

// IsEmpty reports whether the patch changes nothing.
func (p AppointmentPatch) IsEmpty() bool {
	return p.PatientName == nil && p.PatientEmail == nil && p.PatientPhone == nil &&
		p.AppointmentDate == nil && p.DurationMinutes == nil && p.Notes == nil && p.Status == nil
}

// applyTo copies the set fields onto a.
func (p AppointmentPatch) applyTo(a *Appointment) {
	if p.PatientName != nil {
		a.PatientName = *p.PatientName
	}
	if p.PatientEmail != nil {
		a.PatientEmail = nullable(p.PatientEmail)
	}
	if p.PatientPhone != nil {
		a.PatientPhone = nullable(p.PatientPhone)
	}
	if p.AppointmentDate != nil {
		a.AppointmentDate = *p.AppointmentDate
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = *p.DurationMinutes
	}
	if p.Notes != nil {
		a.Notes = nullable(p.Notes)
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
}

// nullable maps an empty optional string to nil.
func nullable(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
