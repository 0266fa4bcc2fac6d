package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when a write points at a practice,
	// audiologist or user that does not exist.
	ErrInvalidReference = errors.New("referenced record does not exist")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidDuration  = errors.New("duration_minutes must be positive")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type UserRepository interface {
	// Ensure inserts the user if it does not exist yet. Existing rows keep
	// their stored fields.
	Ensure(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// Delete removes the user and, by cascade, its audiologists and every
	// appointment it created or that belongs to those audiologists.
	Delete(ctx context.Context, id string) error
}

type PracticeRepository interface {
	Create(ctx context.Context, p *Practice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Practice, error)
	List(ctx context.Context, limit, offset int) ([]*Practice, int, error)
	Update(ctx context.Context, p *Practice) error
	// Delete cascades to the practice's audiologists and their appointments.
	Delete(ctx context.Context, id uuid.UUID) error
}

type AudiologistRepository interface {
	Create(ctx context.Context, a *Audiologist) error
	GetByID(ctx context.Context, id uuid.UUID) (*Audiologist, error)
	// List filters by practice when practiceID is non-nil.
	List(ctx context.Context, practiceID *uuid.UUID, limit, offset int) ([]*Audiologist, int, error)
	Update(ctx context.Context, a *Audiologist) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListByAudiologist returns appointments ordered by appointment_date.
	ListByAudiologist(ctx context.Context, audiologistID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// Update applies patch and refreshes updated_at in a single write and
	// returns the stored row. When patch.ExpectedStatus is set and the row
	// has moved on, it returns a *TransitionError built from the stored status.
	Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error)
}
