package clinic

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrAudiologistInactive is returned when booking with an audiologist whose
// is_active flag is false.
var ErrAudiologistInactive = errors.New("audiologist is not active")

type Service struct {
	users        UserRepository
	practices    PracticeRepository
	audiologists AudiologistRepository
	appointments AppointmentRepository
	logger       zerolog.Logger
}

func NewService(users UserRepository, practices PracticeRepository, audiologists AudiologistRepository, appts AppointmentRepository, logger zerolog.Logger) *Service {
	return &Service{
		users:        users,
		practices:    practices,
		audiologists: audiologists,
		appointments: appts,
		logger:       logger.With().Str("component", "clinic").Logger(),
	}
}

// -- User --

// EnsureUser records the caller's identity on first use.
func (s *Service) EnsureUser(ctx context.Context, u *User) error {
	if strings.TrimSpace(u.ID) == "" {
		return invalid("user id is required")
	}
	return s.users.Ensure(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// DeleteUser removes a user together with everything that references it.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id).Msg("user deleted with dependent records")
	return nil
}

// -- Practice --

func (s *Service) CreatePractice(ctx context.Context, p *Practice) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("name is required")
	}
	return s.practices.Create(ctx, p)
}

func (s *Service) GetPractice(ctx context.Context, id uuid.UUID) (*Practice, error) {
	return s.practices.GetByID(ctx, id)
}

func (s *Service) ListPractices(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	return s.practices.List(ctx, limit, offset)
}

func (s *Service) UpdatePractice(ctx context.Context, p *Practice) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("name is required")
	}
	return s.practices.Update(ctx, p)
}

func (s *Service) DeletePractice(ctx context.Context, id uuid.UUID) error {
	if err := s.practices.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("practice_id", id.String()).Msg("practice deleted with dependent records")
	return nil
}

// -- Audiologist --

func (s *Service) CreateAudiologist(ctx context.Context, a *Audiologist) error {
	if strings.TrimSpace(a.UserID) == "" {
		return invalid("user_id is required")
	}
	if a.PracticeID == uuid.Nil {
		return invalid("practice_id is required")
	}
	if a.IsActive == nil {
		active := true
		a.IsActive = &active
	}
	// The practice is checked before the user is recorded so a bad reference
	// leaves nothing behind.
	if _, err := s.practices.GetByID(ctx, a.PracticeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidRef("audiologist_practice_id_fkey")
		}
		return err
	}
	// The audiologist's own identity may not have called the API yet.
	if err := s.EnsureUser(ctx, &User{ID: a.UserID}); err != nil {
		return err
	}
	return s.audiologists.Create(ctx, a)
}

func (s *Service) GetAudiologist(ctx context.Context, id uuid.UUID) (*Audiologist, error) {
	return s.audiologists.GetByID(ctx, id)
}

func (s *Service) ListAudiologists(ctx context.Context, practiceID *uuid.UUID, limit, offset int) ([]*Audiologist, int, error) {
	return s.audiologists.List(ctx, practiceID, limit, offset)
}

func (s *Service) UpdateAudiologist(ctx context.Context, a *Audiologist) error {
	if a.PracticeID == uuid.Nil {
		return invalid("practice_id is required")
	}
	return s.audiologists.Update(ctx, a)
}

func (s *Service) DeleteAudiologist(ctx context.Context, id uuid.UUID) error {
	return s.audiologists.Delete(ctx, id)
}

// -- Appointment --

// CreateAppointment books a new appointment on behalf of creator, whose
// user record is created if this is its first write.
func (s *Service) CreateAppointment(ctx context.Context, creator *User, a *Appointment) error {
	if creator == nil || strings.TrimSpace(creator.ID) == "" {
		return invalid("creator is required")
	}
	a.PatientName = strings.TrimSpace(a.PatientName)
	if a.PatientName == "" {
		return invalid("patient_name is required")
	}
	if a.AudiologistID == uuid.Nil {
		return invalid("audiologist_id is required")
	}
	if a.AppointmentDate.IsZero() {
		return invalid("appointment_date is required")
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	if a.DurationMinutes < 0 {
		return ErrInvalidDuration
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Status != StatusScheduled {
		return invalid("new appointments must be %s", StatusScheduled)
	}

	aud, err := s.audiologists.GetByID(ctx, a.AudiologistID)
	if errors.Is(err, ErrNotFound) {
		return invalidRef("appointment_audiologist_id_fkey")
	}
	if err != nil {
		return err
	}
	if !aud.Active() {
		return ErrAudiologistInactive
	}

	if err := s.EnsureUser(ctx, creator); err != nil {
		return err
	}
	a.CreatedBy = creator.ID
	return s.appointments.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointmentsByAudiologist(ctx context.Context, audiologistID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if audiologistID == uuid.Nil {
		return nil, 0, invalid("audiologist_id is required")
	}
	return s.appointments.ListByAudiologist(ctx, audiologistID, limit, offset)
}

// UpdateAppointment applies a partial update. A status in the patch goes
// through the same transition rules as TransitionAppointment.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	if patch.IsEmpty() {
		return nil, invalid("no fields to update")
	}
	if patch.PatientName != nil && strings.TrimSpace(*patch.PatientName) == "" {
		return nil, invalid("patient_name cannot be empty")
	}
	if patch.AppointmentDate != nil && patch.AppointmentDate.IsZero() {
		return nil, invalid("appointment_date cannot be empty")
	}
	if patch.DurationMinutes != nil && *patch.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	patch.ExpectedStatus = nil

	if patch.Status != nil {
		current, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := ValidateTransition(current.Status, *patch.Status); err != nil {
			return nil, err
		}
		from := current.Status
		patch.ExpectedStatus = &from
	}

	updated, err := s.appointments.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if patch.ExpectedStatus != nil {
		s.logTransition(updated, *patch.ExpectedStatus)
	}
	return updated, nil
}

// TransitionAppointment moves an appointment to the given status. Status and
// updated_at are written together; if another writer changed the status
// first the call fails with a *TransitionError.
func (s *Service) TransitionAppointment(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !to.Valid() {
		return nil, ValidateTransition(StatusScheduled, to)
	}
	return s.UpdateAppointment(ctx, id, AppointmentPatch{Status: &to})
}

func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusCompleted)
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusCancelled)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusNoShow)
}

func (s *Service) logTransition(a *Appointment, from Status) {
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("from", string(from)).
		Str("to", string(a.Status)).
		Msg("appointment status changed")
}
