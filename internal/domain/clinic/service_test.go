package clinic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	svc := NewService(store.Users(), store.Practices(), store.Audiologists(), store.Appointments(), zerolog.Nop())
	return svc, store
}

func seedAudiologist(t *testing.T, svc *Service) (*User, *Audiologist) {
	t.Helper()
	ctx := context.Background()
	u := &User{ID: "aud-" + uuid.NewString()}
	if err := svc.EnsureUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	p := &Practice{Name: "Quiet Clinic"}
	if err := svc.CreatePractice(ctx, p); err != nil {
		t.Fatal(err)
	}
	a := &Audiologist{UserID: u.ID, PracticeID: p.ID}
	if err := svc.CreateAudiologist(ctx, a); err != nil {
		t.Fatal(err)
	}
	return u, a
}

func newAppointment(audID uuid.UUID) *Appointment {
	return &Appointment{
		PatientName:     "Pat Patient",
		AudiologistID:   audID,
		AppointmentDate: time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC),
	}
}

func TestService_CreatePractice_NameRequired(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreatePractice(context.Background(), &Practice{Name: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestService_CreateAudiologist_DefaultsActive(t *testing.T) {
	svc, _ := newTestService()
	_, a := seedAudiologist(t, svc)
	if a.IsActive == nil || !*a.IsActive {
		t.Error("expected audiologist to default to active")
	}
}

func TestService_CreateAudiologist_UnknownPracticeLeavesNoUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a := &Audiologist{UserID: "stray-aud", PracticeID: uuid.New()}
	if err := svc.CreateAudiologist(ctx, a); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if _, err := svc.GetUser(ctx, "stray-aud"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no user row after failed create, got %v", err)
	}
}

func TestService_UpdatePractice_KeepsCreatedAt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p := &Practice{Name: "Quiet Clinic"}
	if err := svc.CreatePractice(ctx, p); err != nil {
		t.Fatal(err)
	}
	upd := &Practice{ID: p.ID, Name: "Quieter Clinic"}
	if err := svc.UpdatePractice(ctx, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.CreatedAt.IsZero() || !upd.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", p.CreatedAt, upd.CreatedAt)
	}
}

func TestService_UpdateAudiologist_FillsStoredFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	u, a := seedAudiologist(t, svc)

	spec := "pediatric"
	upd := &Audiologist{ID: a.ID, PracticeID: a.PracticeID, Specialization: &spec}
	if err := svc.UpdateAudiologist(ctx, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.UserID != u.ID {
		t.Errorf("expected user_id %q, got %q", u.ID, upd.UserID)
	}
	if upd.IsActive == nil || !*upd.IsActive {
		t.Error("expected is_active to be reported as stored")
	}
	if upd.CreatedAt.IsZero() {
		t.Error("expected created_at to be filled")
	}
}

func TestService_CreateAppointment(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	email := "front@example.com"
	creator := &User{ID: "front-desk-1", Email: &email}
	a := newAppointment(aud.ID)
	if err := svc.CreateAppointment(ctx, creator, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", a.Status)
	}
	if a.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("expected default duration, got %d", a.DurationMinutes)
	}
	if a.CreatedBy != creator.ID {
		t.Errorf("expected created_by %s, got %s", creator.ID, a.CreatedBy)
	}
	if a.UpdatedAt.Before(a.CreatedAt) {
		t.Error("updated_at must not precede created_at")
	}
	if _, err := svc.GetUser(ctx, creator.ID); err != nil {
		t.Errorf("expected creator to be recorded: %v", err)
	}
}

func TestService_CreateAppointment_Validation(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	creator := &User{ID: "front-desk-1"}

	tests := []struct {
		name    string
		creator *User
		mutate  func(a *Appointment)
		want    error
	}{
		{"missing patient", creator, func(a *Appointment) { a.PatientName = "" }, ErrValidation},
		{"missing audiologist", creator, func(a *Appointment) { a.AudiologistID = uuid.Nil }, ErrValidation},
		{"missing date", creator, func(a *Appointment) { a.AppointmentDate = time.Time{} }, ErrValidation},
		{"negative duration", creator, func(a *Appointment) { a.DurationMinutes = -15 }, ErrInvalidDuration},
		{"starts completed", creator, func(a *Appointment) { a.Status = StatusCompleted }, ErrValidation},
		{"unknown audiologist", creator, func(a *Appointment) { a.AudiologistID = uuid.New() }, ErrInvalidReference},
		{"no creator", nil, func(a *Appointment) {}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAppointment(aud.ID)
			tt.mutate(a)
			err := svc.CreateAppointment(context.Background(), tt.creator, a)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_CreateAppointment_InactiveAudiologist(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	inactive := false
	aud.IsActive = &inactive
	if err := svc.UpdateAudiologist(ctx, aud); err != nil {
		t.Fatal(err)
	}
	err := svc.CreateAppointment(ctx, &User{ID: "u"}, newAppointment(aud.ID))
	if !errors.Is(err, ErrAudiologistInactive) {
		t.Errorf("expected ErrAudiologistInactive, got %v", err)
	}
}

func TestService_TransitionAppointment(t *testing.T) {
	for _, to := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		t.Run(string(to), func(t *testing.T) {
			svc, store := newTestService()
			_, aud := seedAudiologist(t, svc)
			ctx := context.Background()

			a := newAppointment(aud.ID)
			if err := svc.CreateAppointment(ctx, &User{ID: "u"}, a); err != nil {
				t.Fatal(err)
			}
			store.now = func() time.Time { return a.CreatedAt.Add(time.Hour) }

			got, err := svc.TransitionAppointment(ctx, a.ID, to)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != to {
				t.Errorf("expected %s, got %s", to, got.Status)
			}
			if !got.UpdatedAt.After(a.UpdatedAt) {
				t.Error("expected updated_at to change with the status")
			}

			// Terminal: every further transition fails and nothing changes.
			for _, next := range AllStatuses() {
				if _, err := svc.TransitionAppointment(ctx, a.ID, next); !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", to, next, err)
				}
			}
			stored, _ := svc.GetAppointment(ctx, a.ID)
			if stored.Status != to || !stored.UpdatedAt.Equal(got.UpdatedAt) {
				t.Errorf("terminal appointment changed: %+v", stored)
			}
		})
	}
}

func TestService_TransitionHelpers(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	helpers := map[Status]func(context.Context, uuid.UUID) (*Appointment, error){
		StatusCompleted: svc.CompleteAppointment,
		StatusCancelled: svc.CancelAppointment,
		StatusNoShow:    svc.MarkNoShow,
	}
	for want, fn := range helpers {
		a := newAppointment(aud.ID)
		if err := svc.CreateAppointment(ctx, &User{ID: "u"}, a); err != nil {
			t.Fatal(err)
		}
		got, err := fn(ctx, a.ID)
		if err != nil {
			t.Fatalf("%s: %v", want, err)
		}
		if got.Status != want {
			t.Errorf("expected %s, got %s", want, got.Status)
		}
	}
}

func TestService_TransitionAppointment_Errors(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	if _, err := svc.CompleteAppointment(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	a := newAppointment(aud.ID)
	if err := svc.CreateAppointment(ctx, &User{ID: "u"}, a); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.TransitionAppointment(ctx, a.ID, Status("archived")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.TransitionAppointment(ctx, a.ID, StatusScheduled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for scheduled -> scheduled, got %v", err)
	}
}

func TestService_TransitionAppointment_ConcurrentWritersOneWins(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	a := newAppointment(aud.ID)
	if err := svc.CreateAppointment(ctx, &User{ID: "u"}, a); err != nil {
		t.Fatal(err)
	}

	targets := []Status{StatusCompleted, StatusCancelled, StatusNoShow, StatusCompleted, StatusCancelled, StatusNoShow}
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for _, to := range targets {
		wg.Add(1)
		go func(to Status) {
			defer wg.Done()
			_, err := svc.TransitionAppointment(ctx, a.ID, to)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}(to)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one transition to win, got %d", successes)
	}
}

func TestService_UpdateAppointment(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	a := newAppointment(aud.ID)
	if err := svc.CreateAppointment(ctx, &User{ID: "u"}, a); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateAppointment(ctx, a.ID, AppointmentPatch{}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for empty patch, got %v", err)
	}
	zero := 0
	if _, err := svc.UpdateAppointment(ctx, a.ID, AppointmentPatch{DurationMinutes: &zero}); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}

	notes := "bring hearing aids"
	ninety := 90
	got, err := svc.UpdateAppointment(ctx, a.ID, AppointmentPatch{Notes: &notes, DurationMinutes: &ninety})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Notes == nil || *got.Notes != notes || got.DurationMinutes != 90 {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.Status != StatusScheduled {
		t.Errorf("status should be untouched, got %s", got.Status)
	}

	cancelled := StatusCancelled
	got, err = svc.UpdateAppointment(ctx, a.ID, AppointmentPatch{Status: &cancelled})
	if err != nil || got.Status != StatusCancelled {
		t.Fatalf("expected cancel through patch, got %v / %v", got, err)
	}
	scheduled := StatusScheduled
	if _, err := svc.UpdateAppointment(ctx, a.ID, AppointmentPatch{Status: &scheduled}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_UpdateAppointment_EmptyStringClears(t *testing.T) {
	svc, _ := newTestService()
	_, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	email, phone, notes := "pat@example.com", "555-0100", "bring hearing aids"
	a := newAppointment(aud.ID)
	a.PatientEmail, a.PatientPhone, a.Notes = &email, &phone, &notes
	if err := svc.CreateAppointment(ctx, &User{ID: "u"}, a); err != nil {
		t.Fatal(err)
	}

	empty := ""
	got, err := svc.UpdateAppointment(ctx, a.ID, AppointmentPatch{Notes: &empty, PatientPhone: &empty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Notes != nil || got.PatientPhone != nil {
		t.Errorf("expected notes and phone cleared, got %v / %v", got.Notes, got.PatientPhone)
	}
	if got.PatientEmail == nil || *got.PatientEmail != email {
		t.Errorf("expected email untouched, got %v", got.PatientEmail)
	}
}

func TestService_ListAppointments_RequiresAudiologist(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.ListAppointmentsByAudiologist(context.Background(), uuid.Nil, 10, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestService_DeleteUser(t *testing.T) {
	svc, _ := newTestService()
	u, aud := seedAudiologist(t, svc)
	ctx := context.Background()

	a := newAppointment(aud.ID)
	if err := svc.CreateAppointment(ctx, &User{ID: "someone-else"}, a); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetAppointment(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected appointment to be removed with its audiologist's user, got %v", err)
	}
}
