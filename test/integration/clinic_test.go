//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/audiocare/practice/internal/domain/clinic"
)

type fixture struct {
	practice    *clinic.Practice
	audiologist *clinic.Audiologist
	creator     *clinic.User
}

func seed(t *testing.T, ctx context.Context, svc *clinic.Service) fixture {
	t.Helper()
	p := &clinic.Practice{Name: "Practice " + uuid.NewString()[:8]}
	if err := svc.CreatePractice(ctx, p); err != nil {
		t.Fatalf("create practice: %v", err)
	}
	userID := "aud-" + uuid.NewString()
	if err := svc.EnsureUser(ctx, &clinic.User{ID: userID}); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	a := &clinic.Audiologist{UserID: userID, PracticeID: p.ID}
	if err := svc.CreateAudiologist(ctx, a); err != nil {
		t.Fatalf("create audiologist: %v", err)
	}
	return fixture{practice: p, audiologist: a, creator: &clinic.User{ID: "desk-" + uuid.NewString()}}
}

func book(t *testing.T, ctx context.Context, svc *clinic.Service, f fixture) *clinic.Appointment {
	t.Helper()
	a := &clinic.Appointment{
		PatientName:     "Grace Hopper",
		AudiologistID:   f.audiologist.ID,
		AppointmentDate: time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second),
	}
	if err := svc.CreateAppointment(ctx, f.creator, a); err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return a
}

func TestPG_CreateAppointmentDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	f := seed(t, ctx, svc)

	a := book(t, ctx, svc, f)
	if a.Status != clinic.StatusScheduled {
		t.Errorf("expected scheduled, got %s", a.Status)
	}
	if a.DurationMinutes != clinic.DefaultDurationMinutes {
		t.Errorf("expected default duration, got %d", a.DurationMinutes)
	}
	if a.CreatedBy != f.creator.ID {
		t.Errorf("expected created_by %s, got %s", f.creator.ID, a.CreatedBy)
	}

	got, err := svc.GetAppointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if !got.AppointmentDate.Equal(a.AppointmentDate) {
		t.Errorf("appointment_date round trip: %v != %v", got.AppointmentDate, a.AppointmentDate)
	}
}

func TestPG_UnknownReferences(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	userID := "nobody-" + uuid.NewString()
	err := svc.CreateAudiologist(ctx, &clinic.Audiologist{UserID: userID, PracticeID: uuid.New()})
	if !errors.Is(err, clinic.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if _, err := svc.GetUser(ctx, userID); !errors.Is(err, clinic.ErrNotFound) {
		t.Errorf("expected no user row after failed create, got %v", err)
	}
}

func TestPG_UpdatesReturnStoredFields(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	f := seed(t, ctx, svc)

	p := &clinic.Practice{ID: f.practice.ID, Name: "Renamed " + uuid.NewString()[:8]}
	if err := svc.UpdatePractice(ctx, p); err != nil {
		t.Fatalf("update practice: %v", err)
	}
	if !p.CreatedAt.Equal(f.practice.CreatedAt) {
		t.Errorf("practice created_at: got %v, want %v", p.CreatedAt, f.practice.CreatedAt)
	}

	a := &clinic.Audiologist{ID: f.audiologist.ID, PracticeID: f.practice.ID}
	if err := svc.UpdateAudiologist(ctx, a); err != nil {
		t.Fatalf("update audiologist: %v", err)
	}
	if a.UserID != f.audiologist.UserID || a.CreatedAt.IsZero() || a.IsActive == nil || !*a.IsActive {
		t.Errorf("audiologist not filled from row: %+v", a)
	}

	if err := svc.UpdatePractice(ctx, &clinic.Practice{ID: uuid.New(), Name: "ghost"}); !errors.Is(err, clinic.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	appt := book(t, ctx, svc, f)
	notes := "first visit"
	if _, err := svc.UpdateAppointment(ctx, appt.ID, clinic.AppointmentPatch{Notes: &notes}); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	empty := ""
	got, err := svc.UpdateAppointment(ctx, appt.ID, clinic.AppointmentPatch{Notes: &empty})
	if err != nil {
		t.Fatalf("clear notes: %v", err)
	}
	if got.Notes != nil {
		t.Errorf("expected notes cleared to NULL, got %q", *got.Notes)
	}
}

func TestPG_TransitionIsAtomicAndFinal(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	f := seed(t, ctx, svc)
	a := book(t, ctx, svc, f)

	time.Sleep(10 * time.Millisecond)
	done, err := svc.CompleteAppointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != clinic.StatusCompleted {
		t.Errorf("expected completed, got %s", done.Status)
	}
	if !done.UpdatedAt.After(a.UpdatedAt) {
		t.Errorf("expected updated_at to advance: before %v after %v", a.UpdatedAt, done.UpdatedAt)
	}

	for _, to := range []clinic.Status{clinic.StatusScheduled, clinic.StatusCancelled, clinic.StatusNoShow} {
		_, err := svc.TransitionAppointment(ctx, a.ID, to)
		var te *clinic.TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("completed -> %s: expected TransitionError, got %v", to, err)
		}
	}

	got, err := svc.GetAppointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != clinic.StatusCompleted || !got.UpdatedAt.Equal(done.UpdatedAt) {
		t.Errorf("rejected transitions must not touch the row: %+v", got)
	}
}

func TestPG_ConcurrentTransitionsOneWins(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	f := seed(t, ctx, svc)
	a := book(t, ctx, svc, f)

	targets := []clinic.Status{clinic.StatusCompleted, clinic.StatusCancelled, clinic.StatusNoShow, clinic.StatusCancelled}
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, to := range targets {
		wg.Add(1)
		go func(to clinic.Status) {
			defer wg.Done()
			if _, err := svc.TransitionAppointment(ctx, a.ID, to); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(to)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one transition to win, got %d", wins)
	}
}

func TestPG_DeletePracticeCascades(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	f := seed(t, ctx, svc)
	a := book(t, ctx, svc, f)

	if err := svc.DeletePractice(ctx, f.practice.ID); err != nil {
		t.Fatalf("delete practice: %v", err)
	}
	if _, err := svc.GetAudiologist(ctx, f.audiologist.ID); !errors.Is(err, clinic.ErrNotFound) {
		t.Errorf("audiologist after cascade: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetAppointment(ctx, a.ID); !errors.Is(err, clinic.ErrNotFound) {
		t.Errorf("appointment after cascade: expected ErrNotFound, got %v", err)
	}
}

func TestPG_DeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	f := seed(t, ctx, svc)
	a := book(t, ctx, svc, f)

	// The creator owns the appointment even though the audiologist survives.
	if err := svc.DeleteUser(ctx, f.creator.ID); err != nil {
		t.Fatalf("delete creator: %v", err)
	}
	if _, err := svc.GetAppointment(ctx, a.ID); !errors.Is(err, clinic.ErrNotFound) {
		t.Errorf("appointment after creator delete: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetAudiologist(ctx, f.audiologist.ID); err != nil {
		t.Errorf("audiologist should survive creator delete: %v", err)
	}

	if err := svc.DeleteUser(ctx, f.audiologist.UserID); err != nil {
		t.Fatalf("delete audiologist user: %v", err)
	}
	if _, err := svc.GetAudiologist(ctx, f.audiologist.ID); !errors.Is(err, clinic.ErrNotFound) {
		t.Errorf("audiologist after user delete: expected ErrNotFound, got %v", err)
	}
}

func TestPG_ListAppointmentsOrderedByDate(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	f := seed(t, ctx, svc)

	base := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		a := &clinic.Appointment{PatientName: "P", AudiologistID: f.audiologist.ID, AppointmentDate: base.Add(offset)}
		if err := svc.CreateAppointment(ctx, f.creator, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, total, err := svc.ListAppointmentsByAudiologist(ctx, f.audiologist.ID, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if !items[0].AppointmentDate.Before(items[1].AppointmentDate) {
		t.Errorf("expected ascending dates, got %v then %v", items[0].AppointmentDate, items[1].AppointmentDate)
	}
}
