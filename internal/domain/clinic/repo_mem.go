package clinic

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps every table in process memory and enforces the same
// references and cascades as the Postgres schema. It backs the server's
// --memory mode and the package tests.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*User
	practices    map[uuid.UUID]*Practice
	audiologists map[uuid.UUID]*Audiologist
	appointments map[uuid.UUID]*Appointment

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*User),
		practices:    make(map[uuid.UUID]*Practice),
		audiologists: make(map[uuid.UUID]*Audiologist),
		appointments: make(map[uuid.UUID]*Appointment),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Users() UserRepository               { return memUsers{s} }
func (s *MemoryStore) Practices() PracticeRepository       { return memPractices{s} }
func (s *MemoryStore) Audiologists() AudiologistRepository { return memAudiologists{s} }
func (s *MemoryStore) Appointments() AppointmentRepository { return memAppointments{s} }

// Ping satisfies db.Pinger so /health/db works in memory mode.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// deleteAudiologistLocked removes an audiologist and its appointments.
func (s *MemoryStore) deleteAudiologistLocked(id uuid.UUID) {
	delete(s.audiologists, id)
	for apID, ap := range s.appointments {
		if ap.AudiologistID == id {
			delete(s.appointments, apID)
		}
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// =========== Users ===========

type memUsers struct{ s *MemoryStore }

func (r memUsers) Ensure(_ context.Context, u *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.users[u.ID]; ok {
		*u = *existing
		return nil
	}
	u.CreatedAt = r.s.now()
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.users, id)
	for audID, a := range r.s.audiologists {
		if a.UserID == id {
			r.s.deleteAudiologistLocked(audID)
		}
	}
	for apID, ap := range r.s.appointments {
		if ap.CreatedBy == id {
			delete(r.s.appointments, apID)
		}
	}
	return nil
}

// =========== Practices ===========

type memPractices struct{ s *MemoryStore }

func (r memPractices) Create(_ context.Context, p *Practice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.s.now()
	cp := *p
	r.s.practices[p.ID] = &cp
	return nil
}

func (r memPractices) GetByID(_ context.Context, id uuid.UUID) (*Practice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.practices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memPractices) List(_ context.Context, limit, offset int) ([]*Practice, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]*Practice, 0, len(r.s.practices))
	for _, p := range r.s.practices {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return page(all, limit, offset), len(all), nil
}

func (r memPractices) Update(_ context.Context, p *Practice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.practices[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = p.Name
	existing.Address = p.Address
	existing.Phone = p.Phone
	p.CreatedAt = existing.CreatedAt
	return nil
}

func (r memPractices) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.practices[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.practices, id)
	for audID, a := range r.s.audiologists {
		if a.PracticeID == id {
			r.s.deleteAudiologistLocked(audID)
		}
	}
	return nil
}

// =========== Audiologists ===========

type memAudiologists struct{ s *MemoryStore }

func (r memAudiologists) Create(_ context.Context, a *Audiologist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[a.UserID]; !ok {
		return invalidRef("audiologist_user_id_fkey")
	}
	if _, ok := r.s.practices[a.PracticeID]; !ok {
		return invalidRef("audiologist_practice_id_fkey")
	}
	a.ID = uuid.New()
	a.CreatedAt = r.s.now()
	if a.IsActive == nil {
		active := true
		a.IsActive = &active
	}
	cp := *a
	r.s.audiologists[a.ID] = &cp
	return nil
}

func (r memAudiologists) GetByID(_ context.Context, id uuid.UUID) (*Audiologist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.audiologists[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAudiologists) List(_ context.Context, practiceID *uuid.UUID, limit, offset int) ([]*Audiologist, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*Audiologist
	for _, a := range r.s.audiologists {
		if practiceID != nil && a.PracticeID != *practiceID {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return page(all, limit, offset), len(all), nil
}

func (r memAudiologists) Update(_ context.Context, a *Audiologist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.audiologists[a.ID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := r.s.practices[a.PracticeID]; !ok {
		return invalidRef("audiologist_practice_id_fkey")
	}
	existing.PracticeID = a.PracticeID
	existing.Specialization = a.Specialization
	if a.IsActive != nil {
		active := *a.IsActive
		existing.IsActive = &active
	}
	active := *existing.IsActive
	a.UserID = existing.UserID
	a.IsActive = &active
	a.CreatedAt = existing.CreatedAt
	return nil
}

func (r memAudiologists) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.audiologists[id]; !ok {
		return ErrNotFound
	}
	r.s.deleteAudiologistLocked(id)
	return nil
}

// =========== Appointments ===========

type memAppointments struct{ s *MemoryStore }

func (r memAppointments) Create(_ context.Context, a *Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.audiologists[a.AudiologistID]; !ok {
		return invalidRef("appointment_audiologist_id_fkey")
	}
	if _, ok := r.s.users[a.CreatedBy]; !ok {
		return invalidRef("appointment_created_by_fkey")
	}
	if a.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	a.ID = uuid.New()
	a.CreatedAt = r.s.now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r memAppointments) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAppointments) ListByAudiologist(_ context.Context, audiologistID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*Appointment
	for _, a := range r.s.appointments {
		if a.AudiologistID != audiologistID {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].AppointmentDate.Equal(all[j].AppointmentDate) {
			return all[i].AppointmentDate.Before(all[j].AppointmentDate)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return page(all, limit, offset), len(all), nil
}

func (r memAppointments) Update(_ context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.ExpectedStatus != nil && existing.Status != *patch.ExpectedStatus {
		to := existing.Status
		if patch.Status != nil {
			to = *patch.Status
		}
		return nil, &TransitionError{From: existing.Status, To: to}
	}
	if patch.DurationMinutes != nil && *patch.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	updated := *existing
	patch.applyTo(&updated)
	updated.UpdatedAt = r.s.now()
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		updated.UpdatedAt = updated.CreatedAt
	}
	*existing = updated
	return &updated, nil
}

func invalidRef(constraint string) error {
	return fmt.Errorf("%w: %s", ErrInvalidReference, constraint)
}
