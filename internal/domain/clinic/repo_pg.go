package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/audiocare/practice/internal/platform/db"
)

// mapPgError turns driver errors into the package's sentinel errors.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.ConstraintName)
		}
	}
	return err
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) Ensure(ctx context.Context, u *User) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO app_user (id, email, display_name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING email, display_name, created_at`,
		u.ID, u.Email, u.DisplayName).Scan(&u.Email, &u.DisplayName, &u.CreatedAt)
	return mapPgError(err)
}

func (r *userRepoPG) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, email, display_name, created_at FROM app_user WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &u, nil
}

func (r *userRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Practice Repository ===========

type practiceRepoPG struct{ pool *pgxpool.Pool }

func NewPracticeRepoPG(pool *pgxpool.Pool) PracticeRepository { return &practiceRepoPG{pool: pool} }

const practiceCols = `id, name, address, phone, created_at`

func scanPractice(row pgx.Row) (*Practice, error) {
	var p Practice
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &p.Phone, &p.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &p, nil
}

func (r *practiceRepoPG) Create(ctx context.Context, p *Practice) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO practice (id, name, address, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		p.ID, p.Name, p.Address, p.Phone).Scan(&p.CreatedAt)
	return mapPgError(err)
}

func (r *practiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Practice, error) {
	return scanPractice(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+practiceCols+` FROM practice WHERE id = $1`, id))
}

func (r *practiceRepoPG) List(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM practice`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+practiceCols+` FROM practice ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Practice
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *practiceRepoPG) Update(ctx context.Context, p *Practice) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE practice SET name = $2, address = $3, phone = $4 WHERE id = $1
		RETURNING created_at`,
		p.ID, p.Name, p.Address, p.Phone).Scan(&p.CreatedAt)
	return mapPgError(err)
}

func (r *practiceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM practice WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Audiologist Repository ===========

type audiologistRepoPG struct{ pool *pgxpool.Pool }

func NewAudiologistRepoPG(pool *pgxpool.Pool) AudiologistRepository {
	return &audiologistRepoPG{pool: pool}
}

const audiologistCols = `id, user_id, practice_id, specialization, is_active, created_at`

func scanAudiologist(row pgx.Row) (*Audiologist, error) {
	var a Audiologist
	if err := row.Scan(&a.ID, &a.UserID, &a.PracticeID, &a.Specialization, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &a, nil
}

func (r *audiologistRepoPG) Create(ctx context.Context, a *Audiologist) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO audiologist (id, user_id, practice_id, specialization, is_active)
		VALUES ($1, $2, $3, $4, COALESCE($5, TRUE))
		RETURNING is_active, created_at`,
		a.ID, a.UserID, a.PracticeID, a.Specialization, a.IsActive).Scan(&a.IsActive, &a.CreatedAt)
	return mapPgError(err)
}

func (r *audiologistRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Audiologist, error) {
	return scanAudiologist(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+audiologistCols+` FROM audiologist WHERE id = $1`, id))
}

func (r *audiologistRepoPG) List(ctx context.Context, practiceID *uuid.UUID, limit, offset int) ([]*Audiologist, int, error) {
	q := db.Conn(ctx, r.pool)
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if practiceID != nil {
		where += fmt.Sprintf(` AND practice_id = $%d`, idx)
		args = append(args, *practiceID)
		idx++
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM audiologist`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + audiologistCols + ` FROM audiologist` + where +
		fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Audiologist
	for rows.Next() {
		a, err := scanAudiologist(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *audiologistRepoPG) Update(ctx context.Context, a *Audiologist) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE audiologist SET practice_id = $2, specialization = $3, is_active = COALESCE($4, is_active)
		WHERE id = $1
		RETURNING user_id, is_active, created_at`,
		a.ID, a.PracticeID, a.Specialization, a.IsActive).Scan(&a.UserID, &a.IsActive, &a.CreatedAt)
	return mapPgError(err)
}

func (r *audiologistRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM audiologist WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_name, patient_email, patient_phone, audiologist_id,
	appointment_date, duration_minutes, status, notes, created_by, created_at, updated_at`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.PatientName, &a.PatientEmail, &a.PatientPhone, &a.AudiologistID,
		&a.AppointmentDate, &a.DurationMinutes, &status, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_name, patient_email, patient_phone, audiologist_id,
			appointment_date, duration_minutes, status, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientName, a.PatientEmail, a.PatientPhone, a.AudiologistID,
		a.AppointmentDate, a.DurationMinutes, string(a.Status), a.Notes, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapPgError(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) ListByAudiologist(ctx context.Context, audiologistID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE audiologist_id = $1`, audiologistID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE audiologist_id = $1 ORDER BY appointment_date ASC, id ASC LIMIT $2 OFFSET $3`,
		audiologistID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	var sets []string
	args := []interface{}{id}
	idx := 2
	set := func(col string, v interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, v)
		idx++
	}

	if patch.PatientName != nil {
		set("patient_name", *patch.PatientName)
	}
	if patch.PatientEmail != nil {
		set("patient_email", nullable(patch.PatientEmail))
	}
	if patch.PatientPhone != nil {
		set("patient_phone", nullable(patch.PatientPhone))
	}
	if patch.AppointmentDate != nil {
		set("appointment_date", *patch.AppointmentDate)
	}
	if patch.DurationMinutes != nil {
		set("duration_minutes", *patch.DurationMinutes)
	}
	if patch.Notes != nil {
		set("notes", nullable(patch.Notes))
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	// created_at is the floor so the row check holds even if clocks drift.
	sets = append(sets, "updated_at = GREATEST(NOW(), created_at)")

	query := `UPDATE appointment SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	if patch.ExpectedStatus != nil {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(*patch.ExpectedStatus))
	}
	query += ` RETURNING ` + apptCols

	a, err := scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if errors.Is(err, ErrNotFound) && patch.ExpectedStatus != nil && patch.Status != nil {
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &TransitionError{From: current.Status, To: *patch.Status}
	}
	return a, err
}
