package clinic

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/audiocare/practice/internal/platform/auth"
	"github.com/audiocare/practice/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleAudiologist, auth.RoleFrontDesk))
	staff.GET("/practices", h.ListPractices)
	staff.GET("/practices/:id", h.GetPractice)
	staff.GET("/audiologists", h.ListAudiologists)
	staff.GET("/audiologists/:id", h.GetAudiologist)
	staff.GET("/appointments", h.ListAppointments)
	staff.GET("/appointments/:id", h.GetAppointment)
	staff.POST("/appointments", h.CreateAppointment)
	staff.PATCH("/appointments/:id", h.UpdateAppointment)
	staff.POST("/appointments/:id/status", h.TransitionAppointment)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/practices", h.CreatePractice)
	admin.PUT("/practices/:id", h.UpdatePractice)
	admin.DELETE("/practices/:id", h.DeletePractice)
	admin.POST("/audiologists", h.CreateAudiologist)
	admin.PUT("/audiologists/:id", h.UpdateAudiologist)
	admin.DELETE("/audiologists/:id", h.DeleteAudiologist)
	admin.GET("/users/:id", h.GetUser)
	admin.DELETE("/users/:id", h.DeleteUser)
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	var te *TransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrAudiologistInactive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrInvalidReference):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Practice Handlers --

func (h *Handler) CreatePractice(c echo.Context) error {
	var p Practice
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePractice(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPractice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPractice(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPractices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPractices(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePractice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Practice
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePractice(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePractice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePractice(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Audiologist Handlers --

func (h *Handler) CreateAudiologist(c echo.Context) error {
	var a Audiologist
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAudiologist(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAudiologist(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAudiologist(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAudiologists(c echo.Context) error {
	pg := pagination.FromContext(c)
	var practiceID *uuid.UUID
	if raw := c.QueryParam("practice_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid practice_id")
		}
		practiceID = &id
	}
	items, total, err := h.svc.ListAudiologists(c.Request().Context(), practiceID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAudiologist(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a Audiologist
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.UpdateAudiologist(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	updated, err := h.svc.GetAudiologist(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteAudiologist(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAudiologist(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- User Handlers --

func (h *Handler) GetUser(c echo.Context) error {
	u, err := h.svc.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Appointment Handlers --

type createAppointmentRequest struct {
	PatientName     string    `json:"patient_name"`
	PatientEmail    *string   `json:"patient_email"`
	PatientPhone    *string   `json:"patient_phone"`
	AudiologistID   uuid.UUID `json:"audiologist_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
	Notes           *string   `json:"notes"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	a := &Appointment{
		PatientName:     req.PatientName,
		PatientEmail:    req.PatientEmail,
		PatientPhone:    req.PatientPhone,
		AudiologistID:   req.AudiologistID,
		AppointmentDate: req.AppointmentDate,
		DurationMinutes: req.DurationMinutes,
		Status:          req.Status,
		Notes:           req.Notes,
	}
	if err := h.svc.CreateAppointment(ctx, callerFromContext(c), a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	raw := c.QueryParam("audiologist_id")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "audiologist_id is required")
	}
	audID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid audiologist_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointmentsByAudiologist(c.Request().Context(), audID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch AppointmentPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateAppointment(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) TransitionAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	to, err := ParseStatus(req.Status)
	if err != nil {
		return httpError(err)
	}
	updated, err := h.svc.TransitionAppointment(c.Request().Context(), id, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func callerFromContext(c echo.Context) *User {
	ctx := c.Request().Context()
	u := &User{ID: auth.UserIDFromContext(ctx)}
	if email := auth.EmailFromContext(ctx); email != "" {
		u.Email = &email
	}
	if name := auth.NameFromContext(ctx); name != "" {
		u.DisplayName = &name
	}
	return u
}
