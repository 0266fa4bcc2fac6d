package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/audiocare/practice/internal/platform/auth"
)

// AuditEntry records who changed which record.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	ResourceType string
	ResourceID   string
	Action       string // create, update, delete, transition
	Method       string
	Path         string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Timestamp    time.Time
}

// AuditRecorder persists audit entries. The middleware always logs, a
// recorder is optional.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every write under /api/v1/ once the handler has run. Reads are
// not audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") || req.Method == http.MethodGet || req.Method == http.MethodHead {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Method:     req.Method,
				Path:       path,
				IPAddress:  c.RealIP(),
				StatusCode: c.Response().Status,
				UserID:     auth.UserIDFromContext(req.Context()),
				UserRoles:  auth.RolesFromContext(req.Context()),
			}
			if httpErr, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = httpErr.Code
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			entry.ResourceType, entry.ResourceID, entry.Action = describeWrite(req.Method, path)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Str("remote_ip", entry.IPAddress).
				Msg("write")

			return err
		}
	}
}

// describeWrite splits /api/v1/<type>[/<id>[/status]] into its parts.
func describeWrite(method, path string) (resourceType, resourceID, action string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	resourceType = "unknown"
	if len(segments) > 0 && segments[0] != "" {
		resourceType = segments[0]
	}
	if len(segments) > 1 {
		resourceID = segments[1]
	}

	switch method {
	case http.MethodPost:
		action = "create"
		if len(segments) > 2 && segments[2] == "status" {
			action = "transition"
		}
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return resourceType, resourceID, action
}
