package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	want := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "no-referrer",
		"Cache-Control":             "no-store",
	}

	for _, tc := range []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/appointments", http.StatusOK},
		{http.MethodPost, "/api/v1/practices", http.StatusCreated},
		{http.MethodGet, "/health", http.StatusOK},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(tc.method, tc.path, nil), rec)

			err := SecurityHeaders()(func(c echo.Context) error {
				return c.NoContent(tc.status)
			})(c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tc.status {
				t.Errorf("handler status: got %d, want %d", rec.Code, tc.status)
			}
			for header, v := range want {
				if got := rec.Header().Get(header); got != v {
					t.Errorf("%s: got %q, want %q", header, got, v)
				}
			}
		})
	}
}
