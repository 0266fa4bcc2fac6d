package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/audiocare/practice/internal/config"
	"github.com/audiocare/practice/internal/platform/auth"
	"github.com/audiocare/practice/internal/platform/db"
)

const testKey = "0123456789abcdef0123456789abcdef"

func devConfig() *config.Config {
	return &config.Config{
		Env:            "development",
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}
}

func prodConfig() *config.Config {
	return &config.Config{
		Env:            "production",
		AuthSigningKey: testKey,
		AuthIssuer:     "practice-auth",
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}
}

func signToken(t *testing.T, sub string, roles []string, exp time.Time) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "practice-auth",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: roles,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthIsPublic(t *testing.T) {
	e, _ := newServer(prodConfig(), memoryBackend(), zerolog.Nop())

	for _, path := range []string{"/health", "/health/db"} {
		rec := do(t, e, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestServer_DevModeEndToEnd(t *testing.T) {
	e, _ := newServer(devConfig(), memoryBackend(), zerolog.Nop())

	rec := do(t, e, http.MethodPost, "/api/v1/practices", "", map[string]string{"name": "North Clinic"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create practice: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var practice struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &practice); err != nil {
		t.Fatalf("decode practice: %v", err)
	}

	rec = do(t, e, http.MethodPost, "/api/v1/audiologists", "", map[string]string{
		"user_id":     "aud-1",
		"practice_id": practice.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create audiologist: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var aud struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &aud); err != nil {
		t.Fatalf("decode audiologist: %v", err)
	}

	rec = do(t, e, http.MethodPost, "/api/v1/appointments", "", map[string]interface{}{
		"patient_name":     "Ada",
		"audiologist_id":   aud.ID,
		"appointment_date": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create appointment: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	if appt.Status != "scheduled" {
		t.Fatalf("expected scheduled, got %s", appt.Status)
	}

	rec = do(t, e, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/status", "", map[string]string{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/status", "", map[string]string{"status": "cancelled"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel completed: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// Deleting the practice takes the audiologist and appointment with it.
	rec = do(t, e, http.MethodDelete, "/api/v1/practices/"+practice.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete practice: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodGet, "/api/v1/appointments/"+appt.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("appointment after cascade: expected 404, got %d", rec.Code)
	}
}

func TestServer_ProductionRequiresToken(t *testing.T) {
	e, _ := newServer(prodConfig(), memoryBackend(), zerolog.Nop())

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"missing", "", auth.MsgMissingHeader},
		{"expired", signToken(t, "u1", []string{"admin"}, time.Now().Add(-time.Hour)), auth.MsgSessionExpired},
		{"garbage", "not-a-jwt", auth.MsgSessionInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodGet, "/api/v1/practices", tt.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantMsg) {
				t.Errorf("expected body to contain %q, got %s", tt.wantMsg, rec.Body.String())
			}
		})
	}

	rec := do(t, e, http.MethodGet, "/api/v1/practices", signToken(t, "u1", []string{"front_desk"}, time.Now().Add(time.Hour)), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/api/v1/practices", signToken(t, "u1", []string{"front_desk"}, time.Now().Add(time.Hour)), map[string]string{"name": "x"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("front desk creating practice: expected 403, got %d", rec.Code)
	}
}

func TestServer_RequestIDAndSecurityHeaders(t *testing.T) {
	e, _ := newServer(devConfig(), memoryBackend(), zerolog.Nop())

	rec := do(t, e, http.MethodGet, "/health", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on the response")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected nosniff, got %q", rec.Header().Get("X-Content-Type-Options"))
	}
}

func TestServer_APIIsRateLimited(t *testing.T) {
	cfg := devConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	e, _ := newServer(cfg, memoryBackend(), zerolog.Nop())

	if rec := do(t, e, http.MethodGet, "/api/v1/practices", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec := do(t, e, http.MethodGet, "/api/v1/practices", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Health checks are outside the limited group.
	if rec := do(t, e, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}
}

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	printStatus(cmd, []db.MigrationStatus{
		{Version: 1, Name: "core", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "indexes"},
	})

	got := out.String()
	for _, want := range []string{"VERSION", "core", "applied", "2024-03-01 12:00:00", "indexes", "pending"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestMigrationsFS_DefaultsToEmbedded(t *testing.T) {
	m := db.NewMigrator(nil, migrationsFS("", devConfig()))
	migs, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migs) == 0 || migs[0].Version != 1 {
		t.Fatalf("expected embedded migration 001, got %+v", migs)
	}
}

func TestMigrationsFS_ConfigDirThenFlag(t *testing.T) {
	write := func(dir, name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfgDir, flagDir := t.TempDir(), t.TempDir()
	write(cfgDir, "007_from_config.sql")
	write(flagDir, "009_from_flag.sql")

	cfg := devConfig()
	cfg.MigrationsDir = cfgDir

	migs, err := db.NewMigrator(nil, migrationsFS("", cfg)).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migs) != 1 || migs[0].Version != 7 {
		t.Fatalf("expected MIGRATIONS_DIR to be used, got %+v", migs)
	}

	migs, err = db.NewMigrator(nil, migrationsFS(flagDir, cfg)).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migs) != 1 || migs[0].Version != 9 {
		t.Fatalf("expected --dir to win, got %+v", migs)
	}
}
