package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medisos/dispatch/internal/config"
	"github.com/medisos/dispatch/internal/platform/db"
)

const testSecret = "test-secret-that-is-long-enough-32b"

func testConfig() *config.Config {
	return &config.Config{
		Port:             "8000",
		Env:              "development",
		JWTSecret:        testSecret,
		CORSOrigins:      []string{"http://localhost:3000"},
		RateLimitRPS:     100,
		RateLimitBurst:   100,
		RequestTimeout:   5 * time.Second,
		HospitalCacheTTL: time.Minute,
	}
}

func newTestServer(t *testing.T, rdb *redis.Client) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return newServer(testConfig(), zerolog.Nop(), mock, rdb, prometheus.NewRegistry()), mock
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func serve(h http.Handler, method, target, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJWTConfig(t *testing.T) {
	cfg := testConfig()
	cfg.AuthIssuer = "https://auth.example.com"

	jc := jwtConfig(cfg)
	if string(jc.SigningKey) != testSecret || jc.Issuer != cfg.AuthIssuer {
		t.Errorf("unexpected jwt config %+v", jc)
	}

	cfg.JWTSecret = ""
	cfg.AuthJWKSURL = "https://auth.example.com/jwks"
	jc = jwtConfig(cfg)
	if jc.SigningKey != nil || jc.JWKSURL == "" {
		t.Errorf("expected JWKS-only config, got %+v", jc)
	}
}

func TestServer_Health(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := serve(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on every response")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestServer_HealthDB(t *testing.T) {
	h, mock := newTestServer(t, nil)
	mock.ExpectPing()

	rec := serve(h, http.MethodGet, "/health/db", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestServer_RequiresToken(t *testing.T) {
	h, _ := newTestServer(t, nil)

	for _, target := range []string{"/emergency/sos/latest", "/hospital/emergency/requests"} {
		rec := serve(h, http.MethodGet, target, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("%s: expected error body, got %s", target, rec.Body.String())
		}
	}
}

func TestServer_CreateSOSAndMetrics(t *testing.T) {
	h, mock := newTestServer(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO emergency_requests").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	rec := serve(h, http.MethodPost, "/emergency/sos", bearer(t, "7"), `{"latitude":12.97,"longitude":77.59}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"request_id":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	rec = serve(h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sos_requests_created_total 1") {
		t.Errorf("expected created counter in metrics output")
	}
	if !strings.Contains(rec.Body.String(), `path="/emergency/sos"`) {
		t.Errorf("expected route template label in metrics output")
	}
}

func TestServer_CORSPreflightSkipsAuth(t *testing.T) {
	h, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/emergency/sos", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("expected allowed origin header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestServer_HospitalTokenCannotCreate(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := serve(h, http.MethodPost, "/emergency/sos", bearer(t, "hospital_3"), `{"latitude":1,"longitude":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Unauthorized"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestServer_WorklistUsesHospitalCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	h, mock := newTestServer(t, rdb)

	hospitalCols := []string{"id", "name", "phone", "latitude", "longitude"}
	lat, lng := 12.98, 77.60
	mock.ExpectQuery("FROM hospitals WHERE id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(hospitalCols).AddRow(int64(3), "City Hospital", (*string)(nil), &lat, &lng))

	viewCols := []string{
		"id", "user_id", "latitude", "longitude", "emergency_type", "note",
		"status", "hospital_id", "created_at", "acknowledged_at", "resolved_at",
		"name", "phone", "blood_group",
	}
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("WHERE er.status = ").WillReturnRows(pgxmock.NewRows(viewCols))
		mock.ExpectQuery("WHERE er.hospital_id = ").WillReturnRows(pgxmock.NewRows(viewCols))
	}

	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodGet, "/hospital/emergency/requests", bearer(t, "hospital_3"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	if !mr.Exists("sos:hospital:3") {
		t.Error("expected hospital location to be cached")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateCmd_Subcommands(t *testing.T) {
	cmd := migrateCmd()
	found := map[string]bool{}
	for _, sub := range cmd.Commands() {
		found[sub.Name()] = true
		if sub.Flags().Lookup("dir") == nil {
			t.Errorf("%s: expected --dir flag", sub.Name())
		}
	}
	if !found["up"] || !found["status"] {
		t.Errorf("expected up and status subcommands, got %v", found)
	}
}

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	printStatus(cmd, []db.MigrationStatus{
		{Version: 1, Name: "emergency_requests", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "hospital_phone"},
	})

	got := out.String()
	if !strings.Contains(got, "2024-05-01 09:00:00") {
		t.Errorf("expected applied timestamp, got:\n%s", got)
	}
	if !strings.Contains(got, "pending") {
		t.Errorf("expected pending row, got:\n%s", got)
	}
}
