package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/ehealth-cst/ehealth-client/internal/api/http"
	"github.com/ehealth-cst/ehealth-client/internal/config"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	"github.com/ehealth-cst/ehealth-client/internal/service"
)

const (
	demoPassword = "password123"
	demoCode     = "123456"
	basePath     = "/api/v1"
)

func testConfig() config.Config {
	return config.Config{
		App:    config.AppConfig{Name: "ehealth-devserver", Version: "test"},
		Server: config.ServerConfig{BasePath: basePath},
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  1,
			BcryptCost:            bcrypt.MinCost,
			DemoPassword:          demoPassword,
			DemoMFACode:           demoCode,
		},
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := testConfig()
	stores := service.SeedStores{
		Users:      repository.NewMemoryUserRepository(),
		Feeds:      repository.NewMemoryFeedRepository(),
		Programmes: repository.NewMemoryProgrammeRepository(),
		Treatments: repository.NewMemoryTreatmentRepository(),
	}
	require.NoError(t, service.SeedDemoData(context.Background(), stores, cfg.Auth, zap.NewNop()))

	return httptransport.NewApp(httptransport.AppDeps{
		Config:     cfg,
		Users:      stores.Users,
		Sessions:   repository.NewMemorySessionRepository(),
		Feeds:      stores.Feeds,
		Programmes: stores.Programmes,
		Treatments: stores.Treatments,
		Registry:   prometheus.NewRegistry(),
	})
}

func do(t *testing.T, app *fiber.App, method, target string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "router-test")
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := decode(t, resp)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := e["code"].(string)
	return code
}

// login returns the access and refresh cookies of a fresh session.
func login(t *testing.T, app *fiber.App, email string) (*http.Cookie, *http.Cookie) {
	t.Helper()
	resp := do(t, app, http.MethodPost, basePath+"/auth/login", domain.LoginCredentials{Email: email, Password: demoPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access, refresh := cookieNamed(resp, domain.AccessTokenCookie), cookieNamed(resp, domain.RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	return access, refresh
}

func TestLogin_SetsScopedCookies(t *testing.T) {
	app := newTestApp(t)
	resp := do(t, app, http.MethodPost, basePath+"/auth/login", domain.LoginCredentials{Email: service.DemoStudentEmail, Password: demoPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	access := cookieNamed(resp, domain.AccessTokenCookie)
	refresh := cookieNamed(resp, domain.RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, "/api/v1/auth/refresh", refresh.Path)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)

	body := decode(t, resp)
	assert.Equal(t, false, body["mfaRequired"])
	user := body["user"].(map[string]any)
	assert.Equal(t, service.DemoStudentEmail, user["email"])
	assert.Equal(t, "STUDENT", user["userType"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodPost, basePath+"/auth/login", domain.LoginCredentials{Email: service.DemoStudentEmail, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Cookies())
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))

	resp = do(t, app, http.MethodPost, basePath+"/auth/login", domain.LoginCredentials{Email: "nobody@rub.edu.bt", Password: demoPassword})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, http.MethodPost, basePath+"/auth/login", domain.LoginCredentials{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSession_RequiresAccessCookie(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, basePath+"/session/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, &http.Cookie{Name: domain.AccessTokenCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	access, _ := login(t, app, service.DemoStudentEmail)
	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode(t, resp)["user"].(map[string]any)
	assert.Equal(t, service.DemoStudentEmail, user["email"])
	assert.NotEmpty(t, user["sessionId"])
}

func TestRefresh_RotatesAndDetectsReplay(t *testing.T) {
	app := newTestApp(t)
	access, refresh := login(t, app, service.DemoStudentEmail)

	resp := do(t, app, http.MethodGet, basePath+"/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newAccess := cookieNamed(resp, domain.AccessTokenCookie)
	newRefresh := cookieNamed(resp, domain.RefreshTokenCookie)
	require.NotNil(t, newAccess)
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, refresh.Value, newRefresh.Value)
	assert.Equal(t, "/api/v1/auth/refresh", newRefresh.Path)

	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, newAccess)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// presenting the rotated token again ends the session
	resp = do(t, app, http.MethodGet, basePath+"/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	for _, c := range resp.Cookies() {
		assert.True(t, c.Expires.Before(time.Now()), "cookie %s should be expired", c.Name)
	}

	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, access)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = do(t, app, http.MethodGet, basePath+"/auth/refresh", nil, newRefresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh_WithoutCookie(t *testing.T) {
	app := newTestApp(t)
	resp := do(t, app, http.MethodGet, basePath+"/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMFA_ChallengeThenVerify(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodPost, basePath+"/auth/login", domain.LoginCredentials{Email: service.DemoDeanEmail, Password: demoPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Cookies())
	assert.Equal(t, true, decode(t, resp)["mfaRequired"])

	resp = do(t, app, http.MethodPost, basePath+"/mfa/verify-login", domain.MFALogin{Email: service.DemoDeanEmail, Code: "000000"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	resp = do(t, app, http.MethodPost, basePath+"/mfa/verify-login", domain.MFALogin{Email: service.DemoDeanEmail, Code: demoCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := cookieNamed(resp, domain.AccessTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, cookieNamed(resp, domain.RefreshTokenCookie))

	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, access)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the challenge is single use
	resp = do(t, app, http.MethodPost, basePath+"/mfa/verify-login", domain.MFALogin{Email: service.DemoDeanEmail, Code: demoCode})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMFA_VerifyWithoutChallenge(t *testing.T) {
	app := newTestApp(t)
	resp := do(t, app, http.MethodPost, basePath+"/mfa/verify-login", domain.MFALogin{Email: service.DemoDeanEmail, Code: demoCode})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_RevokesSessionAndExpiresCookies(t *testing.T) {
	app := newTestApp(t)
	access, refresh := login(t, app, service.DemoStudentEmail)

	resp := do(t, app, http.MethodPost, basePath+"/auth/logout", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	expired := cookieNamed(resp, domain.RefreshTokenCookie)
	require.NotNil(t, expired)
	assert.Equal(t, "/api/v1/auth/refresh", expired.Path)
	assert.True(t, expired.Expires.Before(time.Now()))

	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, access)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = do(t, app, http.MethodGet, basePath+"/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = do(t, app, http.MethodPost, basePath+"/auth/logout", nil, access)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessions_ListAndRevokeOthers(t *testing.T) {
	app := newTestApp(t)
	first, _ := login(t, app, service.DemoStudentEmail)
	current, _ := login(t, app, service.DemoStudentEmail)

	resp := do(t, app, http.MethodGet, basePath+"/session/all", nil, current)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Sessions []domain.Session `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Sessions, 2)
	currentCount := 0
	for _, s := range list.Sessions {
		if s.IsCurrent {
			currentCount++
		}
		assert.Equal(t, "router-test", s.UserAgent)
	}
	assert.Equal(t, 1, currentCount)

	resp = do(t, app, http.MethodDelete, basePath+"/session/delete/all", nil, current)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decode(t, resp)["deleted"])

	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, first)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, current)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessions_DeleteOne(t *testing.T) {
	app := newTestApp(t)
	other, _ := login(t, app, service.DemoStudentEmail)
	current, _ := login(t, app, service.DemoStudentEmail)
	ha, _ := login(t, app, service.DemoHAEmail)

	resp := do(t, app, http.MethodGet, basePath+"/session/", nil, other)
	otherID := decode(t, resp)["user"].(map[string]any)["sessionId"].(string)

	resp = do(t, app, http.MethodDelete, basePath+"/session/"+otherID, nil, ha)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, app, http.MethodDelete, basePath+"/session/"+otherID, nil, current)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/session/", nil, other)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, http.MethodDelete, basePath+"/session/unknown", nil, current)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))
}

func TestToggleAvailability_HealthAssistantOnly(t *testing.T) {
	app := newTestApp(t)
	student, _ := login(t, app, service.DemoStudentEmail)
	ha, _ := login(t, app, service.DemoHAEmail)

	resp := do(t, app, http.MethodPut, basePath+"/ha/toggle-availability", struct{}{}, student)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, app, http.MethodPut, basePath+"/ha/toggle-availability", struct{}{}, ha)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp)["is_available"])

	resp = do(t, app, http.MethodPut, basePath+"/ha/toggle-availability", struct{}{}, ha)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["is_available"])
}

func TestFeeds_List(t *testing.T) {
	app := newTestApp(t)
	access, _ := login(t, app, service.DemoStudentEmail)

	resp := do(t, app, http.MethodGet, basePath+"/feed/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/feed/", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Feeds []domain.Feed `json:"feeds"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Feeds, 2)
}

func TestProbesMetricsAndUnknownRoutes(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, app, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))

	resp = do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "ehealth_devserver_requests_total"))
	assert.True(t, strings.Contains(string(raw), "ehealth_devserver_errors_total"))
}

func sessionUser(t *testing.T, app *fiber.App, access *http.Cookie) map[string]any {
	t.Helper()
	resp := do(t, app, http.MethodGet, basePath+"/session/", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode(t, resp)["user"].(map[string]any)
}

func TestProfile_UpdateAndProgrammes(t *testing.T) {
	app := newTestApp(t)
	access, _ := login(t, app, service.DemoStudentEmail)

	resp := do(t, app, http.MethodGet, basePath+"/user/programmes", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/user/programmes", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var programmes struct {
		Departments []domain.Programme `json:"departments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&programmes))
	require.Len(t, programmes.Departments, len(service.DemoProgrammes))
	target := programmes.Departments[0]

	resp = do(t, app, http.MethodPut, basePath+"/user/update", domain.ProfileUpdate{
		Name: "Karma W", Gender: domain.GenderMale, ContactNumber: "17123456", BloodType: "A-", DepartmentID: target.ID,
	}, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode(t, resp)["user"].(map[string]any)
	assert.Equal(t, "Karma W", updated["name"])
	assert.Equal(t, "A-", updated["blood_type"])

	user := sessionUser(t, app, access)
	assert.Equal(t, "Karma W", user["name"])
	assert.Equal(t, "17123456", user["contact_number"])
	assert.Equal(t, target.ID, user["department_id"])

	resp = do(t, app, http.MethodPut, basePath+"/user/update", domain.ProfileUpdate{Name: "Karma", Gender: domain.GenderMale, ContactNumber: "123"}, access)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, resp))
}

func TestTreatments_History(t *testing.T) {
	app := newTestApp(t)
	student, _ := login(t, app, service.DemoStudentEmail)
	ha, _ := login(t, app, service.DemoHAEmail)
	studentID := sessionUser(t, app, student)["id"].(string)
	haID := sessionUser(t, app, ha)["id"].(string)

	resp := do(t, app, http.MethodGet, basePath+"/treatment/patient/"+studentID, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/treatment/patient/"+studentID, nil, student)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Treatments []domain.Treatment `json:"treatments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Treatments, 2)
	assert.Equal(t, studentID, out.Treatments[0].PatientID)
	assert.NotEmpty(t, out.Treatments[0].Illnesses)

	resp = do(t, app, http.MethodGet, basePath+"/treatment/patient/"+studentID, nil, ha)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/treatment/patient/"+haID, nil, student)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
}

func TestLeave_SetShowCancel(t *testing.T) {
	app := newTestApp(t)
	student, _ := login(t, app, service.DemoStudentEmail)
	ha, _ := login(t, app, service.DemoHAEmail)
	today := domain.Day(time.Now())
	req := domain.LeaveRequest{StartDate: today, EndDate: today.AddDate(0, 0, 2), Reason: "training"}

	resp := do(t, app, http.MethodPost, basePath+"/ha/set-leave", req, student)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, app, http.MethodGet, basePath+"/ha/get-leave", nil, ha)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, app, http.MethodPost, basePath+"/ha/set-leave", req, ha)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	leave := decode(t, resp)["leave"].(map[string]any)
	assert.Equal(t, "training", leave["reason"])

	resp = do(t, app, http.MethodPost, basePath+"/ha/set-leave", req, ha)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	user := sessionUser(t, app, ha)
	assert.Equal(t, true, user["is_onLeave"])
	assert.NotEmpty(t, user["end_date"])

	resp = do(t, app, http.MethodGet, basePath+"/ha/get-leave", nil, ha)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, leave["id"], decode(t, resp)["leave"].(map[string]any)["id"])

	resp = do(t, app, http.MethodPut, basePath+"/ha/cancel-leave", struct{}{}, ha)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, app, http.MethodPut, basePath+"/ha/cancel-leave", struct{}{}, ha)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	user = sessionUser(t, app, ha)
	assert.Equal(t, false, user["is_onLeave"])
	assert.Nil(t, user["end_date"])
}
