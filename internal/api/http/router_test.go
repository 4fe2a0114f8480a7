package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ticketly/ticket-service/internal/api/http/handlers"
	"github.com/ticketly/ticket-service/internal/auth"
	"github.com/ticketly/ticket-service/internal/events"
	"github.com/ticketly/ticket-service/internal/observability"
	"github.com/ticketly/ticket-service/internal/persistence"
	"github.com/ticketly/ticket-service/internal/ratelimit"
	"github.com/ticketly/ticket-service/internal/repository"
	"github.com/ticketly/ticket-service/internal/service"
)

type testServer struct {
	app *fiber.App
}

func newTestServer(t *testing.T, loginMax int) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()

	tokens, err := auth.NewTokenService(auth.TokenSettings{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	policy := auth.NewPolicy(auth.PolicyOptions{})

	authService := service.NewAuthService(service.AuthOptions{AllowStaffSelfSignup: true}, service.AuthDependencies{
		UserRepo: store.Users(), Tokens: tokens, Hasher: hasher, Dispatcher: dispatcher, Logger: logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo: store.Users(), Policy: policy, Dispatcher: dispatcher, Logger: logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.Tickets(), Dispatcher: dispatcher, Logger: logger,
	})

	app := NewApp("ticketly-test", 1<<20, MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        5 * time.Second,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("ticketly-test", "test", map[string]handlers.Pinger{
			"postgres": (*persistence.Postgres)(nil),
			"redis":    (*persistence.Redis)(nil),
		}),
		Metrics:         handlers.NewMetricsHandler(metrics),
		Users:           handlers.NewUsersHandler(authService, handlers.CookieSettings{}, true),
		Profiles:        handlers.NewProfileHandler(userService),
		Tickets:         handlers.NewTicketsHandler(ticketService),
		Authenticator:   auth.NewAuthenticator(tokens, store.Users()),
		Policy:          policy,
		LoginLimiter:    ratelimit.Local(ratelimit.Rule{Name: "login", Max: loginMax, Window: 15 * time.Minute}, logger),
		RegisterLimiter: ratelimit.Local(ratelimit.Rule{Name: "register", Max: 9, Window: 15 * time.Minute}, logger),
	})
	return &testServer{app: app}
}

type response struct {
	status  int
	header  http.Header
	cookies []*http.Cookie
	body    map[string]any
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string, cookies ...*http.Cookie) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return s.send(t, req)
}

func (s *testServer) doForm(t *testing.T, path string, form url.Values, token string) response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, header: resp.Header, cookies: resp.Cookies()}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func (s *testServer) register(t *testing.T, n int, role string) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"first_name": fmt.Sprintf("First%d", n),
		"last_name":  fmt.Sprintf("Last%d", n),
		"email":      fmt.Sprintf("user%d@x.com", n),
		"phone":      fmt.Sprintf("+1555%04d", n),
		"password":   "Passw0rd!",
		"role":       role,
	}, "")
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
}

func (s *testServer) login(t *testing.T, n int) (string, *http.Cookie) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/users/login", map[string]string{
		"email":    fmt.Sprintf("user%d@x.com", n),
		"password": "Passw0rd!",
	}, "")
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	return data(t, resp)["access_token"].(string), findCookie(resp.cookies, "refreshToken")
}

func data(t *testing.T, r response) map[string]any {
	t.Helper()
	d, ok := r.body["data"].(map[string]any)
	require.True(t, ok, "data object in %v", r.body)
	return d
}

func items(t *testing.T, r response) []any {
	t.Helper()
	d, ok := r.body["data"].([]any)
	require.True(t, ok, "data array in %v", r.body)
	return d
}

func errorBody(r response) map[string]any {
	e, _ := r.body["error"].(map[string]any)
	return e
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthLifecycle(t *testing.T) {
	s := newTestServer(t, 5)
	s.register(t, 1, "")

	dup := s.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"first_name": "A", "last_name": "B", "email": "USER1@x.com", "phone": "+1999", "password": "Passw0rd!",
	}, "")
	assert.Equal(t, http.StatusConflict, dup.status)
	assert.Equal(t, "email", errorBody(dup)["details"].(map[string]any)["field"])

	missing := s.do(t, http.MethodPost, "/api/users/register", map[string]string{"email": "a@b.com"}, "")
	assert.Equal(t, http.StatusBadRequest, missing.status)
	assert.Equal(t, "VALIDATION_FAILED", errorBody(missing)["code"])

	token, cookie := s.login(t, 1)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.False(t, cookie.Secure)

	bad := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "user1@x.com", "password": "Wr0ngpass"}, "")
	assert.Equal(t, http.StatusUnauthorized, bad.status)
	assert.Equal(t, "invalid credentials", errorBody(bad)["message"])

	profile := s.do(t, http.MethodGet, "/api/users/profile", nil, token)
	require.Equal(t, http.StatusOK, profile.status)
	assert.Equal(t, "user1@x.com", data(t, profile)["email"])
	assert.NotContains(t, data(t, profile), "role", "clients get the restricted field set")
	assert.NotContains(t, data(t, profile), "password_hash")

	refreshed := s.do(t, http.MethodGet, "/api/users/refresh-token", nil, "", cookie)
	require.Equal(t, http.StatusOK, refreshed.status)
	assert.NotEmpty(t, data(t, refreshed)["access_token"])

	noCookie := s.do(t, http.MethodGet, "/api/users/refresh-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, noCookie.status)

	logout := s.do(t, http.MethodPost, "/api/users/logout", nil, token)
	require.Equal(t, http.StatusOK, logout.status)
	cleared := findCookie(logout.cookies, "refreshToken")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/users/logout", nil, token).status)

	stale := s.do(t, http.MethodGet, "/api/users/refresh-token", nil, "", cookie)
	assert.Equal(t, http.StatusForbidden, stale.status)
}

func TestPasswordRecovery(t *testing.T) {
	s := newTestServer(t, 5)
	s.register(t, 1, "")

	unknown := s.do(t, http.MethodPost, "/api/users/forgot-password", map[string]string{"email": "nobody@x.com"}, "")
	assert.Equal(t, http.StatusNotFound, unknown.status)

	forgot := s.do(t, http.MethodPost, "/api/users/forgot-password", map[string]string{"phone": "+15550001"}, "")
	require.Equal(t, http.StatusOK, forgot.status)
	resetToken := data(t, forgot)["reset_token"].(string)

	weak := s.do(t, http.MethodPost, "/api/users/reset-password/"+resetToken, map[string]string{"password": "weak"}, "")
	assert.Equal(t, http.StatusBadRequest, weak.status)

	reset := s.do(t, http.MethodPost, "/api/users/reset-password/"+resetToken, map[string]string{"password": "N3wPassword"}, "")
	require.Equal(t, http.StatusOK, reset.status)

	login := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "user1@x.com", "password": "N3wPassword"}, "")
	require.Equal(t, http.StatusOK, login.status)
	token := data(t, login)["access_token"].(string)
	id := data(t, login)["user"].(map[string]any)["id"].(string)

	change := s.do(t, http.MethodPut, "/api/users/"+id+"/change-password", map[string]string{
		"current_password": "N3wPassword", "new_password": "An0therOne",
	}, token)
	assert.Equal(t, http.StatusOK, change.status, change.body)
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t, 5)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/tickets", nil, "").status)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/tickets", nil, "not.a.jwt").status)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/users/profile", nil, "").status)
}

func TestTicketFlow(t *testing.T) {
	s := newTestServer(t, 5)
	s.register(t, 1, "client")
	s.register(t, 2, "agent")
	s.register(t, 3, "admin")
	client, _ := s.login(t, 1)
	agent, _ := s.login(t, 2)
	admin, _ := s.login(t, 3)

	var ids []string
	for i := 0; i < 6; i++ {
		created := s.do(t, http.MethodPost, "/api/tickets", map[string]string{
			"screenshot": fmt.Sprintf("https://img.example.com/%d.png", i),
			"summary":    fmt.Sprintf("Checkout fails on step %d", i),
			"status":     "COMPLETED",
		}, client)
		require.Equal(t, http.StatusCreated, created.status, created.body)
		assert.Equal(t, "CREATED", data(t, created)["status"])
		assert.NotContains(t, data(t, created), "created_by")
		ids = append(ids, data(t, created)["id"].(string))
	}

	dup := s.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"screenshot": "https://img.example.com/0.png", "summary": "Duplicate screenshot",
	}, client)
	assert.Equal(t, http.StatusConflict, dup.status)

	forbidden := s.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"screenshot": "https://img.example.com/agent.png", "summary": "Agents cannot create",
	}, agent)
	assert.Equal(t, http.StatusForbidden, forbidden.status)

	page := s.do(t, http.MethodGet, "/api/tickets?page=2", nil, client)
	require.Equal(t, http.StatusOK, page.status)
	assert.Len(t, items(t, page), 1)
	pagination := page.body["pagination"].(map[string]any)
	assert.Equal(t, float64(6), pagination["total"])
	assert.Equal(t, float64(2), pagination["total_pages"])
	assert.Equal(t, float64(2), pagination["current_page"])
	assert.Equal(t, float64(5), pagination["limit"])

	staffView := s.do(t, http.MethodGet, "/api/tickets?limit=10&search=STEP%203", nil, agent)
	require.Equal(t, http.StatusOK, staffView.status)
	found := items(t, staffView)
	require.Len(t, found, 1)
	assert.Equal(t, "user1@x.com", found[0].(map[string]any)["created_by"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/tickets?status=DONE", nil, agent).status)

	target := "/api/tickets/" + ids[0]
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, target, map[string]string{"status": "IN_PROGRESS"}, client).status)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, target, map[string]string{"status": "FINISHED"}, agent).status)
	updated := s.do(t, http.MethodPatch, target, map[string]string{"status": "IN_PROGRESS"}, agent)
	require.Equal(t, http.StatusOK, updated.status)
	assert.Equal(t, "IN_PROGRESS", data(t, updated)["status"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tickets/not-a-uuid", nil, admin).status)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, target, nil, agent).status)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, target, nil, client).status)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, target, nil, admin).status)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/tickets/"+ids[1], nil, admin).status)
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t, 5)
	s.register(t, 1, "client")
	s.register(t, 2, "agent")
	s.register(t, 3, "admin")
	client, _ := s.login(t, 1)
	agent, _ := s.login(t, 2)
	admin, _ := s.login(t, 3)

	for i := 0; i < 2; i++ {
		resp := s.do(t, http.MethodPost, "/api/tickets", map[string]string{
			"screenshot": fmt.Sprintf("data:image/png;base64,aW1n%d", i),
			"summary":    "Login page crashes on submit",
		}, client)
		require.Equal(t, http.StatusCreated, resp.status)
	}

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/users", nil, client).status)
	listed := s.do(t, http.MethodGet, "/api/users/users?search=user1", nil, agent)
	require.Equal(t, http.StatusOK, listed.status)
	users := items(t, listed)
	require.Len(t, users, 1)
	clientID := users[0].(map[string]any)["id"].(string)
	assert.Equal(t, "client", users[0].(map[string]any)["role"])

	all := s.do(t, http.MethodGet, "/api/users", nil, admin)
	require.Equal(t, http.StatusOK, all.status)
	assert.Equal(t, float64(3), all.body["pagination"].(map[string]any)["total"])

	profiles := s.do(t, http.MethodGet, "/api/users/profile?role=agent", nil, admin)
	require.Equal(t, http.StatusOK, profiles.status)
	assert.Len(t, items(t, profiles), 1)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/users/profile/"+clientID+"x", nil, client).status)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/users/profile/garbage", nil, agent).status)

	rename := s.do(t, http.MethodPut, "/api/users/profile/"+clientID, map[string]string{"first_name": "Ada", "last_name": "L"}, admin)
	require.Equal(t, http.StatusOK, rename.status)
	assert.Equal(t, "Ada", data(t, rename)["first_name"])

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, "/api/users/"+clientID, nil, agent).status)
	deleted := s.do(t, http.MethodDelete, "/api/users/"+clientID, nil, admin)
	require.Equal(t, http.StatusOK, deleted.status)
	assert.Equal(t, float64(2), data(t, deleted)["tickets_removed"])
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/users/"+clientID, nil, admin).status)

	tickets := s.do(t, http.MethodGet, "/api/tickets", nil, admin)
	require.Equal(t, http.StatusOK, tickets.status)
	assert.Empty(t, items(t, tickets))

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/tickets", nil, client).status, "deleted user's token no longer authenticates")
}

func TestLoginRateLimited(t *testing.T) {
	s := newTestServer(t, 3)
	creds := map[string]string{"email": "nobody@x.com", "password": "Wr0ngpass"}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/users/login", creds, "").status)
	}
	limited := s.do(t, http.MethodPost, "/api/users/login", creds, "")
	assert.Equal(t, http.StatusTooManyRequests, limited.status)
	assert.Equal(t, "TOO_MANY_REQUESTS", errorBody(limited)["code"])
	assert.NotEmpty(t, limited.header.Get("Retry-After"))
}

func TestHealthMetricsAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, 5)

	live := s.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, live.status)
	assert.Equal(t, "alive", live.body["status"])

	ready := s.do(t, http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, ready.status)
	assert.Equal(t, "disabled", ready.body["dependencies"].(map[string]any)["postgres"])

	missing := s.do(t, http.MethodGet, "/api/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, missing.status)
	assert.Equal(t, "NOT_FOUND", errorBody(missing)["code"])

	metrics := s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, metrics.status)
	requests := data(t, metrics)["requests"].(map[string]any)
	assert.Contains(t, requests, "GET /health/live|200")
}

func TestFormBodiesDoNotAliasStoredUsers(t *testing.T) {
	s := newTestServer(t, 50)

	alice := url.Values{
		"first_name": {"Alice"}, "last_name": {"Smith"}, "email": {"alice@x.com"},
		"phone": {"+15550100"}, "password": {"Passw0rd!"},
	}
	require.Equal(t, http.StatusCreated, s.doForm(t, "/api/users/register", alice, "").status)

	login := s.doForm(t, "/api/users/login", url.Values{"email": {"alice@x.com"}, "password": {"Passw0rd!"}}, "")
	require.Equal(t, http.StatusOK, login.status, login.body)
	token := data(t, login)["access_token"].(string)

	for i := 0; i < 5; i++ {
		other := url.Values{
			"first_name": {"ZZZZZ"}, "last_name": {"YYYYY"}, "email": {fmt.Sprintf("zzzz%d@q.com", i)},
			"phone": {fmt.Sprintf("+1999999%d", i)}, "password": {"Passw0rd!"},
		}
		require.Equal(t, http.StatusCreated, s.doForm(t, "/api/users/register", other, "").status)
	}

	profile := s.do(t, http.MethodGet, "/api/users/profile", nil, token)
	require.Equal(t, http.StatusOK, profile.status)
	assert.Equal(t, "alice@x.com", data(t, profile)["email"])
	assert.Equal(t, "Alice", data(t, profile)["first_name"])
	assert.Equal(t, "Smith", data(t, profile)["last_name"])
	assert.Equal(t, "+15550100", data(t, profile)["phone"])

	again := s.doForm(t, "/api/users/login", url.Values{"email": {"alice@x.com"}, "password": {"Passw0rd!"}}, "")
	assert.Equal(t, http.StatusOK, again.status, again.body)
}
