package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eventhub/eventhub/internal/auth"
	"github.com/eventhub/eventhub/internal/model"
	"github.com/eventhub/eventhub/internal/repository"
	"github.com/eventhub/eventhub/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type testServer struct {
	store   *repository.MemoryStore
	tokens  *auth.TokenIssuer
	handler http.Handler
}

func newTestServer(t *testing.T, rdb *redis.Client, quota int) *testServer {
	t.Helper()
	log, _ := logtest.NewNullLogger()

	store := repository.NewMemoryStore(time.Second)
	tokens := auth.NewTokenIssuer(strings.Repeat("t", 32), time.Hour)
	generous := LimiterConfig{RPS: 1000, Burst: 1000}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewRouter(ctx, Deps{
		Events:        service.NewEventService(store.Events(), store.Registrations()),
		Registrations: service.NewRegistrationService(store.Events(), store.Registrations(), store.Users()),
		Accounts:      service.NewAccountService(store.Users(), tokens),
		Tokens:        tokens,
		Users:         store.Users(),
		Log:           log,
		Redis:         rdb,
		Quota:         quota,
		QuotaWindow:   time.Hour,
		RateLimit:     generous,
		AuthRateLimit: generous,
		CORSOrigins:   []string{"https://app.example"},
	})
	return &testServer{store: store, tokens: tokens, handler: h}
}

// user creates an account with roles and returns a bearer token for it.
func (s *testServer) user(t *testing.T, id string, roles ...model.Role) string {
	t.Helper()
	u := &model.User{ID: id, Name: "User " + id, Email: id + "@example.com", Roles: roles}
	if err := s.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) createEvent(t *testing.T, token string, capacity int) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/events", token, model.CreateEventRequest{
		Title:       "Release party",
		Description: "Celebrating the new release",
		Date:        time.Now().Add(72 * time.Hour),
		Capacity:    capacity,
		Location:    "Rooftop",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", w.Code, w.Body.String())
	}
	var ev model.EventDetails
	decode(t, w, &ev)
	return ev.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) model.ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, status, w.Body.String())
	}
	var resp model.ErrorResponse
	decode(t, w, &resp)
	if resp.Code != code {
		t.Fatalf("code = %q, want %q", resp.Code, code)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestAccountFlow(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.do(t, http.MethodPost, "/auth/signup", "", model.SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass"})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "s3cret") || strings.Contains(w.Body.String(), "$2a$") {
		t.Fatalf("signup response leaks password material: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/auth/signup", "", model.SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass"})
	expectError(t, w, http.StatusConflict, CodeConflict)

	w = s.do(t, http.MethodPost, "/auth/signup", "", model.SignUpRequest{Name: "Bo", Email: "bo@example.com", Password: strings.Repeat("ü", 50)})
	expectError(t, w, http.StatusBadRequest, CodeValidation)

	w = s.do(t, http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
	expectError(t, w, http.StatusUnauthorized, CodeUnauthorized)

	w = s.do(t, http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "ada@example.com", Password: "s3cret-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("session cookie = %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me with cookie: %d %s", rec.Code, rec.Body.String())
	}
	var me model.User
	decode(t, rec, &me)
	if me.Email != "ada@example.com" {
		t.Fatalf("me = %+v", me)
	}

	expectError(t, s.do(t, http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized, CodeUnauthorized)

	w = s.do(t, http.MethodPost, "/auth/logout", "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", w.Code)
	}
	cleared := w.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("logout cookies = %+v", cleared)
	}
}

func TestRegistrationOverHTTP(t *testing.T) {
	s := newTestServer(t, nil, 0)
	organizer := s.user(t, "org", model.RoleOrganizer)
	alice := s.user(t, "alice", model.RoleUser)
	bob := s.user(t, "bob", model.RoleUser)
	guest := s.user(t, "guest", model.RoleGuest)

	eventID := s.createEvent(t, organizer, 1)
	path := "/events/" + eventID + "/register"

	expectError(t, s.do(t, http.MethodPost, path, "", nil), http.StatusUnauthorized, CodeUnauthorized)
	expectError(t, s.do(t, http.MethodPost, path, guest, nil), http.StatusForbidden, CodeForbidden)
	expectError(t, s.do(t, http.MethodPost, "/events/missing/register", alice, nil), http.StatusNotFound, CodeNotFound)

	w := s.do(t, http.MethodPost, path, alice, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("alice register: %d %s", w.Code, w.Body.String())
	}
	expectError(t, s.do(t, http.MethodPost, path, alice, nil), http.StatusConflict, CodeConflict)

	full := expectError(t, s.do(t, http.MethodPost, path, bob, nil), http.StatusConflict, CodeConflict)
	if full.Error != "event is full" {
		t.Fatalf("error = %q, want event is full", full.Error)
	}

	w = s.do(t, http.MethodGet, "/events/"+eventID, "", nil)
	if !strings.Contains(w.Body.String(), `"remaining":0`) {
		t.Fatalf("event body missing remaining slots: %s", w.Body.String())
	}
	var ev model.EventDetails
	decode(t, w, &ev)
	if ev.VisitorCount != 1 || ev.Remaining != 0 {
		t.Fatalf("visitor_count = %d remaining = %d, want 1 and 0", ev.VisitorCount, ev.Remaining)
	}

	if w := s.do(t, http.MethodDelete, path, alice, nil); w.Code != http.StatusNoContent {
		t.Fatalf("unregister: %d %s", w.Code, w.Body.String())
	}
	expectError(t, s.do(t, http.MethodDelete, path, alice, nil), http.StatusNotFound, CodeNotFound)

	if w := s.do(t, http.MethodPost, path, bob, nil); w.Code != http.StatusCreated {
		t.Fatalf("bob register after alice left: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/my/registrations", bob, nil)
	var mine []model.EventDetails
	decode(t, w, &mine)
	if len(mine) != 1 || mine[0].ID != eventID {
		t.Fatalf("my registrations = %+v", mine)
	}
}

func TestParticipantsOverHTTP(t *testing.T) {
	s := newTestServer(t, nil, 0)
	organizer := s.user(t, "org", model.RoleOrganizer)
	stranger := s.user(t, "stranger", model.RoleOrganizer)
	s.user(t, "carol", model.RoleUser)

	eventID := s.createEvent(t, organizer, 3)
	base := "/events/" + eventID + "/participants"

	expectError(t, s.do(t, http.MethodPost, base, stranger, model.AddParticipantRequest{UserID: "carol"}), http.StatusForbidden, CodeForbidden)
	expectError(t, s.do(t, http.MethodPost, base, organizer, model.AddParticipantRequest{UserID: "nobody"}), http.StatusNotFound, CodeNotFound)
	expectError(t, s.do(t, http.MethodPost, base, organizer, `{"user_id": "carol", "extra": 1}`), http.StatusBadRequest, CodeValidation)

	if w := s.do(t, http.MethodPost, base, organizer, model.AddParticipantRequest{UserID: "carol"}); w.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, base, organizer, nil)
	var participants []model.Participant
	decode(t, w, &participants)
	if len(participants) != 1 || participants[0].UserID != "carol" || participants[0].Email != "carol@example.com" {
		t.Fatalf("participants = %+v", participants)
	}

	w = s.do(t, http.MethodGet, "/events/"+eventID+"/available-users?q=carol", organizer, nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("available after add: %d %s", w.Code, w.Body.String())
	}
	expectError(t, s.do(t, http.MethodGet, "/events/"+eventID+"/available-users?limit=x", organizer, nil), http.StatusBadRequest, CodeValidation)

	if w := s.do(t, http.MethodDelete, base+"/carol", organizer, nil); w.Code != http.StatusNoContent {
		t.Fatalf("remove: %d %s", w.Code, w.Body.String())
	}
	expectError(t, s.do(t, http.MethodDelete, base+"/carol", organizer, nil), http.StatusNotFound, CodeNotFound)

	w = s.do(t, http.MethodGet, "/events/"+eventID+"/available-users?q=CAROL", organizer, nil)
	var available []model.User
	decode(t, w, &available)
	if len(available) != 1 || available[0].ID != "carol" {
		t.Fatalf("available = %+v", available)
	}

	w = s.do(t, http.MethodGet, base, organizer, nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty participants body = %s", w.Body.String())
	}
}

func TestEventManagementOverHTTP(t *testing.T) {
	s := newTestServer(t, nil, 0)
	organizer := s.user(t, "org", model.RoleOrganizer)
	user := s.user(t, "u1", model.RoleUser)
	s.user(t, "u2", model.RoleUser)
	admin := s.user(t, "root", model.RoleAdmin)

	expectError(t, s.do(t, http.MethodPost, "/events", user, model.CreateEventRequest{}), http.StatusForbidden, CodeForbidden)
	expectError(t, s.do(t, http.MethodPost, "/events", organizer, model.CreateEventRequest{Title: "x"}), http.StatusBadRequest, CodeValidation)
	expectError(t, s.do(t, http.MethodPost, "/events", organizer, "{not json"), http.StatusBadRequest, CodeValidation)

	eventID := s.createEvent(t, organizer, 3)
	for _, id := range []string{"u1", "u2"} {
		w := s.do(t, http.MethodPost, "/events/"+eventID+"/participants", organizer, model.AddParticipantRequest{UserID: id})
		if w.Code != http.StatusCreated {
			t.Fatalf("add %s: %d %s", id, w.Code, w.Body.String())
		}
	}

	expectError(t, s.do(t, http.MethodPatch, "/events/"+eventID, organizer, map[string]int{"capacity": 1}), http.StatusConflict, CodeConflict)

	w := s.do(t, http.MethodPatch, "/events/"+eventID, organizer, map[string]int{"capacity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("shrink to count: %d %s", w.Code, w.Body.String())
	}
	var ev model.EventDetails
	decode(t, w, &ev)
	if ev.Capacity != 2 || ev.VisitorCount != 2 {
		t.Fatalf("event = %+v", ev)
	}

	w = s.do(t, http.MethodGet, "/my/events", organizer, nil)
	var mine []model.EventDetails
	decode(t, w, &mine)
	if len(mine) != 1 {
		t.Fatalf("my events = %+v", mine)
	}

	expectError(t, s.do(t, http.MethodPut, "/users/u1/roles", organizer, model.SetRolesRequest{Roles: []model.Role{model.RoleAdmin}}), http.StatusForbidden, CodeForbidden)
	if w := s.do(t, http.MethodPut, "/users/u1/roles", admin, model.SetRolesRequest{Roles: []model.Role{model.RoleGuest}}); w.Code != http.StatusOK {
		t.Fatalf("set roles: %d %s", w.Code, w.Body.String())
	}
	// Roles are loaded per request, so the demotion applies to the old token.
	other := s.createEvent(t, organizer, 5)
	expectError(t, s.do(t, http.MethodPost, "/events/"+other+"/register", user, nil), http.StatusForbidden, CodeForbidden)

	expectError(t, s.do(t, http.MethodDelete, "/events/"+eventID, user, nil), http.StatusForbidden, CodeForbidden)
	if w := s.do(t, http.MethodDelete, "/events/"+eventID, organizer, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	expectError(t, s.do(t, http.MethodGet, "/events/"+eventID, "", nil), http.StatusNotFound, CodeNotFound)
}


func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", service.ErrEventNotFound, http.StatusNotFound, CodeNotFound},
		{"forbidden", service.ErrRegisterForbidden, http.StatusForbidden, CodeForbidden},
		{"conflict", service.ErrEventFull, http.StatusConflict, CodeConflict},
		{"wrapped conflict", fmt.Errorf("%w (3 registered)", service.ErrCapacityTooLow), http.StatusConflict, CodeConflict},
		{"validation", service.ErrValidation, http.StatusBadRequest, CodeValidation},
		{"unauthorized", service.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthorized},
		{"busy", service.ErrEventBusy, http.StatusServiceUnavailable, CodeBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := logtest.NewNullLogger()
			w := httptest.NewRecorder()
			writeServiceError(w, httptest.NewRequest(http.MethodPost, "/x", nil), log, tt.err)

			resp := expectError(t, w, tt.status, tt.code)
			if resp.Error != tt.err.Error() {
				t.Fatalf("message = %q, want %q", resp.Error, tt.err.Error())
			}
			if len(hook.AllEntries()) != 0 {
				t.Fatalf("caller errors should not be logged")
			}
		})
	}

	t.Run("busy sets Retry-After", func(t *testing.T) {
		log, _ := logtest.NewNullLogger()
		w := httptest.NewRecorder()
		writeServiceError(w, httptest.NewRequest(http.MethodPost, "/x", nil), log, service.ErrEventBusy)
		if w.Header().Get("Retry-After") == "" {
			t.Fatal("missing Retry-After")
		}
	})

	t.Run("internal", func(t *testing.T) {
		log, hook := logtest.NewNullLogger()
		w := httptest.NewRecorder()
		cause := errors.New(`pq: relation "registrations" does not exist`)
		writeServiceError(w, httptest.NewRequest(http.MethodGet, "/events", nil), log, fmt.Errorf("list events: %w", cause))

		resp := expectError(t, w, http.StatusInternalServerError, CodeInternal)
		if resp.Error != "internal server error" {
			t.Fatalf("message = %q", resp.Error)
		}
		entry := hook.LastEntry()
		if entry == nil || entry.Level != logrus.ErrorLevel || !errors.Is(entry.Data[logrus.ErrorKey].(error), cause) {
			t.Fatalf("internal cause not logged: %+v", entry)
		}
	})

	t.Run("client cancelled", func(t *testing.T) {
		errs := []error{
			context.Canceled,
			fmt.Errorf("register: %w", fmt.Errorf("begin tx: %w", context.Canceled)),
		}
		for _, err := range errs {
			log, hook := logtest.NewNullLogger()
			log.SetLevel(logrus.DebugLevel)
			w := httptest.NewRecorder()
			writeServiceError(w, httptest.NewRequest(http.MethodPost, "/events/e/register", nil), log, err)

			expectError(t, w, http.StatusInternalServerError, CodeInternal)
			for _, e := range hook.AllEntries() {
				if e.Level <= logrus.ErrorLevel {
					t.Fatalf("cancellation logged at %s: %v", e.Level, err)
				}
			}
			if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.DebugLevel {
				t.Fatalf("cancellation not logged at debug: %+v", entry)
			}
		}
	})
}

func TestConcurrentRegistrationOverHTTP(t *testing.T) {
	const capacity, attempts = 5, 30
	s := newTestServer(t, nil, 0)
	organizer := s.user(t, "org", model.RoleOrganizer)
	eventID := s.createEvent(t, organizer, capacity)

	tokens := make([]string, attempts)
	for i := range tokens {
		tokens[i] = s.user(t, fmt.Sprintf("u%02d", i), model.RoleUser)
	}

	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/events/"+eventID+"/register", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			s.handler.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i, token)
	}
	wg.Wait()

	var created, conflict int
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflict++
		default:
			t.Errorf("unexpected status %d", c)
		}
	}
	if created != capacity || conflict != attempts-capacity {
		t.Fatalf("created=%d conflict=%d", created, conflict)
	}
}

func TestRegistrationQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := newTestServer(t, rdb, 2)
	organizer := s.user(t, "org", model.RoleOrganizer)
	user := s.user(t, "u1", model.RoleUser)

	for i := 0; i < 2; i++ {
		eventID := s.createEvent(t, organizer, 10)
		w := s.do(t, http.MethodPost, "/events/"+eventID+"/register", user, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("register %d: %d %s", i, w.Code, w.Body.String())
		}
		if got, want := w.Header().Get("X-Quota-Used"), fmt.Sprintf("%d/2", i+1); got != want {
			t.Fatalf("X-Quota-Used = %q, want %q", got, want)
		}
	}

	eventID := s.createEvent(t, organizer, 10)
	expectError(t, s.do(t, http.MethodPost, "/events/"+eventID+"/register", user, nil), http.StatusTooManyRequests, CodeQuotaExceeded)

	if ttl := mr.TTL("quota:registrations:u1"); ttl != time.Hour {
		t.Fatalf("quota ttl = %v, want 1h", ttl)
	}

	// Unregistering is not metered.
	if w := s.do(t, http.MethodDelete, "/events/"+eventID+"/register", user, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unregister: %d %s", w.Code, w.Body.String())
	}
}

func TestQuotaFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	log, hook := logtest.NewNullLogger()
	h := Quota(rdb, QuotaRule{Limit: 1, Window: time.Minute, KeyFn: func(*http.Request) string { return "k" }}, log)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }),
	)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusTeapot {
			t.Fatalf("request %d: status %d, want pass-through", i, w.Code)
		}
	}
	if hook.LastEntry() == nil || hook.LastEntry().Level != logrus.WarnLevel {
		t.Fatal("redis failure was not logged")
	}
}

func TestQuotaDisabled(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	// KeyFn is nil: touching it would panic, so passing proves the bypass.
	h := Quota(nil, QuotaRule{Limit: 5}, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rl := NewRateLimiter(ctx, LimiterConfig{RPS: 0.001, Burst: 2})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send("10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	w := send("10.0.0.1:5678")
	expectError(t, w, http.StatusTooManyRequests, CodeRateLimited)
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}

	if w := send("10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("other client limited: %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil, 0)

	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("Allow-Credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected Allow-Origin %q for foreign origin", got)
	}
}
