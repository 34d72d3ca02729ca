package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventhub/eventhub/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("p@ssw0rd!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("p@ssw0rd!", hashed) {
		t.Fatal("correct password should match")
	}
	if CheckPassword("wrong", hashed) {
		t.Fatal("wrong password should not match")
	}
}

func TestHashPasswordByteLimit(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"72 ascii bytes", strings.Repeat("a", 72), nil},
		{"73 ascii bytes", strings.Repeat("a", 73), ErrPasswordTooLong},
		{"37 two-byte runes", strings.Repeat("ß", 37), ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HashPassword(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	user := &model.User{ID: "u1", Email: "a@b.com", Roles: []model.Role{model.RoleOrganizer}}

	token, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@b.com" {
		t.Fatalf("claims = %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "organizer" {
		t.Fatalf("roles = %v", claims.Roles)
	}
}

func TestVerifyRejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	user := &model.User{ID: "u1"}
	good, _ := issuer.Issue(user)

	expired := NewTokenIssuer(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue(user)

	other, _ := NewTokenIssuer(strings.Repeat("x", 32), time.Hour).Issue(user)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"tampered":     good + "x",
		"expired":      old,
		"wrong secret": other,
		"alg none":     none,
		"garbage":      "this-is-not-a-jwt",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Verify err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

type stubUsers map[string]*model.User

func (s stubUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func TestSessionResolvesActor(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	users := stubUsers{
		// Roles in the store win over the roles baked into the token.
		"u1": {ID: "u1", Roles: []model.Role{model.RoleAdmin}},
	}
	token, _ := issuer.Issue(&model.User{ID: "u1", Roles: []model.Role{model.RoleUser}})
	ghost, _ := issuer.Issue(&model.User{ID: "ghost"})

	var got *model.Actor
	h := Session(issuer, users, logrus.New())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFrom(r.Context())
	}))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantID  string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "u1"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }, "u1"},
		{"anonymous", func(*http.Request) {}, ""},
		{"bad scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, ""},
		{"unknown user", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghost) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			h.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantID == "" {
				if got != nil {
					t.Fatalf("actor = %+v, want anonymous", got)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Fatalf("actor = %+v, want %s", got, tt.wantID)
			}
			if !got.HasRole(model.RoleAdmin) {
				t.Fatalf("roles = %v, want store roles", got.Roles)
			}
		})
	}
}

func TestRequireActor(t *testing.T) {
	h := RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), &model.Actor{ID: "u1"}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("authenticated: status = %d, want 204", w.Code)
	}
}
