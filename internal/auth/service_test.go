package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/tenant"
)

type fakeAccounts struct {
	users  map[string]User // by email
	hashes map[string]string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: map[string]User{}, hashes: map[string]string{}}
}

func (f *fakeAccounts) CreateUser(_ context.Context, _ string, email, name, hash, role string) (User, error) {
	if _, exists := f.users[email]; exists {
		return User{}, ErrEmailTaken
	}
	u := User{ID: "u-" + email, Email: email, Name: name, Role: role}
	f.users[email] = u
	f.hashes[email] = hash
	return u, nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, _ string, email string) (User, string, error) {
	u, ok := f.users[email]
	if !ok {
		return User{}, "", ErrNotFound
	}
	return u, f.hashes[email], nil
}

func (f *fakeAccounts) GetByID(_ context.Context, _ string, id string) (User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func newAuthService(t *testing.T) (*Service, *fakeAccounts) {
	t.Helper()
	store := newFakeAccounts()
	svc, err := NewService(Config{Store: store, Secret: "test-secret-test-secret"})
	require.NoError(t, err)
	return svc, store
}

func seedUser(t *testing.T, store *fakeAccounts, email, password, role string) User {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)
	u, err := store.CreateUser(context.Background(), "oslo-swing", email, "Kari", hash, role)
	require.NoError(t, err)
	return u
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc, store := newAuthService(t)
	u := seedUser(t, store, "kari@example.no", "hemmelig123", "customer")

	result, err := svc.Login(context.Background(), "oslo-swing", "kari@example.no", "hemmelig123")
	require.NoError(t, err)
	require.Equal(t, u.ID, result.User.ID)
	require.NotEmpty(t, result.AccessToken)

	claims, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)
	require.Equal(t, "oslo-swing", claims.Org)
	require.Equal(t, "customer", claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, store := newAuthService(t)
	seedUser(t, store, "kari@example.no", "hemmelig123", "customer")

	_, err := svc.Login(context.Background(), "oslo-swing", "kari@example.no", "feilpassord")
	require.Error(t, err)

	// Unknown accounts fail with the same message.
	_, err2 := svc.Login(context.Background(), "oslo-swing", "ukjent@example.no", "hemmelig123")
	require.EqualError(t, err2, err.Error())
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc, store := newAuthService(t)
	seedUser(t, store, "kari@example.no", "hemmelig123", "customer")

	past := time.Now().Add(-2 * time.Hour)
	svc.WithNow(func() time.Time { return past })
	result, err := svc.Login(context.Background(), "oslo-swing", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	svc, _ := newAuthService(t)
	_, err := svc.ParseAccessToken("not-a-token")
	require.Error(t, err)
	_, err = svc.ParseAccessToken("")
	require.Error(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService(t)
	_, err := svc.Register(context.Background(), "oslo-swing", "kari@example.no", "Kari", "hemmelig123")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "oslo-swing", "KARI@example.no", "Kari", "hemmelig123")
	require.Error(t, err)
}

func TestMiddlewareBindsTokenToOrg(t *testing.T) {
	svc, store := newAuthService(t)
	seedUser(t, store, "kari@example.no", "hemmelig123", "customer")
	result, err := svc.Login(context.Background(), "oslo-swing", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// Token accepted for its own org.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+result.AccessToken)
	req = req.WithContext(tenant.WithOrg(req.Context(), "oslo-swing"))
	rec := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, result.User.ID, gotUser)

	// Same token rejected for another org.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("Authorization", "Bearer "+result.AccessToken)
	req2 = req2.WithContext(tenant.WithOrg(req2.Context(), "bergen-tango"))
	rec2 := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	guard := RequireRole(common.RoleStaff, common.RoleAdmin)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(common.WithUser(req.Context(), "u1", "customer"))
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2 = req2.WithContext(common.WithUser(req2.Context(), "u1", common.RoleAdmin))
	rec2 := httptest.NewRecorder()
	guard.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	if !strings.Contains(rec.Body.String(), "FORBIDDEN") {
		t.Fatalf("expected FORBIDDEN error code, got %s", rec.Body.String())
	}
}
