package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/data/repository/memstore"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func seedSession(t *testing.T, repo *repository.Repository, role entity.UserRole) uuid.UUID {
	t.Helper()
	user := &entity.User{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username: "u-" + uuid.NewString()[:8],
		Email:    uuid.NewString()[:8] + "@example.com",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, repo.User.Create(context.Background(), user))

	session := &entity.Session{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		UserID:     user.ID,
		Token:      uuid.New(),
		ExpiresAt:  now.Add(time.Hour),
	}
	require.NoError(t, repo.Session.Create(context.Background(), session))
	return session.Token
}

func echoActor(w http.ResponseWriter, r *http.Request) {
	role, _ := utils.GetRoleFromContext(r.Context())
	w.Write([]byte(role))
}

func TestAuthSession(t *testing.T) {
	repo := memstore.New(&utils.FixedClock{T: now}).Repository()
	token := seedSession(t, repo, entity.RoleVenueOwner)
	h := AuthSession(repo.Session, zap.NewNop())(http.HandlerFunc(echoActor))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token.String(), http.StatusUnauthorized},
		{"not a uuid", "Bearer abc", http.StatusUnauthorized},
		{"unknown session", "Bearer " + uuid.NewString(), http.StatusUnauthorized},
		{"valid", "Bearer " + token.String(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, string(entity.RoleVenueOwner), rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	repo := memstore.New(&utils.FixedClock{T: now}).Repository()
	brand := seedSession(t, repo, entity.RoleBrand)
	owner := seedSession(t, repo, entity.RoleVenueOwner)

	h := AuthSession(repo.Session, zap.NewNop())(
		RequireRole(zap.NewNop(), string(entity.RoleBrand))(http.HandlerFunc(echoActor)))

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+brand.String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+owner.String())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCronSecret(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	guarded := CronSecret("s3cret", zap.NewNop())(ok)
	req := httptest.NewRequest(http.MethodPost, "/api/cron/sweep", nil)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set(CronSecretHeader, "s3cret")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	open := CronSecret("", zap.NewNop())(ok)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cron/sweep", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecover(t *testing.T) {
	h := Recover(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
