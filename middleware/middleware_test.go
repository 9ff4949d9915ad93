package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoami(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Write([]byte(UserIDFromContext(r.Context())))
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuth("s3cret")
	staff, err := auth.Issue("u1", []string{"staff"}, time.Minute)
	require.NoError(t, err)
	guest, err := auth.Issue("u2", []string{"guest"}, time.Minute)
	require.NoError(t, err)
	expired, err := auth.Issue("u1", []string{"admin"}, -time.Minute)
	require.NoError(t, err)
	forged, err := NewAuth("other").Issue("u1", []string{"admin"}, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"no bearer", staff, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"not staff", "Bearer " + guest, http.StatusForbidden},
		{"ok", "Bearer " + staff, http.StatusOK},
	}
	h := auth.Authenticate(whoami)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/admin/reservations/r1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req, nil)
			assert.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "u1", rec.Body.String())
			}
		})
	}
}

func TestAuthenticateQuery(t *testing.T) {
	auth := NewAuth("s3cret")
	token, err := auth.Issue("admin-1", []string{"admin"}, time.Minute)
	require.NoError(t, err)
	h := auth.AuthenticateQuery(whoami)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ws/admin?token="+token, nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", rec.Body.String())

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ws/admin", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateJWTAcceptsBearerPrefix(t *testing.T) {
	auth := NewAuth("s3cret")
	token, err := auth.Issue("u1", []string{"admin"}, time.Minute)
	require.NoError(t, err)

	c, err := auth.ValidateJWT("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.True(t, c.IsStaff())

	_, err = auth.ValidateJWT("")
	assert.Error(t, err)
}
