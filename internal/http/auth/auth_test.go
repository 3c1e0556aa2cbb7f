package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notcool100/financial-management-system/internal/http/auth"
)

func TestMiddleware(t *testing.T) {
	const secret = "test-secret"

	valid, err := auth.IssueToken(secret, "officer-7", time.Hour)
	require.NoError(t, err)

	expired, err := auth.IssueToken(secret, "officer-7", -time.Hour)
	require.NoError(t, err)

	foreign, err := auth.IssueToken("other-secret", "officer-7", time.Hour)
	require.NoError(t, err)

	type testCase struct {
		name       string
		secret     string
		header     string
		wantStatus int
		wantActor  string
	}

	tests := []testCase{
		{name: "Disabled", secret: "", wantStatus: http.StatusOK, wantActor: auth.SystemActor},
		{name: "Valid", secret: secret, header: "Bearer " + valid, wantStatus: http.StatusOK, wantActor: "officer-7"},
		{name: "Missing", secret: secret, wantStatus: http.StatusUnauthorized},
		{name: "NotBearer", secret: secret, header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "Expired", secret: secret, header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "WrongSecret", secret: secret, header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actor string

			h := auth.Middleware(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor = auth.Actor(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantActor, actor)
		})
	}
}
