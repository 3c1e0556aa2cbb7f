package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notcool100/financial-management-system/internal/http/auth"
)

func TestRun_IssuesUsableToken(t *testing.T) {
	const secret = "s3cret"

	var out bytes.Buffer
	require.NoError(t, run([]string{"officer-9", "1h"}, secret, &out))

	token := strings.TrimSpace(out.String())
	require.NotEmpty(t, token)

	var actor string
	h := auth.Middleware(secret)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		actor = auth.Actor(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "officer-9", actor)
}

func TestRun_Rejects(t *testing.T) {
	type testCase struct {
		name    string
		args    []string
		secret  string
		wantErr string
	}

	tests := []testCase{
		{name: "NoUser", args: nil, secret: "s", wantErr: "usage"},
		{name: "TooManyArgs", args: []string{"a", "1h", "x"}, secret: "s", wantErr: "usage"},
		{name: "NoSecret", args: []string{"a"}, wantErr: "JWT_SECRET"},
		{name: "BadTTL", args: []string{"a", "soon"}, secret: "s", wantErr: "invalid TTL"},
		{name: "NegativeTTL", args: []string{"a", "-1h"}, secret: "s", wantErr: "positive"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer

			err := run(tc.args, tc.secret, &out)
			assert.ErrorContains(t, err, tc.wantErr)
			assert.Empty(t, out.String())
		})
	}
}
