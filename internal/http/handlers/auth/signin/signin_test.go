package signin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/trial-gate/internal/identity"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

func stubSignIn(token identity.Token, err error) SignInFunc {
	return func(context.Context, string, string) (identity.Token, error) {
		return token, err
	}
}

func TestSigninHandler_ServeHTTP(t *testing.T) {
	ok := identity.Token{AccessToken: "tok", Identity: models.Identity{ID: "u-1"}}

	tests := []struct {
		name       string
		handler    *Handler
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "student",
			handler:    New(sl.Discard(), stubSignIn(ok, nil)),
			body:       `{"email":"ann@example.com","password":"secret1"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			handler:    New(sl.Discard(), stubSignIn(identity.Token{}, identity.ErrInvalidCredentials)),
			body:       `{"email":"ann@example.com","password":"nope"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name: "non-admin on admin sign-in",
			handler: NewAdmin(sl.Discard(), stubSignIn(identity.Token{},
				fmt.Errorf("auth.AdminSignIn: %w", identity.ErrInvalidCredentials))),
			body:       `{"email":"ann@example.com","password":"secret1"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name:       "missing password",
			handler:    New(sl.Discard(), stubSignIn(ok, nil)),
			body:       `{"email":"ann@example.com"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field Password is a required field",
		},
		{
			name:       "provider failure",
			handler:    New(sl.Discard(), stubSignIn(identity.Token{}, errors.New("redis down"))),
			body:       `{"email":"ann@example.com","password":"secret1"}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			tt.handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
				return
			}
			data := resp["data"].(map[string]any)
			assert.Equal(t, "tok", data["access_token"])
		})
	}
}
