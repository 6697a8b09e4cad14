package middlewarectx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/services/gate"
	"github.com/magabrotheeeer/trial-gate/internal/services/session"
)

type EvaluatorMock struct {
	mock.Mock
}

func (m *EvaluatorMock) Evaluate(ctx context.Context, token string, route gate.Route) (gate.Decision, session.State) {
	args := m.Called(ctx, token, route)
	return args.Get(0).(gate.Decision), args.Get(1).(session.State)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		url    string
		want   string
	}{
		{name: "header", header: "Bearer abc", url: "/", want: "abc"},
		{name: "query", url: "/?access_token=xyz", want: "xyz"},
		{name: "header wins", header: "Bearer abc", url: "/?access_token=xyz", want: "abc"},
		{name: "basic is ignored", header: "Basic Zm9vOmJhcg==", url: "/", want: ""},
		{name: "anonymous", url: "/", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, middlewarectx.BearerToken(r))
		})
	}
}

func TestGateMiddleware(t *testing.T) {
	student := models.Identity{ID: "u-1", Email: "ann@example.com"}

	tests := []struct {
		name         string
		decision     gate.Decision
		state        session.State
		wantStatus   int
		wantCalled   bool
		wantLocation string
		wantBody     map[string]any
	}{
		{
			name:       "allow",
			decision:   gate.Decision{Kind: gate.KindAllow},
			state:      session.State{Identity: &student},
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:         "redirect",
			decision:     gate.Decision{Kind: gate.KindRedirect, Reason: gate.ReasonNoSession, Redirect: "/auth"},
			wantStatus:   http.StatusUnauthorized,
			wantLocation: "/auth",
			wantBody:     map[string]any{"decision": "redirect", "reason": "no_session", "redirect": "/auth"},
		},
		{
			name: "blocked",
			decision: gate.Decision{
				Kind: gate.KindBlocked, Reason: gate.ReasonTrialExpired,
				ContactURL: "https://wa.me/1", HomePath: "/",
			},
			state:      session.State{Identity: &student},
			wantStatus: http.StatusForbidden,
			wantBody: map[string]any{
				"decision": "blocked", "reason": "trial_expired",
				"contact_url": "https://wa.me/1", "home_path": "/",
			},
		},
		{
			name:       "loading",
			decision:   gate.Decision{Kind: gate.KindLoading},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := new(EvaluatorMock)
			ev.On("Evaluate", mock.Anything, "tok", gate.RouteClassroom).Return(tt.decision, tt.state).Once()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := middlewarectx.IdentityFrom(r.Context())
				assert.True(t, ok)
				assert.Equal(t, student, id)
				assert.Equal(t, "tok", middlewarectx.TokenFrom(r.Context()))
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/trial", nil)
			req.Header.Set("Authorization", "Bearer tok")
			rr := httptest.NewRecorder()
			middlewarectx.GateMiddleware(ev, gate.RouteClassroom, sl.Discard())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
			if tt.wantBody != nil {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tt.wantBody, body)
			}
			ev.AssertExpectations(t)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middlewarectx.RateLimitMiddleware(sl.Discard(), 0.001, 2)(next)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestIdentityFromEmpty(t *testing.T) {
	_, ok := middlewarectx.IdentityFrom(context.Background())
	assert.False(t, ok)
	assert.Empty(t, middlewarectx.TokenFrom(context.Background()))
}
