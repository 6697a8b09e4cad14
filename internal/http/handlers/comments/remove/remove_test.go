package remove

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/services/comments"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func TestRemoveHandler(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusOK},
		{name: "not owner", svcErr: comments.ErrNotOwner, wantStatus: http.StatusNotFound},
		{name: "store failure", svcErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Delete", mock.Anything, "u-1", "c-1").Return(tt.svcErr).Once()

			r := chi.NewRouter()
			r.Delete("/comments/{id}", func(w http.ResponseWriter, req *http.Request) {
				ctx := middlewarectx.WithIdentity(req.Context(), models.Identity{ID: "u-1"}, "tok")
				New(sl.Discard(), svc).ServeHTTP(w, req.WithContext(ctx))
			})

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/comments/c-1", nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}
