package update

import (
	"bytes"
	"context"
	"fmt"
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

func (m *ServiceMock) Update(ctx context.Context, userID, id, text string) (models.CommentView, error) {
	args := m.Called(ctx, userID, id, text)
	return args.Get(0).(models.CommentView), args.Error(1)
}

func TestUpdateHandler(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		svcErr     error
		wantStatus int
	}{
		{name: "author", userID: "u-1", wantStatus: http.StatusOK},
		{name: "someone else", userID: "u-2", svcErr: fmt.Errorf("comments.Update: %w", comments.ErrNotOwner), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Update", mock.Anything, tt.userID, "c-1", "edited").
				Return(models.CommentView{LessonComment: models.LessonComment{ID: "c-1", Comment: "edited"}}, tt.svcErr).Once()

			r := chi.NewRouter()
			r.Put("/comments/{id}", func(w http.ResponseWriter, req *http.Request) {
				ctx := middlewarectx.WithIdentity(req.Context(), models.Identity{ID: tt.userID}, "tok")
				New(sl.Discard(), svc).ServeHTTP(w, req.WithContext(ctx))
			})

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/comments/c-1", bytes.NewBufferString(`{"comment":"edited"}`)))
			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}
