package list

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) List(ctx context.Context, lessonID int, viewerID string) ([]models.CommentView, error) {
	args := m.Called(ctx, lessonID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CommentView), args.Error(1)
}

func router(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middlewarectx.WithIdentity(req.Context(), models.Identity{ID: "u-1"}, "tok")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/lessons/{lessonID}/comments", New(sl.Discard(), svc).ServeHTTP)
	return r
}

func TestListHandler(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("List", mock.Anything, 4, "u-1").Return([]models.CommentView{
		{LessonComment: models.LessonComment{ID: "c-2", UserID: "u-1"}, AuthorName: "Ann", CanEdit: true},
		{LessonComment: models.LessonComment{ID: "c-1", UserID: "u-2"}, AuthorName: "User"},
	}, nil).Once()

	rr := httptest.NewRecorder()
	router(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/lessons/4/comments", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data []models.CommentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].CanEdit)
	assert.False(t, resp.Data[1].CanEdit)
	svc.AssertExpectations(t)
}

func TestListHandler_BadLesson(t *testing.T) {
	svc := new(ServiceMock)
	rr := httptest.NewRecorder()
	router(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/lessons/abc/comments", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}
