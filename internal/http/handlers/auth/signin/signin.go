// Package signin реализует HTTP-обработчики входа студента и администратора.
//
// Неверные данные и попытка войти в панель без роли администратора дают
// одинаковый ответ 401, чтобы не раскрывать, какие учётные записи существуют.
package signin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/identity"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/services/auth"
)

// Request — учётные данные.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignInFunc выполняет вход и возвращает токен сессии.
type SignInFunc func(ctx context.Context, email, password string) (identity.Token, error)

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log      *slog.Logger
	signIn   SignInFunc
	op       string
	validate *validator.Validate
}

// New создает обработчик входа студента.
func New(log *slog.Logger, signIn SignInFunc) *Handler {
	return &Handler{log: log, signIn: signIn, op: "handlers.auth.signin", validate: validator.New()}
}

// NewAdmin создает обработчик входа в административную панель.
func NewAdmin(log *slog.Logger, signIn SignInFunc) *Handler {
	return &Handler{log: log, signIn: signIn, op: "handlers.auth.admin", validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Вход
// @Description Аутентифицирует по почте и паролю. Возвращает токен сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/signin [post]
// @Router /auth/admin [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		slog.String("op", h.op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	token, err := h.signIn(r.Context(), req.Email, req.Password)
	if auth.IsCredentialsError(err) {
		log.Info("invalid credentials")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	}
	if err != nil {
		log.Error("signin failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("signin success", slog.String("user_id", token.Identity.ID))
	render.JSON(w, r, response.OKWithData(token))
}
