package message

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chatroom/internal/httpjson"
	"chatroom/internal/middleware"
)

var validate = validator.New()

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	from, ok := middleware.FromContext(r.Context())
	if !ok {
		httpjson.RespondError(w, http.StatusUnauthorized, "missing User header")
		return
	}

	var req PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpjson.RespondError(w, http.StatusUnprocessableEntity, "to, text and a chat kind are required")
		return
	}

	m, err := h.Service.Post(r.Context(), from, req.To, req.Text, req.Kind)
	switch {
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrUnknownSender):
		httpjson.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		httpjson.RespondError(w, http.StatusInternalServerError, "storage unavailable")
	default:
		httpjson.Respond(w, http.StatusCreated, m)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	name, ok := middleware.FromContext(r.Context())
	if !ok {
		httpjson.RespondError(w, http.StatusUnauthorized, "missing User header")
		return
	}

	// Absent, malformed or non-positive limit falls back to the full log.
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		limit = 0
	}

	messages, err := h.Service.VisibleTo(r.Context(), name, limit)
	if err != nil {
		httpjson.RespondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	httpjson.Respond(w, http.StatusOK, messages)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	name, ok := middleware.FromContext(r.Context())
	if !ok {
		httpjson.RespondError(w, http.StatusUnauthorized, "missing User header")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.RespondError(w, http.StatusNotFound, "message not found")
		return
	}

	err = h.Service.Delete(r.Context(), id, name)
	switch {
	case errors.Is(err, ErrNotFound):
		httpjson.RespondError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, ErrForbidden):
		httpjson.RespondError(w, http.StatusForbidden, "message belongs to another participant")
	case err != nil:
		httpjson.RespondError(w, http.StatusInternalServerError, "storage unavailable")
	default:
		httpjson.Respond(w, http.StatusOK, map[string]string{"id": id.String()})
	}
}
