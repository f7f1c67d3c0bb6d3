package participant

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

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

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpjson.RespondError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	p, err := h.Service.Register(r.Context(), req.Name)
	switch {
	case errors.Is(err, ErrInvalidName):
		httpjson.RespondError(w, http.StatusUnprocessableEntity, "name is required")
	case errors.Is(err, ErrNameTaken):
		httpjson.RespondError(w, http.StatusConflict, "name already in use")
	case err != nil:
		httpjson.RespondError(w, http.StatusInternalServerError, "storage unavailable")
	default:
		httpjson.Respond(w, http.StatusCreated, p)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	participants, err := h.Service.List(r.Context())
	if err != nil {
		httpjson.RespondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	if participants == nil {
		participants = []Participant{}
	}
	httpjson.Respond(w, http.StatusOK, participants)
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	name, ok := middleware.FromContext(r.Context())
	if !ok {
		httpjson.RespondError(w, http.StatusUnauthorized, "missing User header")
		return
	}

	p, err := h.Service.Heartbeat(r.Context(), name)
	switch {
	case errors.Is(err, ErrNotFound):
		httpjson.RespondError(w, http.StatusNotFound, "participant not found")
	case err != nil:
		httpjson.RespondError(w, http.StatusInternalServerError, "storage unavailable")
	default:
		httpjson.Respond(w, http.StatusOK, p)
	}
}
