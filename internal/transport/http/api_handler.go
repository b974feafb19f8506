package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
)

// SessionHeader carries the player's session token on authenticated calls.
const SessionHeader = "X-Session-Token"

// APIHandler exposes the duel use cases as JSON over HTTP.
type APIHandler struct {
	service *app.GameService
}

func NewAPIHandler(service *app.GameService) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts every API route on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games", h.createGame)
	mux.HandleFunc("POST /api/games/join", h.joinGame)
	mux.HandleFunc("GET /api/games/{id}", h.getState)
	mux.HandleFunc("POST /api/games/{id}/start", h.startGame)
	mux.HandleFunc("POST /api/games/{id}/answers", h.submitAnswer)
	mux.HandleFunc("GET /api/games/{id}/answers", h.getAnswers)
	mux.HandleFunc("POST /api/games/{id}/leave", h.leaveGame)
	mux.HandleFunc("POST /api/games/{id}/heartbeat", h.heartbeat)
	mux.HandleFunc("POST /api/games/{id}/reevaluate", h.reevaluate)
}

type createRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type joinRequest struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (h *APIHandler) createGame(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	joined, err := h.service.CreateGame(r.Context(), req.Name, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJoinedView(joined))
}

func (h *APIHandler) joinGame(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	joined, err := h.service.JoinGame(r.Context(), req.Code, req.Name, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJoinedView(joined))
}

func (h *APIHandler) getState(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.GetState(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateView(snap))
}

func (h *APIHandler) startGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}
	game, err := h.service.StartGame(r.Context(), id, r.Header.Get(SessionHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGameView(game))
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, err)
		return
	}
	answer, err := h.service.SubmitAnswer(r.Context(), id, r.Header.Get(SessionHeader), sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toReceipt(answer))
}

func (h *APIHandler) getAnswers(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}
	var filter app.AnswerFilter
	var err error
	if raw := r.URL.Query().Get("round"); raw != "" {
		if filter.Round, err = strconv.Atoi(raw); err != nil || filter.Round < 1 {
			writeError(w, &domain.Error{Kind: domain.KindValidation, Message: "round must be a positive integer"})
			return
		}
	}
	if raw := r.URL.Query().Get("question"); raw != "" {
		if filter.Question, err = strconv.Atoi(raw); err != nil || filter.Question < 1 || filter.Question > 2 {
			writeError(w, &domain.Error{Kind: domain.KindValidation, Message: "question must be 1 or 2"})
			return
		}
	}
	answers, err := h.service.GetAnswers(r.Context(), id, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerViews(answers))
}

func (h *APIHandler) leaveGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}
	if err := h.service.LeaveGame(r.Context(), id, r.Header.Get(SessionHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) heartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}
	if err := h.service.Heartbeat(r.Context(), id, r.Header.Get(SessionHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) reevaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}
	game, err := h.service.Reevaluate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGameView(game))
}

func gameID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, &domain.Error{Kind: domain.KindValidation, Message: "invalid game id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, &domain.Error{Kind: domain.KindValidation, Message: "invalid request body"})
		return false
	}
	return true
}
