package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
)

// WSHandler serves a request/response channel over a websocket. Every
// inbound message gets exactly one reply; the server never pushes.
type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type answersPayload struct {
	Round    int `json:"round"`
	Question int `json:"question"`
}

// ServeWS upgrades HTTP requests to websockets bound to one player session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("gameId"), 10, 64)
	token := r.URL.Query().Get("token")
	if err != nil || token == "" {
		http.Error(w, "missing gameId or token", http.StatusBadRequest)
		return
	}
	player, err := h.service.Authenticate(r.Context(), id, token)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	left := false
	defer func() {
		if left {
			return
		}
		if err := h.service.Disconnect(context.WithoutCancel(ctx), id, token); err != nil {
			log.Printf("[ws] player %d disconnect from game %d: %v", player.ID, id, err)
		}
	}()
	snap, err := h.service.GetState(ctx, id)
	if err != nil {
		h.reply(conn, "error", errorBody(err))
		return
	}
	if !h.reply(conn, "state", toStateView(snap)) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var req answerRequest
			if err := json.Unmarshal(inbound.Payload, &req); err != nil {
				h.reply(conn, "error", errorBody(domain.ErrInvalidAnswer))
				continue
			}
			sub, err := req.submission()
			if err == nil {
				var answer domain.Answer
				answer, err = h.service.SubmitAnswer(ctx, id, token, sub)
				if err == nil {
					h.reply(conn, "answerAccepted", toReceipt(answer))
					continue
				}
			}
			h.reply(conn, "error", errorBody(err))
		case "heartbeat":
			if err := h.service.Heartbeat(ctx, id, token); err != nil {
				h.reply(conn, "error", errorBody(err))
				continue
			}
			h.reply(conn, "heartbeatOk", struct{}{})
		case "state":
			snap, err := h.service.GetState(ctx, id)
			if err != nil {
				h.reply(conn, "error", errorBody(err))
				continue
			}
			h.reply(conn, "state", toStateView(snap))
		case "answers":
			var req answersPayload
			if len(inbound.Payload) > 0 {
				_ = json.Unmarshal(inbound.Payload, &req)
			}
			answers, err := h.service.GetAnswers(ctx, id, app.AnswerFilter{Round: req.Round, Question: req.Question})
			if err != nil {
				h.reply(conn, "error", errorBody(err))
				continue
			}
			h.reply(conn, "answers", toAnswerViews(answers))
		case "leave":
			if err := h.service.LeaveGame(ctx, id, token); err != nil {
				h.reply(conn, "error", errorBody(err))
				continue
			}
			left = true
			h.reply(conn, "left", struct{}{})
			log.Printf("[ws] player %d left game %d", player.ID, id)
			return
		default:
			h.reply(conn, "error", errorView{Error: "unsupported message type", Kind: domain.KindValidation.String()})
		}
	}
}

func (h *WSHandler) reply(conn *websocket.Conn, typ string, payload any) bool {
	if err := conn.WriteJSON(outboundMessage[any]{Type: typ, Payload: payload}); err != nil {
		log.Printf("[ws] write error: %v", err)
		return false
	}
	return true
}
