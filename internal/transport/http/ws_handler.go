package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"caseboard-service/internal/domain"
	"caseboard-service/internal/realtime"
	"caseboard-service/internal/views"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	svc      Services
	upgrader websocket.Upgrader
}

func NewWSHandler(svc Services) *WSHandler {
	return &WSHandler{
		svc: svc,
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

type submitPayload struct {
	Step       *int              `json:"step"`
	Answer     *string           `json:"answer"`
	Sentiment  *domain.Sentiment `json:"sentiment"`
	PollChoice *string           `json:"pollChoice"`
}

type namePayload struct {
	Name string `json:"name"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type connection struct {
	id    string
	role  views.Role
	scope domain.Scope
	name  string
}

// ServeWS upgrades HTTP requests to websockets and streams the role view of one scope.
// Students may submit responses; instructor connections may run transitions.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caseID := q.Get("caseId")
	if caseID == "" {
		caseID = domain.DefaultCaseID
	}
	scope := domain.NewScope(caseID, q.Get("sessionId"))
	role, ok := views.ParseRole(q.Get("role"))
	if scope.SessionID == "" || !ok {
		http.Error(w, "missing sessionId or role", http.StatusBadRequest)
		return
	}
	conn := &connection{id: uuid.NewString(), role: role, scope: scope, name: strings.TrimSpace(q.Get("name"))}
	if conn.name == "" {
		conn.name = rememberedName(r, scope)
	}

	updates, cancel, err := h.svc.Sync.Subscribe(r.Context(), scope)
	if err != nil {
		status, body := statusFor(err)
		http.Error(w, body.Error, status)
		return
	}
	defer cancel()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("conn", conn.id).Msg("ws upgrade failed")
		return
	}
	defer ws.Close()

	logger := log.With().Str("conn", conn.id).Str("case", scope.CaseID).Str("session", scope.SessionID).
		Str("role", string(role)).Logger()
	logger.Info().Msg("ws connected")
	defer logger.Info().Msg("ws disconnected")

	// heartbeats keep this connection counted and pick up viewers joining or leaving
	var (
		viewers   int64
		heartbeat <-chan time.Time
	)
	if presence := h.svc.Presence; presence != nil {
		n, err := presence.Heartbeat(r.Context(), scope, conn.id)
		if err != nil {
			logger.Warn().Err(err).Msg("presence heartbeat")
		}
		viewers = n
		ticker := time.NewTicker(presence.HeartbeatEvery())
		defer ticker.Stop()
		heartbeat = ticker.C
		defer func() {
			if err := presence.Leave(context.WithoutCancel(r.Context()), scope, conn.id); err != nil {
				logger.Warn().Err(err).Msg("presence leave")
			}
		}()
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	names := make(chan string, 1)

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := ws.WriteJSON(msg); err != nil {
				logger.Warn().Err(err).Msg("ws write error")
				// keep draining so producers never block
				for range send {
				}
				return
			}
		}
	}()

	// the view is rebuilt on every snapshot and whenever the student's name changes
	go func() {
		defer close(updatesDone)
		var latest *realtime.Snapshot
		name := conn.name
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				latest = &snap
			case name = <-names:
				if latest == nil {
					continue
				}
			case <-heartbeat:
				n, err := h.svc.Presence.Heartbeat(r.Context(), scope, conn.id)
				if err != nil {
					logger.Warn().Err(err).Msg("presence heartbeat")
					continue
				}
				if n == viewers {
					continue
				}
				viewers = n
				if latest == nil || role == views.RoleStudent {
					continue
				}
			case <-closeSignals:
				return
			}
			select {
			case send <- outboundMessage[any]{Type: "view", Payload: views.Build(role, *latest, name, viewers)}:
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}
	replyError := func(err error) {
		_, body := statusFor(err)
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: body.Error}})
	}

	for {
		var inbound inboundMessage
		if err := ws.ReadJSON(&inbound); err != nil {
			break
		}
		switch {
		case inbound.Type == "submit" && role == views.RoleStudent:
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}})
				continue
			}
			row, err := h.svc.Ledger.Submit(r.Context(), domain.Submission{
				CaseID:      scope.CaseID,
				SessionID:   scope.SessionID,
				Step:        payload.Step,
				StudentName: conn.name,
				Answer:      payload.Answer,
				Sentiment:   payload.Sentiment,
				PollChoice:  payload.PollChoice,
			})
			if err != nil {
				replyError(err)
				continue
			}
			reply(outboundMessage[any]{Type: "submitted", Payload: row})
		case inbound.Type == "setName" && role == views.RoleStudent:
			var payload namePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid name payload"}})
				continue
			}
			conn.name = strings.TrimSpace(payload.Name)
			select {
			case <-names:
			default:
			}
			names <- conn.name
		case role == views.RoleInstructor && isCommand(inbound.Type):
			state, err := runCommand(r.Context(), h.svc, scope, inbound.Type)
			if err != nil {
				replyError(err)
				continue
			}
			reply(outboundMessage[any]{Type: "state", Payload: state})
		default:
			reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func isCommand(action string) bool {
	switch action {
	case "advance", "back", "reveal", "toggle-mode", "reset":
		return true
	}
	return false
}
