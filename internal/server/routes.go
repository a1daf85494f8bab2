package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"investment-server/internal/investment"
	"investment-server/internal/lobby"
)

var (
	errUnauthorized   = errors.New("UNAUTHORIZED: Invalid operator token")
	errInvalidPayload = errors.New("INVALID_PAYLOAD: Could not parse message payload")
	errRateLimited    = errors.New("RATE_LIMITED: Too many messages, slow down")
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.Get("/health", s.healthHandler)
	r.Get("/websocket", s.websocketHandler)
	r.Post("/rooms", s.newRoomHandler)
	r.Post("/admin/reset", s.resetAllHandler)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "ok",
		Store:       "up",
		Rooms:       s.rooms.Len(),
		Connections: s.connectionManager.Count(),
	}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("store health check failed")
		resp.Status = "degraded"
		resp.Store = "down"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// newRoomHandler suggests a room code that no live room uses.
func (s *Server) newRoomHandler(w http.ResponseWriter, r *http.Request) {
	code, err := GenerateRoomCode(func(code string) bool {
		_, ok := s.rooms.Get(code)
		return ok
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorPayload(err))
		return
	}
	writeJSON(w, http.StatusOK, NewRoomResponse{GameID: code})
}

func (s *Server) resetAllHandler(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !s.operatorAllowed(token) {
		writeJSON(w, http.StatusUnauthorized, errorPayload(errUnauthorized))
		return
	}

	n, err := s.gameManager.ResetAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("reset all failed")
		writeJSON(w, http.StatusInternalServerError, errorPayload(err))
		return
	}
	writeJSON(w, http.StatusOK, ResetAllResponse{Rooms: n})
}

// operatorAllowed reports whether token matches the configured operator token.
// An unset operator token disables the operator actions.
func (s *Server) operatorAllowed(token string) bool {
	if s.cfg.OperatorToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.OperatorToken)) == 1
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to open websocket")
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	connectionID := uuid.New().String()
	outbox := s.connectionManager.AddConnection(connectionID)
	log.Info().Str("connection", connectionID).Msg("new connection")

	go s.writeLoop(ctx, cancel, socket, outbox)

	defer func() {
		s.gameManager.Disconnect(lobby.Handle(connectionID))
		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		log.Info().Str("connection", connectionID).Msg("connection closed")
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Debug().Err(err).Str("connection", connectionID).Msg("read ended")
			return
		}

		if msgType != websocket.MessageText {
			log.Debug().Str("connection", connectionID).Msg("ignoring non-text frame")
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(connectionID, errRateLimited)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(connectionID, fmt.Errorf("INVALID_JSON: %v", err))
			continue
		}
		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(connectionID, err)
			continue
		}

		log.Debug().Str("connection", connectionID).Str("type", msg.Type).Msg("message received")

		if err := s.dispatch(ctx, connectionID, msg); err != nil {
			s.sendError(connectionID, err)
		}
	}
}

// writeLoop drains the connection's outbox onto the socket.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, socket *websocket.Conn, outbox <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-outbox:
			if !ok {
				return
			}
			writeCtx, done := context.WithTimeout(ctx, 10*time.Second)
			err := socket.Write(writeCtx, websocket.MessageText, data)
			done()
			if err != nil {
				log.Debug().Err(err).Msg("write failed, closing connection")
				cancel()
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, connectionID string, msg ClientMessage) error {
	h := lobby.Handle(connectionID)

	switch msg.Type {
	case MsgPing:
		s.connectionManager.SendTo(connectionID, MsgPong, struct{}{})
		return nil

	case MsgJoinGame:
		var req JoinGameRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := s.gameManager.JoinGame(ctx, req.GameID, req.PlayerName, h)
		return err

	case MsgAddCompany:
		var req CompanyRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.AddCompany(req.GameID, h, req.CompanyName)

	case MsgDeleteCompany:
		var req CompanyRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.DeleteCompany(req.GameID, h, req.CompanyName)

	case MsgStartInvestment:
		var req GameRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.StartInvestment(req.GameID, h)

	case MsgSubmitAllInvestments:
		var req SubmitInvestmentsRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.SubmitInvestments(req.GameID, h, req.Investments)

	case MsgPlayerReady:
		var req GameRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.PlayerReady(req.GameID, h)

	case MsgResetGame:
		var req GameRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.ResetGame(req.GameID, h)

	case MsgKickPlayer:
		var req KickPlayerRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.KickPlayer(req.GameID, h, lobby.Handle(req.PlayerID))

	case MsgModifyPlayerInvestment:
		var req ModifyInvestmentRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		return s.gameManager.ModifyInvestment(req.GameID, h, lobby.Handle(req.PlayerID), req.CompanyName, req.NewAmount)

	case MsgResetAllGames:
		var req ResetAllGamesRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		if !s.operatorAllowed(req.Token) {
			return errUnauthorized
		}
		n, err := s.gameManager.ResetAll(ctx)
		if err != nil {
			return err
		}
		s.connectionManager.SendTo(connectionID, MsgGameReset, GameResetNotification{
			Message: fmt.Sprintf("Reset %d games", n),
		})
		return nil
	}

	return ValidateMessageType(msg.Type)
}

// decode accepts a missing payload as an empty object.
func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errInvalidPayload
	}
	return nil
}

func (s *Server) sendError(connectionID string, err error) {
	log.Debug().Err(err).Str("connection", connectionID).Msg("rejecting message")
	s.connectionManager.SendTo(connectionID, MsgError, errorPayload(err))
}

// errorPayload splits a "CODE: message" error into its parts.
func errorPayload(err error) ErrorMessage {
	var e *investment.Error
	if errors.As(err, &e) {
		return ErrorMessage{Message: e.Message, Code: e.Code}
	}
	if errors.Is(err, lobby.ErrRoomClosed) {
		return ErrorMessage{Message: investment.ErrRoomNotFound.Message, Code: investment.ErrRoomNotFound.Code}
	}

	text := err.Error()
	if code, message, ok := strings.Cut(text, ": "); ok && code == strings.ToUpper(code) && !strings.Contains(code, " ") {
		return ErrorMessage{Message: message, Code: code}
	}
	return ErrorMessage{Message: text, Code: "INTERNAL"}
}
