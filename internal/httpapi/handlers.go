package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/gameerr"
	"github.com/vctt94/koikoisrv/internal/ports"
	"github.com/vctt94/koikoisrv/internal/turnflow"
	"github.com/vctt94/koikoisrv/internal/usecase"
)

// subscriberBufferSize bounds how many unread events a client's SSE stream
// can queue before new ones are dropped.
const subscriberBufferSize = 256

// Server holds the dependencies every HTTP handler needs: the use cases
// (command ports), the turn-flow service (connect/disconnect hooks), the
// connection store (subscriber registry), and the configured timeouts that
// govern this transport's own concerns (heartbeat cadence, disconnect
// grace).
type Server struct {
	log               slog.Logger
	uc                *usecase.Interactors
	flow              *turnflow.Service
	conn              ports.ConnectionStore
	heartbeat         time.Duration
	disconnectTimeout time.Duration
}

// New builds a Server. log is tagged "HTTP" by convention (see cmd/koikoisrv).
func New(log slog.Logger, uc *usecase.Interactors, flow *turnflow.Service, conn ports.ConnectionStore, heartbeat, disconnectTimeout time.Duration) *Server {
	return &Server{log: log, uc: uc, flow: flow, conn: conn, heartbeat: heartbeat, disconnectTimeout: disconnectTimeout}
}

// Router builds the gin.Engine exposing the command and connect endpoints.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1/games")
	v1.GET("/connect", s.Connect)
	v1.POST("/:id/actions/play-hand-card", s.PlayHandCard)
	v1.POST("/:id/actions/select-target", s.SelectTarget)
	v1.POST("/:id/decision", s.Decision)
	v1.POST("/:id/leave", s.Leave)
	v1.POST("/:id/confirm-continue", s.ConfirmContinue)
	return r
}

// Connect implements `GET /api/v1/games/connect`: opens
// an SSE stream, either joining/creating a game, reconnecting to one, or
// reporting it finished/expired as the stream's first and possibly only
// event.
func (s *Server) Connect(c *gin.Context) {
	playerID := resolveOrAssignPlayerID(c)
	displayName := c.Query("player_name")
	gameID := c.Query("game_id")
	roomType := c.Query("room_type")

	result, err := s.uc.JoinGame(c.Request.Context(), usecase.JoinGameInput{
		PlayerID:    playerID,
		DisplayName: displayName,
		GameID:      gameID,
		RoomType:    roomType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	initial, ferr := formatSSE(ports.Event{
		EventType: string(result.Payload.Kind()),
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
		GameID:    result.Payload.GameID,
		PlayerID:  playerID,
		Payload:   result.Payload,
	})
	if ferr != nil {
		writeError(c, gameerr.Wrap(gameerr.CodeInternal, "failed to encode initial event", ferr))
		return
	}

	switch result.Payload.ResponseType {
	case "game_finished", "game_expired":
		// These close the stream immediately after the first event, no
		// subscriber registration needed.
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Writer.WriteHeader(http.StatusOK)
		c.Writer.Write(initial)
		c.Writer.Flush()
		return
	}

	sub := newSubscriber(s.log, result.Payload.GameID, playerID, subscriberBufferSize)
	s.conn.Subscribe(result.Payload.GameID, playerID, sub)
	s.flow.OnSubscribe(c.Request.Context(), result.Payload.GameID, playerID)
	defer func() {
		s.conn.Unsubscribe(result.Payload.GameID, playerID)
		sub.Close()
		// The request context is already canceled once the stream ends; the
		// disconnect bookkeeping must still run and persist.
		s.flow.OnUnsubscribe(context.Background(), result.Payload.GameID, playerID, s.disconnectTimeout)
	}()

	streamLoop(c, sub, initial, s.heartbeat)
}

// PlayHandCard implements `POST /{id}/actions/play-hand-card`.
func (s *Server) PlayHandCard(c *gin.Context) {
	playerID, ok := requirePlayerID(c)
	if !ok {
		return
	}
	var body struct {
		CardID string `json:"cardId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, gameerr.Newf(gameerr.CodeInvalidInput, "invalid request body: %v", err))
		return
	}
	card, err := cardgame.ParseCard(body.CardID)
	if err != nil {
		writeError(c, gameerr.Newf(gameerr.CodeInvalidInput, "invalid cardId: %v", err))
		return
	}
	if err := s.uc.PlayHandCard(c.Request.Context(), usecase.PlayHandCardInput{
		GameID: c.Param("id"), PlayerID: playerID, Card: card,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SelectTarget implements `POST /{id}/actions/select-target`.
func (s *Server) SelectTarget(c *gin.Context) {
	playerID, ok := requirePlayerID(c)
	if !ok {
		return
	}
	var body struct {
		SourceCardID string `json:"sourceCardId"`
		TargetCardID string `json:"targetCardId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, gameerr.Newf(gameerr.CodeInvalidInput, "invalid request body: %v", err))
		return
	}
	source, err := cardgame.ParseCard(body.SourceCardID)
	if err != nil {
		writeError(c, gameerr.Newf(gameerr.CodeInvalidInput, "invalid sourceCardId: %v", err))
		return
	}
	target, err := cardgame.ParseCard(body.TargetCardID)
	if err != nil {
		writeError(c, gameerr.Newf(gameerr.CodeInvalidInput, "invalid targetCardId: %v", err))
		return
	}
	if err := s.uc.SelectTarget(c.Request.Context(), usecase.SelectTargetInput{
		GameID: c.Param("id"), PlayerID: playerID, SourceCard: source, TargetCard: target,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Decision implements `POST /{id}/decision`.
func (s *Server) Decision(c *gin.Context) {
	playerID, ok := requirePlayerID(c)
	if !ok {
		return
	}
	var body struct {
		Decision string `json:"decision"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, gameerr.Newf(gameerr.CodeInvalidInput, "invalid request body: %v", err))
		return
	}
	decision := cardgame.Decision(body.Decision)
	if decision != cardgame.DecisionKoiKoi && decision != cardgame.DecisionEndRound {
		writeError(c, gameerr.Newf(gameerr.CodeValidationError, "decision must be KOI_KOI or END_ROUND, got %q", body.Decision))
		return
	}
	if err := s.uc.MakeDecision(c.Request.Context(), usecase.MakeDecisionInput{
		GameID: c.Param("id"), PlayerID: playerID, Decision: decision,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Leave implements `POST /{id}/leave`.
func (s *Server) Leave(c *gin.Context) {
	playerID, ok := requirePlayerID(c)
	if !ok {
		return
	}
	if err := s.uc.LeaveGame(c.Request.Context(), usecase.LeaveGameInput{
		GameID: c.Param("id"), PlayerID: playerID,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ConfirmContinue implements `POST /{id}/confirm-continue`.
func (s *Server) ConfirmContinue(c *gin.Context) {
	playerID, ok := requirePlayerID(c)
	if !ok {
		return
	}
	var body struct {
		Decision string `json:"decision"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, gameerr.Newf(gameerr.CodeInvalidInput, "invalid request body: %v", err))
		return
	}
	var cont bool
	switch body.Decision {
	case "CONTINUE":
		cont = true
	case "LEAVE":
		cont = false
	default:
		writeError(c, gameerr.Newf(gameerr.CodeValidationError, "decision must be CONTINUE or LEAVE, got %q", body.Decision))
		return
	}
	if err := s.uc.ConfirmContinue(c.Request.Context(), usecase.ConfirmContinueInput{
		GameID: c.Param("id"), PlayerID: playerID, Continue: cont,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
