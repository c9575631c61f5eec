// Package mockserver is a stand-in Digital Therapy Assistant backend for
// local development and integration tests. It speaks the CBT and burnout
// wire protocols end to end with canned content: headers are acknowledged
// with transcriptions, assessments get a question batch and a result.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
	"github.com/maremivazquez1/dta-client/internal/auth"
	ws "github.com/maremivazquez1/dta-client/internal/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer. Covers video blobs.
	maxMessageSize = 16 * 1024 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server hosts the mock auth and session endpoints.
type Server struct {
	echo   *echo.Echo
	secret []byte
	logger *zap.Logger
}

func New(secret []byte, logger *zap.Logger) *Server {
	s := &Server{
		echo:   echo.New(),
		secret: secret,
		logger: logger,
	}
	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())

	s.echo.POST("/api/v1/auth/login", s.handleLogin)
	// Registration mints a fresh user the same way login does here.
	s.echo.POST("/api/v1/auth/register", s.handleLogin)
	s.echo.GET("/ws/cbt", s.handleCBT)
	s.echo.GET("/ws/burnout", s.handleBurnout)
	return s
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password required"})
	}

	userID := "user_" + uuid.NewString()[:8]
	token, err := auth.Sign(s.secret, userID, 24*time.Hour)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "token generation failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token, "user_id": userID})
}

// authorize validates the optional token query parameter the client
// appends at connect time.
func (s *Server) authorize(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return nil
	}
	if _, err := auth.Validate(s.secret, token); err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}

// client wraps one upgraded connection with a serialized writer, the same
// shape the production backend uses.
type client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *zap.Logger
}

func (cl *client) writeJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		cl.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	cl.write(websocket.TextMessage, payload)
}

func (cl *client) write(messageType int, payload []byte) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := cl.conn.WriteMessage(messageType, payload); err != nil {
		cl.logger.Error("Failed to write reply", zap.Error(err))
	}
}

func (s *Server) handleCBT(c echo.Context) error {
	if err := s.authorize(c); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}
	go s.cbtLoop(&client{conn: conn, logger: s.logger})
	return nil
}

// cbtLoop acknowledges each header+blob pair with an input transcription,
// an assistant reply, and a synthesized audio frame, in that order.
func (s *Server) cbtLoop(cl *client) {
	defer cl.conn.Close()
	cl.conn.SetReadLimit(maxMessageSize)

	var pending *ws.HeaderMessage
	for {
		messageType, message, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var header ws.HeaderMessage
			if err := json.Unmarshal(message, &header); err != nil {
				s.logger.Warn("Malformed CBT message", zap.Error(err))
				continue
			}
			switch header.Type {
			case ws.TypeHeader:
				pending = &header
			case ws.TypeStartSession:
				cl.writeJSON(map[string]string{
					"type": ws.TypeOutputTranscription,
					"text": "Welcome back. What would you like to talk about today?",
				})
			default:
				s.logger.Warn("Unknown CBT message type", zap.String("type", header.Type))
			}

		case websocket.BinaryMessage:
			if pending == nil {
				cl.writeJSON(map[string]interface{}{"error": "blob without header", "code": 400})
				continue
			}
			if pending.Modality == entities.ModalityAudio {
				cl.writeJSON(map[string]string{
					"type": ws.TypeInputTranscription,
					"text": "I have been feeling overwhelmed lately.",
				})
				cl.writeJSON(map[string]string{
					"type": ws.TypeOutputTranscription,
					"text": "That sounds difficult. Let's unpack what has been weighing on you.",
				})
				cl.write(websocket.BinaryMessage, []byte("mock-mpeg-audio"))
			}
			s.logger.Info("Blob received",
				zap.String("fileID", pending.FileID),
				zap.String("modality", string(pending.Modality)),
				zap.Int("size", len(message)))
			pending = nil
		}
	}
}

func (s *Server) handleBurnout(c echo.Context) error {
	if err := s.authorize(c); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}
	go s.burnoutLoop(&client{conn: conn, logger: s.logger})
	return nil
}

var burnoutQuestions = []entities.BurnoutQuestion{
	{QuestionID: 1, Question: "How often in the past 2 weeks have you felt overwhelmed at work?", Domain: "work", Multimodal: false},
	{QuestionID: 2, Question: "How often in the past 2 weeks have you found it hard to concentrate?", Domain: "cognition", Multimodal: false},
	{QuestionID: 3, Question: "Record a short clip describing your current energy levels.", Domain: "energy", Multimodal: true},
}

// burnoutLoop runs the assessment protocol: kickoff, questions, answers,
// completion, result.
func (s *Server) burnoutLoop(cl *client) {
	defer cl.conn.Close()
	cl.conn.SetReadLimit(maxMessageSize)

	sessionID := ""
	answers := 0
	for {
		messageType, message, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			// Multimodal answer blob; nothing to transcribe here.
			continue
		}

		var envelope map[string]interface{}
		if err := json.Unmarshal(message, &envelope); err != nil {
			s.logger.Warn("Malformed burnout message", zap.Error(err))
			continue
		}
		msgType, _ := envelope["type"].(string)

		switch msgType {
		case ws.TypeStartBurnout:
			sessionID = "sess_" + uuid.NewString()[:8]
			cl.writeJSON(ws.BurnoutQuestionsMessage{
				Type:      ws.TypeBurnoutQuestions,
				SessionID: sessionID,
				Questions: burnoutQuestions,
			})

		case ws.TypeAnswer:
			answers++

		case ws.TypeAssessmentComplete:
			cl.writeJSON(ws.AssessmentResultMessage{
				Type:    ws.TypeAssessmentResult,
				Score:   float64(50 + 10*answers),
				Summary: "You are showing moderate signs of burnout. Consider scheduling regular recovery time.",
			})

		case ws.TypeHeader:
			// Media header for a multimodal answer; the blob follows.

		default:
			s.logger.Warn("Unknown burnout message type", zap.String("type", msgType))
		}
	}
}
