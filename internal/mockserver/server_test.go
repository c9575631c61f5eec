package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
	"github.com/maremivazquez1/dta-client/internal/auth"
	ws "github.com/maremivazquez1/dta-client/internal/websocket"
)

var testSecret = []byte("mock-test-secret")

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(testSecret, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func login(t *testing.T, srv *httptest.Server) (token, userID string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": "a@b.test", "password": "pw"})
	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	return payload["token"], payload["user_id"]
}

func nextMessage(t *testing.T, conn *ws.Conn, classifier *ws.Classifier) entities.Message {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-conn.Frames():
			if !ok {
				t.Fatal("connection closed while waiting for a message")
			}
			if msg, ok := classifier.Classify(frame); ok {
				return msg
			}
		case <-timeout:
			t.Fatal("timed out waiting for a message")
		}
	}
}

func TestLogin_MintsValidToken(t *testing.T) {
	srv := startServer(t)
	token, userID := login(t, srv)

	claims, err := auth.Validate(testSecret, token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != userID {
		t.Errorf("claims user = %q, login user = %q", claims.UserID, userID)
	}
}

func TestLogin_RequiresCredentials(t *testing.T) {
	srv := startServer(t)

	body, _ := json.Marshal(map[string]string{"email": "a@b.test"})
	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCBT_UtteranceTurn(t *testing.T) {
	srv := startServer(t)
	token, userID := login(t, srv)

	conn, err := ws.Dial(context.Background(), wsURL(srv, "/ws/cbt"), token, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	classifier := ws.NewClassifier(zap.NewNop())

	// A header+blob pair produces transcription, reply, and audio in order.
	header := ws.NewHeaderMessage("sess-1", userID, entities.Utterance{
		FileID: "file-1",
		Start:  time.Now(),
		End:    time.Now(),
	}, entities.ModalityAudio)
	payload, err := json.Marshal(header)
	if err != nil {
		t.Fatal(err)
	}
	conn.SendText(payload)
	conn.SendBinary([]byte("opus-data"))

	msg := nextMessage(t, conn, classifier)
	if msg.Kind != entities.MessageKindTranscript {
		t.Fatalf("first message kind = %s, want transcript", msg.Kind)
	}
	msg = nextMessage(t, conn, classifier)
	if msg.Kind != entities.MessageKindAssistantReply {
		t.Fatalf("second message kind = %s, want assistant reply", msg.Kind)
	}
	msg = nextMessage(t, conn, classifier)
	if msg.Kind != entities.MessageKindAudioReply {
		t.Fatalf("third message kind = %s, want audio reply", msg.Kind)
	}
	if msg.Audio == nil || len(msg.Audio.Data) == 0 {
		t.Error("audio reply has no payload")
	}
}

func TestCBT_BlobWithoutHeaderIsAnError(t *testing.T) {
	srv := startServer(t)

	conn, err := ws.Dial(context.Background(), wsURL(srv, "/ws/cbt"), "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	classifier := ws.NewClassifier(zap.NewNop())

	conn.SendBinary([]byte("orphan blob"))

	// The error frame classifies as the fixed apology.
	msg := nextMessage(t, conn, classifier)
	if msg.Text != entities.AudioErrorFallbackText {
		t.Errorf("text = %q, want the apology", msg.Text)
	}
}

func TestCBT_RejectsInvalidToken(t *testing.T) {
	srv := startServer(t)

	_, err := ws.Dial(context.Background(), wsURL(srv, "/ws/cbt"), "not-a-token", zap.NewNop())
	if err == nil {
		t.Fatal("dial succeeded with a garbage token")
	}
}

func TestBurnout_FullAssessment(t *testing.T) {
	srv := startServer(t)
	token, _ := login(t, srv)

	conn, err := ws.Dial(context.Background(), wsURL(srv, "/ws/burnout"), token, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	classifier := ws.NewClassifier(zap.NewNop())

	kickoff, _ := json.Marshal(ws.StartBurnoutMessage{Type: ws.TypeStartBurnout, RequestID: "req-1"})
	conn.SendText(kickoff)

	msg := nextMessage(t, conn, classifier)
	if msg.Kind != entities.MessageKindDomainEvent || msg.Event.Kind != ws.TypeBurnoutQuestions {
		t.Fatalf("message = %+v, want the question batch", msg)
	}
	var batch ws.BurnoutQuestionsMessage
	if err := json.Unmarshal(msg.Event.Payload, &batch); err != nil {
		t.Fatal(err)
	}
	if batch.SessionID == "" || len(batch.Questions) == 0 {
		t.Fatalf("batch = %+v", batch)
	}

	for _, q := range batch.Questions {
		response := "sometimes"
		if q.Multimodal {
			// Recorded answers upload their media first and correlate by
			// the utterance file id.
			utterance := entities.Utterance{FileID: "file-vlog-1", Start: time.Now(), End: time.Now()}
			header, err := json.Marshal(ws.NewHeaderMessage(batch.SessionID, "user-1", utterance, entities.ModalityAudio))
			if err != nil {
				t.Fatal(err)
			}
			conn.SendText(header)
			conn.SendBinary([]byte("vlog-opus-data"))
			response = utterance.FileID
		}
		answer, _ := json.Marshal(ws.AnswerMessage{
			Type:       ws.TypeAnswer,
			SessionID:  batch.SessionID,
			QuestionID: q.QuestionID,
			Response:   response,
		})
		conn.SendText(answer)
	}
	complete, _ := json.Marshal(ws.AssessmentCompleteMessage{
		Type:      ws.TypeAssessmentComplete,
		SessionID: batch.SessionID,
	})
	conn.SendText(complete)

	msg = nextMessage(t, conn, classifier)
	if msg.Kind != entities.MessageKindDomainEvent || msg.Event.Kind != ws.TypeAssessmentResult {
		t.Fatalf("message = %+v, want the assessment result", msg)
	}
	var result ws.AssessmentResultMessage
	if err := json.Unmarshal(msg.Event.Payload, &result); err != nil {
		t.Fatal(err)
	}
	if result.Score <= 0 || result.Summary == "" {
		t.Errorf("result = %+v", result)
	}
}
