package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mcqlab/internal/app"
	"mcqlab/internal/domain"
)

func TestWebSocketProgressStream(t *testing.T) {
	hub := app.NewProgressHub()
	hub.Open("sub-1")
	wsHandler := NewWSHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/generation", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/generation?submissionId=sub-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The initial snapshot arrives first.
	msg := readProgress(conn, t)
	if msg.Payload.Status != domain.StepPending {
		t.Fatalf("expected pending snapshot, got %+v", msg.Payload)
	}

	hub.Publish(domain.Progress{
		SubmissionID: "sub-1",
		Step:         domain.StepMCQs,
		Status:       domain.StepRunning,
	})
	msg = readProgress(conn, t)
	if msg.Payload.Step != domain.StepMCQs || msg.Payload.Status != domain.StepRunning {
		t.Fatalf("unexpected update %+v", msg.Payload)
	}

	hub.Close("sub-1", domain.Progress{
		SubmissionID: "sub-1",
		Step:         domain.StepTutorial,
		Status:       domain.StepDone,
		QuizID:       "quiz-1",
	})
	msg = readProgress(conn, t)
	if msg.Payload.Status != domain.StepDone || msg.Payload.QuizID != "quiz-1" {
		t.Fatalf("unexpected final update %+v", msg.Payload)
	}
}

func TestWebSocketUnknownSubmission(t *testing.T) {
	wsHandler := NewWSHandler(app.NewProgressHub())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/generation", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws/generation?submissionId=missing")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func readProgress(conn *websocket.Conn, t *testing.T) outboundMessage {
	t.Helper()
	var msg outboundMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}
