package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"mcqlab/internal/app"
	"mcqlab/internal/domain"
)

// WSHandler streams saga progress for a running submission over a websocket.
type WSHandler struct {
	hub      *app.ProgressHub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.ProgressHub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string          `json:"type"`
	Payload domain.Progress `json:"payload"`
}

// ServeWS upgrades the request and forwards progress updates until the
// submission finishes or the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	submissionID := r.URL.Query().Get("submissionId")
	if submissionID == "" {
		http.Error(w, "missing submissionId", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.hub.Subscribe(submissionID)
	if err != nil {
		http.Error(w, "unknown submission", http.StatusNotFound)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reads are drained only to observe the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "progress", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-clientGone:
			return
		}
	}
}
