package api

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/glowupapp/server/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The mobile-web client is served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inbound chat frame.
type coachInbound struct {
	Text string `json:"text"`
}

// Outbound chat frames. "chunk" carries one stream fragment; "done" closes a
// reply and reports the remaining free-message quota; "denied" is the
// upgrade prompt; "error" is a collaborator failure.
type coachOutbound struct {
	Type      string      `json:"type"`
	Text      string      `json:"text,omitempty"`
	Turns     []chat.Turn `json:"turns,omitempty"`
	Remaining *int        `json:"remaining,omitempty"`
	Feature   string      `json:"feature,omitempty"`
}

// CoachWSHandler runs one coach conversation per websocket connection. The
// transcript lives exactly as long as the connection: closing the socket is
// the navigate-away signal and cancels any in-flight reply stream.
func (h *APIHandler) CoachWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Coach websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := h.coach.NewSession()

	// gorilla connections allow one concurrent writer; chunks arrive from
	// the reconciler goroutine while this loop owns the connection.
	var writeMu sync.Mutex
	writeJSON := func(out coachOutbound) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(out)
	}

	// The live attachment, for cancelling on write failure or disconnect.
	var active atomic.Pointer[chat.Attachment]
	defer func() {
		if a := active.Load(); a != nil {
			a.Cancel()
		}
	}()

	remaining := h.coach.Remaining()
	if err := writeJSON(coachOutbound{Type: "history", Turns: session.History(), Remaining: &remaining}); err != nil {
		return
	}

	for {
		var in coachInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Coach websocket closed unexpectedly: %v", err)
			}
			return
		}

		onChunk := func(chunk string) {
			if err := writeJSON(coachOutbound{Type: "chunk", Text: chunk}); err != nil {
				if a := active.Load(); a != nil {
					a.Cancel()
				}
			}
		}

		attachment, decision, err := h.coach.Send(r.Context(), session, in.Text, onChunk)
		if err != nil {
			log.Printf("Coach send failed for session %s: %v", session.ID, err)
			if writeErr := writeJSON(coachOutbound{Type: "error", Text: chat.FallbackApology}); writeErr != nil {
				return
			}
			continue
		}
		if !decision.Allowed {
			if writeErr := writeJSON(coachOutbound{Type: "denied", Feature: string(decision.Feature)}); writeErr != nil {
				return
			}
			continue
		}

		active.Store(attachment)
		attachment.Wait()
		active.Store(nil)

		remaining := h.coach.Remaining()
		if err := writeJSON(coachOutbound{Type: "done", Turns: session.History(), Remaining: &remaining}); err != nil {
			return
		}
	}
}
