// internal/httpserver/ws.go
//
// Websocket transport for a live session: GET /sessions/{id}/ws.
//
// Server → client frames:
//   {"type":"snapshot","snapshot":{...}}   after every state change
//   {"type":"error","error":"..."}         for rejected client frames
//
// Client → server frames:
//   {"type":"input","text":"..."}   full current value of the input field
//   {"type":"round"}                start a round now
//   {"type":"miss"}                 give up on the current word
//   {"type":"reset"}                restart the game
//
// One goroutine writes (snapshots, errors, pings); the handler goroutine
// reads. The connection ends when either side fails or the session closes.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/typing-escape/internal/game"
	"github.com/robalobadob/typing-escape/internal/store"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsMaxMessage = 4096
)

// wsIn is a client frame.
type wsIn struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// wsOut is a server frame.
type wsOut struct {
	Type     string         `json:"type"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	logger := requestLogger(r, sess.Game.ID())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	logger.Debug().Msg("websocket connected")

	snapshots, cancel := sess.Game.Subscribe()
	errs := make(chan string, 8)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		defer conn.Close()
		wsWriter(conn, snapshots, errs, done)
	}()

	s.wsReader(r.Context(), conn, sess, errs)

	cancel()
	close(done)
	<-writerDone
	logger.Debug().Msg("websocket disconnected")
}

// wsWriter owns all writes on conn until the session closes, the reader
// finishes, or a write fails.
func wsWriter(conn *websocket.Conn, snapshots <-chan game.Snapshot, errs <-chan string, done <-chan struct{}) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(wsOut{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case msg := <-errs:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsOut{Type: "error", Error: msg}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// wsReader applies client frames to the session until the connection fails.
func (s *Server) wsReader(ctx context.Context, conn *websocket.Conn, sess *store.Session, errs chan<- string) {
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	g := sess.Game
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		_ = s.store.Touch(ctx, g.ID())

		var msg wsIn
		if err := json.Unmarshal(data, &msg); err != nil {
			sendErr(errs, "bad_json")
			continue
		}
		switch msg.Type {
		case "input":
			g.Input(msg.Text)
		case "round":
			g.StartRound()
		case "miss":
			g.Miss()
		case "reset":
			g.Reset()
		default:
			sendErr(errs, "unknown_type")
		}
	}
}

// sendErr queues an error frame, dropping it if the writer is backed up.
func sendErr(errs chan<- string, msg string) {
	select {
	case errs <- msg:
	default:
	}
}
