// internal/app/features/fairdash/socket.go
package fairdash

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/system/render"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// frame is the JSON message sent for one pass.
type frame struct {
	Fragments []render.Fragment `json:"fragments"`
}

// socketEmitter writes pass frames to one websocket connection.
type socketEmitter struct {
	conn *websocket.Conn
	mu   sync.Mutex
	once sync.Once
	done chan struct{}
}

func newSocketEmitter(conn *websocket.Conn) *socketEmitter {
	return &socketEmitter{conn: conn, done: make(chan struct{})}
}

func (e *socketEmitter) Emit(frags []render.Fragment) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return e.conn.WriteJSON(frame{Fragments: frags})
}

func (e *socketEmitter) ping() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (e *socketEmitter) Close() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		e.mu.Lock()
		_ = e.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		e.mu.Unlock()
		err = e.conn.Close()
	})
	return err
}

// ServeSocket upgrades the request and attaches the connection to the
// session. The client only reads; inbound messages are discarded.
func (h *Handler) ServeSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	em := newSocketEmitter(conn)

	ctx, cancel := context.WithTimeout(r.Context(), actionTimeout)
	err = sess.Attach(ctx, em)
	cancel()
	if err != nil {
		h.Log.Debug("attach websocket failed", zap.String("session", sess.ID), zap.Error(err))
		_ = em.Close()
		return
	}

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-em.done:
				return
			case <-ticker.C:
				if err := em.ping(); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	sess.Detach(em)
	_ = em.Close()
}
