package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/livestate"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	liveBuffer   = 4
	readLimitLen = 512
)

// LiveMessage is pushed to /api/v1/live subscribers once per tick.
type LiveMessage struct {
	Tick        uint64    `json:"tick"`
	GeneratedAt time.Time `json:"generated_at"`
	AtRisk      bool      `json:"at_risk"`
	HighRisk    []int     `json:"high_risk"`
	Skipped     []int     `json:"skipped,omitempty"`
	Message     string    `json:"message"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLive upgrades to a websocket and streams the roster of each
// published tick.
func (s *Server) handleLive(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	snaps, cancel := s.ticks.Subscribe(liveBuffer)
	log := s.log.WithField("remote", c.ClientIP())
	log.Info("Live subscriber connected")

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(c.Request.Context(), conn, snaps, done, log)

	cancel()
	conn.Close()
	log.Info("Live subscriber disconnected")
}

// readPump drains client frames so pongs and close frames are processed.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(readLimitLen)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, snaps <-chan *livestate.Snapshot, done <-chan struct{}, log *logrus.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Send the current roster first so clients don't wait a full interval
	var last uint64
	if snap, err := s.views.Snapshot(ctx); err == nil {
		if !s.sendRoster(conn, snap, log) {
			return
		}
		last = snap.Tick()
	}

	for {
		select {
		case <-done:
			return
		case snap, ok := <-snaps:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if snap.Stale(last + 1) {
				continue
			}
			if !s.sendRoster(conn, snap, log) {
				return
			}
			last = snap.Tick()
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendRoster(conn *websocket.Conn, snap *livestate.Snapshot, log *logrus.Entry) bool {
	view, err := s.views.AdminFor(snap)
	if err != nil {
		log.WithError(err).WithField("tick", snap.Tick()).Error("Failed to render live roster")
		return true
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(LiveMessage{
		Tick:        view.Tick,
		GeneratedAt: view.GeneratedAt,
		AtRisk:      view.AtRisk,
		HighRisk:    view.HighRisk,
		Skipped:     view.Skipped,
		Message:     view.Message,
	})
	if err != nil {
		log.WithError(err).Debug("Live write failed")
		return false
	}
	return true
}
