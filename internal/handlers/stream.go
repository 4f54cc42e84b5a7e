package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"relief-route-viewer/internal/highlight"
	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/viewer"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 20 * time.Second
	streamReadLimit  = 4096

	defaultHoverEventsPerSec = 30
)

// Stream message types
const (
	MsgHover  = "hover"
	MsgLeave  = "leave"
	MsgSelect = "select"
	MsgState  = "state"
	MsgError  = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return AllowedOrigin(r.Header.Get("Origin")) },
}

// AllowedOrigin reports whether a browser origin may call the API. Only the
// desktop webview and local pages are allowed; requests without an Origin
// header are not browser cross-origin requests.
func AllowedOrigin(origin string) bool {
	return origin == "" ||
		strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "wails://")
}

// ClientMessage is sent by a renderer over the stream
type ClientMessage struct {
	Type  string `json:"type"`
	Index *int   `json:"index,omitempty"`
}

// StreamMessage is pushed to renderers. Styles holds the effective style of
// every marker and polyline keyed by element id, so renderers restyle the
// elements they already draw instead of redrawing the overlay.
type StreamMessage struct {
	Type      string                            `json:"type"`
	Solution  int                               `json:"solution"`
	HasData   bool                              `json:"has_data"`
	Highlight models.HighlightState             `json:"highlight"`
	Styles    map[string]highlight.ElementStyle `json:"styles,omitempty"`
	Message   string                            `json:"message,omitempty"`
}

// HandleStream handles GET /api/v1/sessions/{id}/stream. The server pushes a
// state message on connect and after every solution or highlight change,
// whichever renderer caused it. Hover messages beyond the configured rate
// are held back; only the latest is applied when the rate allows.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("session", session.ID).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.WithFields(logrus.Fields{"session": session.ID, "remote": r.RemoteAddr})
	logger.Info("Stream connected")

	// Coalesces changes; the writer always sends the latest state
	notify := make(chan struct{}, 1)
	errs := make(chan string, 4)

	var unsubscribe func()
	session.With(func(c *viewer.Controller) error {
		unsubscribe = c.Subscribe(func(viewer.Event) {
			select {
			case notify <- struct{}{}:
			default:
			}
		})
		return nil
	})
	defer session.With(func(*viewer.Controller) error {
		unsubscribe()
		return nil
	})
	notify <- struct{}{}

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.streamWriter(conn, session, notify, errs, done)
	}()

	report := func(err error) {
		select {
		case errs <- err.Error():
		default:
		}
	}
	hovers := newHoverGate(rate.NewLimiter(rate.Limit(h.hoverRate()), 1), func(i int) error {
		return session.With(func(c *viewer.Controller) error {
			return c.SetHighlight(i)
		})
	}, report)

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Warn("Stream read error")
			}
			break
		}
		if err := applyStreamMessage(session, hovers, msg); err != nil {
			report(err)
		}
	}

	hovers.Cancel()
	close(done)
	<-writerDone
	logger.Info("Stream disconnected")
}

func (h *Handler) hoverRate() float64 {
	if h.HoverEventsPerSec > 0 {
		return h.HoverEventsPerSec
	}
	return defaultHoverEventsPerSec
}

func (h *Handler) streamWriter(conn *websocket.Conn, session *ViewSession, notify <-chan struct{}, errs <-chan string, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	write := func(msg StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(msg)
	}

	for {
		var err error
		select {
		case <-done:
			return
		case <-notify:
			err = write(stateMessage(session))
		case message := <-errs:
			err = write(StreamMessage{Type: MsgError, Message: message})
		case <-ticker.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
		}
		if err != nil {
			// Unblocks the reader
			conn.Close()
			return
		}
	}
}

func stateMessage(session *ViewSession) StreamMessage {
	msg := StreamMessage{Type: MsgState}
	session.With(func(c *viewer.Controller) error {
		view := c.View()
		msg.Solution = c.ActiveIndex()
		msg.HasData = c.HasData()
		msg.Highlight = view.Highlight
		msg.Styles = make(map[string]highlight.ElementStyle, len(view.Markers)+len(view.Polylines)+1)
		if view.Origin != nil {
			msg.Styles[view.Origin.Marker.ID] = view.Origin.Style
		}
		for _, m := range view.Markers {
			msg.Styles[m.Marker.ID] = m.Style
		}
		for _, p := range view.Polylines {
			msg.Styles[p.Polyline.ID] = p.Style
		}
		return nil
	})
	return msg
}

func applyStreamMessage(session *ViewSession, hovers *hoverGate, msg ClientMessage) error {
	switch msg.Type {
	case MsgHover:
		if msg.Index == nil {
			return fmt.Errorf("hover requires an index")
		}
		return hovers.Hover(*msg.Index)
	case MsgLeave:
		hovers.Cancel()
		return session.With(func(c *viewer.Controller) error {
			c.ClearHighlight()
			return nil
		})
	case MsgSelect:
		if msg.Index == nil {
			return fmt.Errorf("select requires an index")
		}
		hovers.Cancel()
		return session.With(func(c *viewer.Controller) error {
			return c.SelectSolution(*msg.Index)
		})
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}
