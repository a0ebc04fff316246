package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"nhooyr.io/websocket"

	"durak/internal/app"
	"durak/internal/auth"
	"durak/internal/ports/wire"
)

const sendBuffer = 64

// client is one socket subscribed to one room. It implements app.Subscriber.
type client struct {
	key    string
	userID string
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
	// overflow is closed when the room produced updates faster than the socket drained them.
	overflow chan struct{}
}

func (c *client) ViewerID() string { return c.userID }

// Deliver never blocks the room: a client that falls a full buffer behind is disconnected.
func (c *client) Deliver(u app.Update) {
	data, err := wire.EncodeUpdate(u)
	if err != nil {
		return
	}
	c.push(data)
}

func (c *client) push(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.closed = true
		close(c.overflow)
	}
}

// reject answers the submitter only; rejections are never broadcast.
func (c *client) reject(err error) {
	if msg, encErr := wire.EncodeRejected(err); encErr == nil {
		c.push(msg)
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// handleSocket upgrades GET /ws?room=<id>&token=<jwt>. The socket only watches and acts;
// seats are claimed with a join action. Closing the socket does not leave the room.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && !s.origins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}
	sess, err := s.issuer.Parse(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	room, err := s.reg.Get(r.URL.Query().Get("room"))
	if err != nil {
		writeErr(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("handleSocket: accept failed for %s: %v", sess.UserID, err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	c := &client{
		key:      uuid.NewString(),
		userID:   sess.UserID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		overflow: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := s.log.WithFields(map[string]interface{}{"room_id": room.ID(), "user_id": sess.UserID, "conn": c.key})
	if err := room.Subscribe(ctx, c.key, c); err != nil {
		_ = conn.Close(websocket.StatusGoingAway, err.Error())
		return
	}
	log.Info("handleSocket: connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, c, room)
		cancel()
	}()

	s.readLoop(ctx, c, sess, room, log)
	cancel()
	<-writerDone

	c.shutdown()
	unsubCtx, unsubCancel := context.WithTimeout(context.Background(), time.Second)
	defer unsubCancel()
	if err := room.Unsubscribe(unsubCtx, c.key); err != nil && !errors.Is(err, app.ErrRoomClosed) {
		log.Debug("handleSocket: unsubscribe: %v", err)
	}
	log.Info("handleSocket: disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *client, sess auth.Session, room *app.Room, log runtime.Logger) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.reject(fmt.Errorf("%w: %v", wire.ErrMalformed, err))
			continue
		}
		action, err := s.decode(sess, env)
		if err == nil {
			_, err = room.Submit(ctx, action)
		}
		if err != nil && ctx.Err() == nil {
			log.Debug("readLoop: %s rejected: %v", env.Type, err)
			c.reject(err)
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *client, room *app.Room) {
	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case msg := <-c.send:
			if err := s.write(ctx, c.conn, msg); err != nil {
				return
			}
		case <-c.overflow:
			_ = c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
			return
		case <-room.Done():
			s.drain(ctx, c)
			_ = c.conn.Close(websocket.StatusNormalClosure, "room closed")
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, s.writeTO)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// drain flushes updates queued before the room closed, including its close notice.
func (s *Server) drain(ctx context.Context, c *client) {
	for {
		select {
		case msg := <-c.send:
			if err := s.write(ctx, c.conn, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, s.writeTO)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, msg)
}
