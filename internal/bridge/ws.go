package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1 << 20
)

// WSFrame is a Frame whose isolated context is a websocket peer
type WSFrame struct {
	conn      *websocket.Conn
	listeners listenerSet

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

// NewWSFrame starts reading from conn. The frame owns conn from now on.
// Listeners passed here see every message, including the first.
func NewWSFrame(conn *websocket.Conn, listeners ...Listener) *WSFrame {
	f := &WSFrame{
		conn: conn,
		done: make(chan struct{}),
	}
	for _, l := range listeners {
		f.listeners.add(l)
	}
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go f.readLoop()
	go f.pingLoop()
	return f
}

// PostMessage writes msg to the peer
func (f *WSFrame) PostMessage(msg Message) error {
	select {
	case <-f.done:
		return ErrClosed
	default:
	}

	data, err := msg.Marshal()
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		f.fail(err)
		return err
	}
	return nil
}

// AddListener implements Frame
func (f *WSFrame) AddListener(l Listener) func() {
	return f.listeners.add(l)
}

// Done is closed once the connection is gone
func (f *WSFrame) Done() <-chan struct{} {
	return f.done
}

// Err returns why the frame stopped, nil for a clean close
func (f *WSFrame) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

// Close sends a close frame and tears the connection down
func (f *WSFrame) Close() error {
	f.writeMu.Lock()
	_ = f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	f.writeMu.Unlock()

	f.fail(nil)
	return nil
}

func (f *WSFrame) fail(err error) {
	f.closeOnce.Do(func() {
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			f.errMu.Lock()
			f.err = err
			f.errMu.Unlock()
		}
		close(f.done)
		_ = f.conn.Close()
	})
}

func (f *WSFrame) readLoop() {
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			f.fail(err)
			return
		}
		msg, err := UnmarshalMessage(data)
		if err != nil {
			continue
		}
		f.listeners.dispatch(msg)
	}
}

func (f *WSFrame) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.writeMu.Lock()
			err := f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			f.writeMu.Unlock()
			if err != nil {
				f.fail(err)
				return
			}
		}
	}
}

// Serve hosts frame behind conn: inbound websocket messages are posted to
// frame and frame replies are written back. It returns when the connection
// closes or ctx ends.
func Serve(ctx context.Context, conn *websocket.Conn, frame Frame) error {
	var peer *WSFrame
	ready := make(chan struct{})

	removeReply := frame.AddListener(func(msg Message) {
		<-ready
		_ = peer.PostMessage(msg)
	})
	defer removeReply()

	peer = NewWSFrame(conn, func(msg Message) {
		_ = frame.PostMessage(msg)
	})
	close(ready)
	defer peer.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-peer.Done():
		if err := peer.Err(); err != nil && !errors.Is(err, ErrClosed) {
			return err
		}
		return nil
	}
}
