package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"carelink-chat/pkg/events"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait = 10 * time.Second
	streamBuffer    = 64
)

var ErrStreamClosed = errors.New("stream closed")

// Stream is a realtime gateway connection. Envelopes for subscribed topics arrive on Events.
type Stream struct {
	conn    *websocket.Conn
	log     *zap.Logger
	events  chan events.Envelope
	writeMu sync.Mutex

	mu      sync.Mutex
	waiters map[string][]chan error
	closed  bool
	err     error
	done    chan struct{}
}

func wsURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// Dial opens the realtime stream for the client's user.
func (c *Client) Dial(ctx context.Context) (*Stream, error) {
	target, err := wsURL(c.baseURL, c.token)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	s := &Stream{
		conn:    conn,
		log:     c.log.Named("stream"),
		events:  make(chan events.Envelope, streamBuffer),
		waiters: make(map[string][]chan error),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events is closed after the connection ends.
func (s *Stream) Events() <-chan events.Envelope {
	return s.events
}

// Done is closed when the connection ends; Err then reports why.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Subscribe(ctx context.Context, topic string) error {
	return s.command(ctx, events.ActionSubscribe, topic)
}

func (s *Stream) Unsubscribe(ctx context.Context, topic string) error {
	return s.command(ctx, events.ActionUnsubscribe, topic)
}

func waiterKey(action, topic string) string {
	return action + "|" + topic
}

// command sends a subscription change and waits for the gateway's ack or error frame.
func (s *Stream) command(ctx context.Context, action, topic string) error {
	reply := make(chan error, 1)
	key := waiterKey(action, topic)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.waiters[key] = append(s.waiters[key], reply)
	s.mu.Unlock()

	data, err := json.Marshal(events.Command{Action: action, Topic: topic})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	err = s.conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		s.dropWaiter(key, reply)
		return fmt.Errorf("write %s command: %w", action, err)
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		s.dropWaiter(key, reply)
		return ctx.Err()
	}
}

func (s *Stream) dropWaiter(key string, reply chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.waiters[key]
	for i, w := range list {
		if w == reply {
			s.waiters[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

func (s *Stream) resolve(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.waiters[key]
	if len(list) == 0 {
		return
	}
	list[0] <- err
	s.waiters[key] = list[1:]
}

func (s *Stream) readLoop() {
	var readErr error
	defer func() {
		s.shutdown(readErr)
		close(s.events)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		var frame events.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn("malformed frame", zap.Error(err))
			continue
		}
		switch frame.Type {
		case events.FrameEvent:
			var env events.Envelope
			if err := json.Unmarshal(frame.Event, &env); err != nil {
				s.log.Warn("malformed event", zap.String("topic", frame.Topic), zap.Error(err))
				continue
			}
			select {
			case s.events <- env:
			case <-s.done:
				return
			}
		case events.FrameAck:
			s.resolve(waiterKey(frame.Action, frame.Topic), nil)
		case events.FrameError:
			s.resolve(waiterKey(frame.Action, frame.Topic), fmt.Errorf("gateway rejected %s %s: %s", frame.Action, frame.Topic, frame.Error))
		}
	}
}

func (s *Stream) shutdown(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.err == nil {
		s.err = err
	}
	for key, list := range s.waiters {
		for _, w := range list {
			w <- ErrStreamClosed
		}
		delete(s.waiters, key)
	}
	close(s.done)
	s.mu.Unlock()
	_ = s.conn.Close()
}

// Close ends the connection.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	s.shutdown(ErrStreamClosed)
	return nil
}
