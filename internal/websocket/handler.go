package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"carelink-chat/internal/redis"
	"carelink-chat/internal/services"
	"carelink-chat/internal/transport/httpdto"
	"carelink-chat/pkg/events"
	"carelink-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ConnectLimiter throttles websocket handshakes per user.
type ConnectLimiter interface {
	AllowConnect(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *ChannelAuthorizer
	limiter    ConnectLimiter
	log        *logger.Logger
	upgrader   websocket.Upgrader
}

// NewHandler builds the websocket endpoint. limiter may be nil.
func NewHandler(auth *services.AuthService, hub *Hub, authorizer *ChannelAuthorizer, limiter ConnectLimiter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		auth:       auth,
		hub:        hub,
		authorizer: authorizer,
		limiter:    limiter,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func (h *Handler) Connect(c *gin.Context) {
	userID, sessionID, err := h.auth.Authenticate(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	if h.limiter != nil {
		res, err := h.limiter.AllowConnect(c.Request.Context(), userID.String())
		if err != nil {
			h.log.Warnf("websocket rate limit check failed: %v", err)
		} else if !res.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("too many connections", "RATE_LIMITED"))
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(services.WithUserSessionContext(context.Background(), userID, sessionID))
	defer cancel()

	client := NewClient(conn, userID)
	h.hub.Register(client)
	go client.WriteLoop(ctx)
	h.log.Debugf("websocket client %s connected for user %s", client.ID, userID)

	h.serve(ctx, client)

	h.hub.Unregister(client)
	h.log.Debugf("websocket client %s disconnected", client.ID)
}

// serve reads subscription commands until the connection fails.
func (h *Handler) serve(ctx context.Context, client *Client) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd events.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			client.SendFrame(events.Frame{Type: events.FrameError, Error: "malformed command"})
			continue
		}
		h.handleCommand(ctx, client, cmd)
	}
}

func (h *Handler) handleCommand(ctx context.Context, client *Client, cmd events.Command) {
	switch cmd.Action {
	case events.ActionSubscribe:
		ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, cmd.Topic)
		if err != nil {
			h.log.WithContext(ctx).Errorf("authorize %s for %s: %v", cmd.Topic, client.UserID, err)
			client.SendFrame(events.Frame{Type: events.FrameError, Action: cmd.Action, Topic: cmd.Topic, Error: "temporarily unavailable"})
			return
		}
		if !ok {
			client.SendFrame(events.Frame{Type: events.FrameError, Action: cmd.Action, Topic: cmd.Topic, Error: "forbidden"})
			return
		}
		if !h.await(ctx, h.hub.Subscribe(client, cmd.Topic)) {
			return
		}
	case events.ActionUnsubscribe:
		if !h.await(ctx, h.hub.Unsubscribe(client, cmd.Topic)) {
			return
		}
	default:
		client.SendFrame(events.Frame{Type: events.FrameError, Action: cmd.Action, Topic: cmd.Topic, Error: "unknown action"})
		return
	}
	client.SendFrame(events.Frame{Type: events.FrameAck, Action: cmd.Action, Topic: cmd.Topic})
}

func (h *Handler) await(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

