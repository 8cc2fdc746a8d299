// Package client is the Go SDK for the chat HTTP API and realtime gateway.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	chat_errors "carelink-chat/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a client for baseURL (scheme and host, without /v1) authenticating with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// APIError is a non-2xx response. It unwraps to the matching sentinel from pkg/errors.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

var codeErrors = map[string]error{
	"UNAUTHORIZED":           chat_errors.ErrUnauthenticated,
	"INVALID_PARTICIPANTS":   chat_errors.ErrInvalidParticipants,
	"INVALID_REQUEST":        chat_errors.ErrInvalidInput,
	"NOT_A_PARTICIPANT":      chat_errors.ErrNotAParticipant,
	"CONVERSATION_NOT_FOUND": chat_errors.ErrConversationNotFound,
	"MESSAGE_NOT_FOUND":      chat_errors.ErrMessageNotFound,
	"NOT_FOUND":              chat_errors.ErrNotFound,
	"RATE_LIMITED":           chat_errors.ErrRateLimited,
	"STORE_UNAVAILABLE":      chat_errors.ErrTransientStore,
	"CREATION_FAILED":        chat_errors.ErrCreationFailed,
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // .
	c.log.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// FindOrCreate returns the conversation with participantID, creating it when absent.
func (c *Client) FindOrCreate(ctx context.Context, participantID uuid.UUID, appointmentID *string) (Conversation, bool, error) {
	var out struct {
		Conversation Conversation `json:"conversation"`
		Created      bool         `json:"created"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/conversations", map[string]any{
		"participant_id": participantID.String(),
		"appointment_id": appointmentID,
	}, &out)
	return out.Conversation, out.Created, err
}

func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) GetConversation(ctx context.Context, conversationID uuid.UUID) (Conversation, error) {
	var out Conversation
	err := c.do(ctx, http.MethodGet, "/v1/conversations/"+conversationID.String(), nil, &out)
	return out, err
}

func (c *Client) Contacts(ctx context.Context, limit int) ([]Profile, error) {
	path := "/v1/contacts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Contacts []Profile `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

// ListMessages returns a page of live messages, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/conversations/" + conversationID.String() + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID uuid.UUID, req SendMessageRequest) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, "/v1/conversations/"+conversationID.String()+"/messages", req, &out)
	return out, err
}

func (c *Client) MarkRead(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/conversations/"+conversationID.String()+"/read", nil, &out)
	return out.Marked, err
}

func (c *Client) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/v1/messages/"+messageID.String(), nil, nil)
}

func (c *Client) PresignAttachment(ctx context.Context, req PresignRequest) (PresignedUpload, error) {
	var out PresignedUpload
	err := c.do(ctx, http.MethodPost, "/v1/attachments", req, &out)
	return out, err
}
