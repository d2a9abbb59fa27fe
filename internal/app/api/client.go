/*
Package api is the client of the chat server's REST endpoints: accounts, rooms and
message history. Calls are single request/response exchanges; failures come back as
*Error values carrying the HTTP status and the server's business code.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"swiftchat/internal/app/protocol"
)

const defaultTimeout = 15 * time.Second

// Error is a failed REST call.
type Error struct {
	Status  int
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api: %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// Account is returned by Register and Login.
type Account struct {
	Token    string      `json:"token"`
	UserID   protocol.ID `json:"id"`
	Username string      `json:"username"`
}

// Identity is the server's view of the bearer token.
type Identity struct {
	UserID   protocol.ID `json:"user_id"`
	Username string      `json:"username"`
}

type Room struct {
	ID          protocol.ID `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	MemberCount int         `json:"member_count"`
	CreatedBy   protocol.ID `json:"created_by,omitempty"`
}

type Message struct {
	ID        protocol.ID        `json:"id"`
	RoomID    protocol.ID        `json:"room_id"`
	UserID    protocol.ID        `json:"user_id"`
	Username  string             `json:"username"`
	Content   string             `json:"content"`
	Timestamp protocol.Timestamp `json:"timestamp"`
}

// Client calls the REST API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a Client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// WithToken returns a copy of c that sends tok as a bearer token.
func (c *Client) WithToken(tok string) *Client {
	clone := *c
	clone.token = tok
	return &clone
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, username, password string) (*Account, error) {
	var account Account
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", credentials{username, password}, &account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*Account, error) {
	var account Account
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", credentials{username, password}, &account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Introspect asks the server who the bearer token belongs to.
func (c *Client) Introspect(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.do(ctx, http.MethodGet, "/api/protected", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var data struct {
		Rooms []Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms", nil, &data); err != nil {
		return nil, err
	}
	return data.Rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, name, description string) (*Room, error) {
	body := struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}{name, description}

	// servers answer with the room itself or wrap it as {"room": {...}}
	var data struct {
		Room
		Inner *Room `json:"room"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms", body, &data); err != nil {
		return nil, err
	}
	if data.Inner != nil {
		return data.Inner, nil
	}
	return &data.Room, nil
}

// JoinRoom records membership over REST. It does not affect the real-time session.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	body := struct {
		RoomID string `json:"room_id"`
	}{roomID}
	return c.do(ctx, http.MethodPost, "/api/v1/rooms/join", body, nil)
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/rooms/"+url.PathEscape(roomID), nil, nil)
}

// Messages fetches the recent history of a room.
func (c *Client) Messages(ctx context.Context, roomID string) ([]Message, error) {
	var data struct {
		Messages []Message `json:"messages"`
	}
	path := "/api/v1/messages?" + url.Values{"room_id": {roomID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Messages, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &Error{Status: res.StatusCode, Code: env.Code, Message: env.Message}
		if apiErr.Message == "" {
			apiErr.Message = env.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return apiErr
	}

	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
