// Package client is a thin Go client for the pairchat HTTP API. It keeps
// the session cookie in a jar, enforces a request timeout at the HTTP
// boundary, and sequences user-search responses so a slow older reply never
// overwrites a newer one.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrStaleResponse marks a search reply that arrived after a newer query
// already completed. Callers drop it instead of applying it.
var ErrStaleResponse = errors.New("stale response superseded by a newer query")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu         sync.Mutex
	searchSeq  uint64
	searchSeen uint64
}

// New builds a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: defaultTimeout},
	}, nil
}

type User struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	AvatarPath string `json:"avatar_path,omitempty"`
	Online     bool   `json:"online,omitempty"`
}

type Conversation struct {
	ID            uint   `json:"id"`
	OtherUserID   uint   `json:"other_user_id"`
	OtherUsername string `json:"other_username"`
	LastMessage   string `json:"last_message,omitempty"`
	LastActivity  int64  `json:"last_activity"`
	OtherOnline   bool   `json:"other_online"`
}

type Message struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Signup(ctx context.Context, username, password string) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/signup",
		map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// CreateConversation opens (or re-opens) the direct conversation with the
// other user and returns its id.
func (c *Client) CreateConversation(ctx context.Context, otherUserID uint) (uint, string, error) {
	var resp struct {
		ID            uint   `json:"id"`
		OtherUsername string `json:"other_username"`
	}
	err := c.do(ctx, http.MethodPost, "/api/conversations",
		map[string]uint{"otherUserId": otherUserID}, &resp)
	if err != nil {
		return 0, "", err
	}
	return resp.ID, resp.OtherUsername, nil
}

func (c *Client) Messages(ctx context.Context, conversationID uint) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/messages/%d", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID uint, content string) (*Message, error) {
	var resp struct {
		Message Message `json:"message"`
	}
	path := fmt.Sprintf("/api/messages/%d", conversationID)
	err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// Search queries users by username substring. Each call takes a monotonic
// sequence number before the request goes out; if a newer call completes
// first, the older reply is reported as ErrStaleResponse so the latest
// query always wins.
func (c *Client) Search(ctx context.Context, query string) ([]User, error) {
	c.mu.Lock()
	c.searchSeq++
	seq := c.searchSeq
	c.mu.Unlock()

	var resp struct {
		Users []User `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/api/users/search?query="+url.QueryEscape(query), nil, &resp)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.searchSeen {
		return nil, ErrStaleResponse
	}
	c.searchSeen = seq
	return resp.Users, nil
}
