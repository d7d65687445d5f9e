// Package client speaks the relay protocol from the client side: the role
// handshake, controller route requests, and delivered envelopes.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LocoMH/wwtbam-server/domain"
)

const writeWait = 10 * time.Second

// Reply is any frame the relay sends: a delivered envelope or an error.
type Reply struct {
	Type    string          `json:"type,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (r Reply) IsError() bool { return r.Error != "" }

type Client struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Dial connects to url and sends the handshake for role. The relay answers
// only on failure, so a rejected handshake shows up as an error Reply.
func Dial(ctx context.Context, url, role, token string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{ws: conn}
	if err := c.Handshake(role, token); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Handshake authenticates, or reassigns an already authenticated connection.
func (c *Client) Handshake(role, token string) error {
	if err := c.writeJSON(domain.HandshakeRequest{Role: role, Token: token}); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	return nil
}

// Send asks the relay to deliver message to roles, or to every role when
// roles is empty. Only controllers may send.
func (c *Client) Send(roles []string, message any) error {
	if err := c.writeJSON(domain.RouteRequest{Roles: roles, Message: message}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendRaw writes data as a single text frame without encoding it.
func (c *Client) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Receive blocks until the next frame arrives or the deadline passes. A zero
// deadline waits indefinitely.
func (c *Client) Receive(deadline time.Time) (Reply, error) {
	c.ws.SetReadDeadline(deadline)

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Reply{}, err
	}
	var r Reply
	if err := json.Unmarshal(data, &r); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return r, nil
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.ws.Close()
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}
