package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024 * 512
	bufferSize     = 128
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one websocket connection to a drawroom server. Sends are queued
// and written by a single pump; inbound frames arrive on Incoming.
type Conn struct {
	ws       *websocket.Conn
	send     chan []byte
	incoming chan []byte

	done      chan struct{}
	closeOnce sync.Once
	pumps     sync.WaitGroup
}

// WebsocketURL maps an http(s) server address to its websocket endpoint
// with the token in the query string.
func WebsocketURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func Dial(ctx context.Context, serverURL, token string) (*Conn, error) {
	wsURL, err := WebsocketURL(serverURL, token)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}

	c := &Conn{
		ws:       ws,
		send:     make(chan []byte, bufferSize),
		incoming: make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}
	c.pumps.Add(2)
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Send queues v as a JSON text frame without blocking.
func (c *Conn) Send(v any) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- msgBytes:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

func (c *Conn) Incoming() <-chan []byte { return c.incoming }

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close sends a close frame and waits for both pumps to stop.
func (c *Conn) Close() error {
	c.shutdown()
	c.pumps.Wait()
	return nil
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) readPump() {
	defer func() {
		c.shutdown()
		c.ws.Close()
		c.pumps.Done()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, messageBytes, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WS read error: %v", err)
			}
			return
		}

		select {
		case c.incoming <- messageBytes:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.pumps.Done()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WS send error: %v", err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			c.flush()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			// Unblocks the read pump if the server never answers the close
			c.ws.SetReadDeadline(time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still queued, so a leave_room sent right before
// Close reaches the server.
func (c *Conn) flush() {
	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
