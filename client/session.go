package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/zlnvch/drawroom/canvas"
)

var ErrSessionStopped = errors.New("session stopped")

type roomMessage struct {
	Type   string `json:"type"`
	RoomId string `json:"roomId"`
}

type call struct {
	fn    func(*canvas.Engine) error
	reply chan error
}

// Session binds one canvas engine to one connection and room. Run is the
// only goroutine that touches the engine: inbound frames and calls made
// through Do are applied there one at a time.
type Session struct {
	conn   *Conn
	engine *canvas.Engine
	roomId string
	calls  chan call
	done   chan struct{}
}

func NewSession(conn *Conn, roomId string) *Session {
	return &Session{
		conn:   conn,
		engine: canvas.NewEngine(roomId, conn),
		roomId: roomId,
		calls:  make(chan call),
		done:   make(chan struct{}),
	}
}

func (s *Session) RoomId() string { return s.roomId }

// Run joins the room and applies inbound frames until ctx is done or the
// connection drops. It leaves the room on the way out when it can. Run must
// be called at most once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	if err := s.conn.Send(roomMessage{Type: "join_room", RoomId: s.roomId}); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	for {
		select {
		case frame := <-s.conn.Incoming():
			if err := s.engine.HandleEnvelope(frame); err != nil {
				log.Printf("Ignoring frame in room %s: %v", s.roomId, err)
			}

		case c := <-s.calls:
			c.reply <- c.fn(s.engine)

		case <-s.conn.Done():
			return ErrClosed

		case <-ctx.Done():
			s.conn.Send(roomMessage{Type: "leave_room", RoomId: s.roomId})
			return nil
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Do runs fn on the Run goroutine and returns its error. It fails with
// ErrSessionStopped once Run has returned.
func (s *Session) Do(ctx context.Context, fn func(*canvas.Engine) error) error {
	c := call{fn: fn, reply: make(chan error, 1)}
	select {
	case s.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.conn.Done():
		return ErrClosed
	case <-s.done:
		return ErrSessionStopped
	}

	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		// Run may have answered right before returning
		select {
		case err := <-c.reply:
			return err
		default:
			return ErrSessionStopped
		}
	}
}

// LoadHistory replays the room's recent chat log into the engine and returns
// how many entries were shapes.
func (s *Session) LoadHistory(ctx context.Context, httpClient *http.Client, serverURL string) (int, error) {
	messages, err := FetchHistory(ctx, httpClient, serverURL, s.roomId)
	if err != nil {
		return 0, err
	}

	applied := 0
	err = s.Do(ctx, func(e *canvas.Engine) error {
		applied = e.Replay(messages)
		return nil
	})
	return applied, err
}

type chatsResponse struct {
	Messages []struct {
		Message string `json:"message"`
	} `json:"messages"`
}

// FetchHistory loads the recent chat log of a room, oldest first.
func FetchHistory(ctx context.Context, httpClient *http.Client, serverURL, roomId string) ([]string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := strings.TrimSuffix(serverURL, "/") + "/chats/" + url.PathEscape(roomId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch history: %s", resp.Status)
	}

	var body chatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	// The server answers most recent first
	messages := make([]string, len(body.Messages))
	for i, m := range body.Messages {
		messages[len(messages)-1-i] = m.Message
	}
	return messages, nil
}
