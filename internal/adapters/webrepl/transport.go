package webrepl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const (
	handshakeTimeout = 10 * time.Second
	passwordPrompt   = "Password:"
)

// Transport is a byte-stream connection to a board over its WebREPL
// websocket endpoint.
type Transport struct {
	conn *websocket.Conn
	url  string
}

var _ ports.DeviceTransport = (*Transport)(nil)

// Dial connects and, when the board asks, answers the password prompt.
func Dial(ctx context.Context, url string, password string) (*Transport, error) {
	if url == "" {
		return nil, errors.New("webrepl url is empty")
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrTransport, url, err)
	}

	t := &Transport{conn: conn, url: url}

	if password != "" {
		if err := t.authenticate(ctx, password); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return t, nil
}

func (t *Transport) authenticate(ctx context.Context, password string) error {
	greeting, err := t.Receive(ctx)
	if err != nil {
		return fmt.Errorf("read webrepl greeting: %w", err)
	}
	if !strings.Contains(string(greeting), passwordPrompt) {
		// Board is not password protected after all.
		return nil
	}

	if err := t.Send(ctx, []byte(password+"\r")); err != nil {
		return fmt.Errorf("send webrepl password: %w", err)
	}

	banner, err := t.Receive(ctx)
	if err != nil {
		return fmt.Errorf("read webrepl banner: %w", err)
	}
	if strings.Contains(string(banner), "Access denied") {
		return fmt.Errorf("%w: webrepl access denied", domain.ErrTransport)
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(time.Time{})
	}

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrTransport, t.url, err)
	}
	return nil
}

func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}

	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrTransport, t.url, err)
	}
	return data, nil
}

func (t *Transport) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return t.conn.Close()
}
