package pagebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketBridge talks to the browser-extension relay over one websocket.
// Requests are JSON objects {id, action, origin?, url?}; the relay answers each
// with a JSON object carrying the same id. Calls are serialized on the
// connection; replies with a foreign id are discarded.
type WebSocketBridge struct {
	mu      sync.Mutex
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	timeout time.Duration
	conn    *websocket.Conn
	newID   func() string
}

func NewWebSocketBridge(url string, timeout time.Duration) *WebSocketBridge {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second
	return &WebSocketBridge{
		url:     url,
		dialer:  &dialer,
		timeout: timeout,
		newID:   uuid.NewString,
	}
}

func (b *WebSocketBridge) Destinations(ctx context.Context, origin string) ([]Route, error) {
	r, err := b.call(ctx, request{Action: actionDestinations, Origin: origin})
	if err != nil {
		return nil, err
	}
	if r.Routes == nil {
		return nil, &BridgeError{Message: "reply carries no routes", Cause: ErrCauseMalformedReply}
	}
	return r.Routes, nil
}

func (b *WebSocketBridge) DynamicURL(ctx context.Context) (string, error) {
	r, err := b.call(ctx, request{Action: actionDynamicURL})
	if err != nil {
		return "", err
	}
	if r.DynamicURL == "" {
		return "", &BridgeError{Message: "reply carries no dynamic url", Cause: ErrCauseMalformedReply}
	}
	return r.DynamicURL, nil
}

func (b *WebSocketBridge) Headers(ctx context.Context) (map[string]string, error) {
	r, err := b.call(ctx, request{Action: actionHeaders})
	if err != nil {
		return nil, err
	}
	if r.Headers == nil {
		return nil, &BridgeError{Message: "reply carries no headers", Cause: ErrCauseMalformedReply}
	}
	return r.Headers, nil
}

func (b *WebSocketBridge) Navigate(ctx context.Context, url string) error {
	_, err := b.call(ctx, request{Action: actionNavigate, URL: url})
	return err
}

// Close drops the connection; the next call redials.
func (b *WebSocketBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *WebSocketBridge) closeLocked() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *WebSocketBridge) call(ctx context.Context, req request) (reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		conn, _, err := b.dialer.DialContext(ctx, b.url, b.header)
		if err != nil {
			return reply{}, &BridgeError{
				Message:   fmt.Sprintf("dial %s: %v", b.url, err),
				Retryable: true,
				Cause:     ErrCauseTransport,
			}
		}
		b.conn = conn
	}

	deadline := time.Now().Add(b.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// a cancelled ctx closes the connection, which unblocks the write or read
	conn := b.conn
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-finished:
		}
	}()

	req.ID = b.newID()
	_ = b.conn.SetWriteDeadline(deadline)
	if err := b.conn.WriteJSON(req); err != nil {
		b.closeLocked()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return reply{}, cancelled(req.Action, ctxErr)
		}
		return reply{}, &BridgeError{Message: err.Error(), Retryable: true, Cause: ErrCauseTransport}
	}

	_ = b.conn.SetReadDeadline(deadline)
	for {
		var r reply
		if err := b.conn.ReadJSON(&r); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				return reply{}, &BridgeError{Message: err.Error(), Cause: ErrCauseMalformedReply}
			}
			b.closeLocked()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return reply{}, cancelled(req.Action, ctxErr)
			}
			var timeoutErr interface{ Timeout() bool }
			if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
				return reply{}, &BridgeError{Message: "timed out waiting for " + req.Action, Retryable: true, Cause: ErrCauseTransport}
			}
			return reply{}, &BridgeError{Message: err.Error(), Retryable: true, Cause: ErrCauseTransport}
		}
		if r.ID != req.ID {
			continue
		}
		if r.WrongPage {
			return reply{}, &BridgeError{Message: "active tab is not the provider page", Cause: ErrCauseWrongPage}
		}
		if r.Error != "" {
			return reply{}, &BridgeError{Message: r.Error, Cause: ErrCauseReported}
		}
		return r, nil
	}
}

func cancelled(action string, err error) *BridgeError {
	return &BridgeError{Message: fmt.Sprintf("%s: %v", action, err), Cause: ErrCauseTransport}
}
