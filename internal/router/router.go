// Package router maps typed inbound messages to handlers and shields
// the transport from handler failures: every error or panic inside a
// handler becomes a uniform {success:false, error} envelope, and only
// an unrecognized message type is reported as unhandled.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixzlo/bridge/internal/metrics"
	"github.com/pixzlo/bridge/pkg/log"
	"github.com/pkg/errors"
)

// Message is one inbound typed message. Raw carries the full message
// body so each handler can decode its own payload shape.
type Message struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// Response is the uniform reply envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handler processes one message and produces the response data.
type Handler func(ctx context.Context, msg Message) (interface{}, error)

// Decode parses a message body, extracting the type tag and retaining
// the raw payload.
func Decode(body []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return Message{}, errors.Wrap(err, "malformed message")
	}
	if probe.Type == "" {
		return Message{}, errors.New("message type is required")
	}

	return Message{Type: probe.Type, Raw: body}, nil
}

// Router dispatches messages to registered handlers.
type Router struct {
	handlers map[string]Handler
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds a handler to a message type, replacing any previous
// binding.
func (r *Router) Register(msgType string, h Handler) {
	r.handlers[msgType] = h
}

// Types returns the registered message types.
func (r *Router) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch routes msg to its handler. The second return value is
// false when no handler is registered for the type, which the
// transport reports by closing the channel without a response. A
// handler error or panic never escapes: it is converted into a
// failure envelope.
func (r *Router) Dispatch(ctx context.Context, msg Message) (Response, bool) {
	h, ok := r.handlers[msg.Type]
	if !ok {
		log.Warn("no handler for message type", "type", msg.Type)
		metrics.MessagesTotal.WithLabelValues(msg.Type, "unhandled").Inc()
		return Response{}, false
	}

	start := time.Now()
	resp := r.invoke(ctx, msg, h)
	metrics.MessageDurationSeconds.WithLabelValues(msg.Type).Observe(time.Since(start).Seconds())

	status := "success"
	if !resp.Success {
		status = "error"
	}
	metrics.MessagesTotal.WithLabelValues(msg.Type, status).Inc()

	return resp, true
}

func (r *Router) invoke(ctx context.Context, msg Message, h Handler) (resp Response) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("handler panic", "type", msg.Type, "panic", p)
			resp = Response{Success: false, Error: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	data, err := h(ctx, msg)
	if err != nil {
		log.Debug("handler failed", "type", msg.Type, "error", err)
		return Response{Success: false, Error: err.Error()}
	}

	return Response{Success: true, Data: data}
}

// Typed adapts a handler taking a decoded payload struct. The whole
// message body is unmarshalled into Req, so payload fields live at the
// top level next to type, matching the wire contract.
func Typed[Req any](fn func(ctx context.Context, req Req) (interface{}, error)) Handler {
	return func(ctx context.Context, msg Message) (interface{}, error) {
		var req Req
		if len(msg.Raw) > 0 {
			if err := json.Unmarshal(msg.Raw, &req); err != nil {
				return nil, errors.Wrap(err, "invalid message payload")
			}
		}
		return fn(ctx, req)
	}
}
