package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

// Client implements ports.QueryService by forwarding queries to the worker
// pool over request/reply. The caller's deadline travels with the request and
// a cancelled caller publishes an abort for its call.
type Client struct {
	conn *Conn
	// requestID extracts a correlation id from the request context.
	requestID func(context.Context) string
}

func NewClient(conn *Conn, requestID func(context.Context) string) *Client {
	return &Client{conn: conn, requestID: requestID}
}

func (c *Client) Query(ctx context.Context, text string) (*domain.QueryResult, error) {
	req := newQueryRequest(ctx, text, c.requestID)
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	var data []byte
	call := func(callCtx context.Context) error {
		msg, err := c.conn.conn.RequestWithContext(callCtx, c.conn.subject, payload)
		if err != nil {
			return fmt.Errorf("nats request: %w", err)
		}
		data = msg.Data
		return nil
	}

	if c.conn.executor != nil {
		err = c.conn.executor.Execute(ctx, "nats.query", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.abort(ctx, req.CallID)
		}
		return nil, wrapRequestError(err)
	}

	return decodeReply(data)
}

func newQueryRequest(ctx context.Context, text string, requestID func(context.Context) string) queryRequest {
	req := queryRequest{CallID: uuid.NewString(), Query: text}
	if requestID != nil {
		req.RequestID = requestID(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok {
		req.DeadlineUnixMs = deadline.UnixMilli()
	}
	return req
}

func (c *Client) abort(ctx context.Context, callID string) {
	if err := c.conn.conn.Publish(cancelSubject(c.conn.subject), []byte(callID)); err != nil {
		slog.WarnContext(ctx, "nats_cancel_publish_failed", "call_id", callID, "error", err)
	}
}

func decodeReply(data []byte) (*domain.QueryResult, error) {
	var reply queryReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode query reply: %w", err)
	}
	if reply.Error != nil {
		return nil, decodeError(reply.Error)
	}
	if reply.Result == nil {
		return nil, fmt.Errorf("decode query reply: empty result")
	}
	return reply.Result, nil
}
