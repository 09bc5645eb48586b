package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

// RequestObserver receives per-request outcomes for worker metrics.
type RequestObserver interface {
	IncInFlight()
	DecInFlight()
	ObserveRequest(status string, duration time.Duration)
}

func cancelSubject(subject string) string {
	return subject + ".cancel"
}

// Serve answers query requests on the connection subject until ctx is done.
// Workers share one queue group so each request is handled once. Every worker
// also listens on the cancel subject, since any of them may hold the call.
func (c *Conn) Serve(ctx context.Context, service ports.QueryService, observer RequestObserver) error {
	w := newWorker(service, observer, c.concurrency)

	cancelSub, err := c.conn.Subscribe(cancelSubject(c.subject), func(msg *nats.Msg) {
		w.cancel(string(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("nats subscribe cancel: %w", err)
	}
	defer func() { _ = cancelSub.Unsubscribe() }()

	sub, err := c.conn.QueueSubscribe(c.subject, workerQueueGroup, func(msg *nats.Msg) {
		w.dispatch(ctx, msg, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("worker_serving", "subject", c.subject, "concurrency", c.concurrency)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	w.wait()
	if err := c.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

type responder interface {
	Respond(data []byte) error
}

// worker runs up to cap(slots) queries at once and keeps a cancel func per
// in-flight call so abort messages can reach the running query.
type worker struct {
	service  ports.QueryService
	observer RequestObserver
	slots    chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func newWorker(service ports.QueryService, observer RequestObserver, concurrency int) *worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &worker{
		service:  service,
		observer: observer,
		slots:    make(chan struct{}, concurrency),
		inflight: make(map[string]context.CancelFunc),
	}
}

// dispatch blocks the subscription callback until a slot is free, then
// answers on its own goroutine. Messages past the limit wait in the
// subscription's pending buffer.
func (w *worker) dispatch(ctx context.Context, out responder, data []byte) {
	if ctx.Err() != nil {
		return
	}
	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.slots }()
		w.respond(ctx, out, data)
	}()
}

func (w *worker) wait() {
	w.wg.Wait()
}

// cancel aborts the in-flight call, reporting whether this worker held it.
func (w *worker) cancel(callID string) bool {
	w.mu.Lock()
	cancel, ok := w.inflight[callID]
	w.mu.Unlock()
	if ok {
		cancel()
		slog.Info("worker_query_aborted", "call_id", callID)
	}
	return ok
}

// requestContext derives the per-call context: the caller's deadline when
// one was sent, and a cancel func registered under the call ID.
func (w *worker) requestContext(ctx context.Context, req queryRequest) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc
	if req.DeadlineUnixMs > 0 {
		ctx, cancel = context.WithDeadline(ctx, time.UnixMilli(req.DeadlineUnixMs))
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	if req.CallID == "" {
		return ctx, cancel
	}

	w.mu.Lock()
	w.inflight[req.CallID] = cancel
	w.mu.Unlock()
	return ctx, func() {
		w.mu.Lock()
		delete(w.inflight, req.CallID)
		w.mu.Unlock()
		cancel()
	}
}

func (w *worker) respond(ctx context.Context, out responder, data []byte) {
	start := time.Now()
	if w.observer != nil {
		w.observer.IncInFlight()
		defer w.observer.DecInFlight()
	}

	var req queryRequest
	var reply queryReply
	if err := json.Unmarshal(data, &req); err != nil {
		reply.Error = encodeError(domain.WrapError(domain.ErrInvalidInput, "decode query request", err))
	} else {
		reqCtx, release := w.requestContext(ctx, req)
		result, err := w.service.Query(reqCtx, req.Query)
		release()
		if err != nil {
			slog.WarnContext(ctx, "worker_query_failed", "request_id", req.RequestID, "call_id", req.CallID, "error", err)
			reply.Error = encodeError(err)
		} else {
			reply.Result = result
		}
	}

	status := "success"
	if reply.Error != nil {
		status = reply.Error.Kind
	}
	if w.observer != nil {
		w.observer.ObserveRequest(status, time.Since(start))
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		slog.ErrorContext(ctx, "worker_reply_encode_failed", "request_id", req.RequestID, "error", err)
		return
	}
	if err := out.Respond(payload); err != nil {
		slog.ErrorContext(ctx, "worker_reply_failed", "request_id", req.RequestID, "error", err)
	}
}
