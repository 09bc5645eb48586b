package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

type responderFake struct {
	mu   sync.Mutex
	data []byte
}

func (f *responderFake) Respond(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	return nil
}

func (f *responderFake) reply() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

type queryServiceFake struct {
	result *domain.QueryResult
	err    error
	query  string
	ctx    context.Context
}

func (f *queryServiceFake) Query(ctx context.Context, text string) (*domain.QueryResult, error) {
	f.query = text
	f.ctx = ctx
	return f.result, f.err
}

// blockingServiceFake holds every query until its context ends or release
// is closed.
type blockingServiceFake struct {
	started chan string
	release chan struct{}
}

func (f *blockingServiceFake) Query(ctx context.Context, text string) (*domain.QueryResult, error) {
	f.started <- text
	select {
	case <-ctx.Done():
		return nil, domain.ContextError("query", ctx.Err())
	case <-f.release:
		return &domain.QueryResult{Query: text, Answer: "done"}, nil
	}
}

type requestObserverFake struct {
	inFlight int
	statuses []string
}

func (f *requestObserverFake) IncInFlight() { f.inFlight++ }
func (f *requestObserverFake) DecInFlight() { f.inFlight-- }
func (f *requestObserverFake) ObserveRequest(status string, _ time.Duration) {
	f.statuses = append(f.statuses, status)
}

func TestRespondReturnsResult(t *testing.T) {
	service := &queryServiceFake{result: &domain.QueryResult{Query: "q", Answer: "a"}}
	out := &responderFake{}
	observer := &requestObserverFake{}

	newWorker(service, observer, 1).respond(context.Background(), out, []byte(`{"request_id":"r-1","query":"q"}`))

	if service.query != "q" {
		t.Fatalf("expected service to get query, got %q", service.query)
	}
	result, err := decodeReply(out.data)
	if err != nil {
		t.Fatalf("decodeReply() error = %v", err)
	}
	if result.Answer != "a" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if observer.inFlight != 0 || len(observer.statuses) != 1 || observer.statuses[0] != "success" {
		t.Fatalf("unexpected observations: %+v", observer)
	}
}

func TestRespondCarriesErrorKind(t *testing.T) {
	formatErr := &domain.DecompositionFormatError{Item: "no brackets here", Reason: "item does not start with '['"}
	service := &queryServiceFake{err: errors.Join(errors.New("decompose query"), formatErr)}
	out := &responderFake{}

	newWorker(service, nil, 1).respond(context.Background(), out, []byte(`{"query":"q"}`))

	var reply queryReply
	if err := json.Unmarshal(out.data, &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if reply.Error == nil || reply.Error.Kind != "decomposition_format" {
		t.Fatalf("unexpected reply error %+v", reply.Error)
	}

	_, err := decodeReply(out.data)
	if !errors.Is(err, domain.ErrDecompositionFormat) {
		t.Fatalf("expected ErrDecompositionFormat after decode, got %v", err)
	}
}

func TestRespondRejectsMalformedRequest(t *testing.T) {
	service := &queryServiceFake{}
	out := &responderFake{}

	newWorker(service, nil, 1).respond(context.Background(), out, []byte(`not json`))

	_, err := decodeReply(out.data)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if service.query != "" {
		t.Fatalf("service must not be called for malformed request")
	}
}

func TestEncodeErrorPrefersCancelled(t *testing.T) {
	err := domain.WrapError(domain.ErrCancelled, "answer sub-questions", domain.WrapError(domain.ErrRetrieval, "retrieve", context.Canceled))
	if got := encodeError(err).Kind; got != "cancelled" {
		t.Fatalf("expected cancelled, got %s", got)
	}
	if got := encodeError(errors.New("boom")).Kind; got != "internal" {
		t.Fatalf("expected internal, got %s", got)
	}
}

func TestWrapRequestErrorClassifiesTransportFailures(t *testing.T) {
	if err := wrapRequestError(context.DeadlineExceeded); !domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrTemporary for an expired deadline, got %v", err)
	}
	if err := wrapRequestError(context.Canceled); !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if err := wrapRequestError(nats.ErrNoResponders); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestRespondForwardsCallerDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	service := &queryServiceFake{result: &domain.QueryResult{Query: "q", Answer: "a"}}
	payload, err := json.Marshal(queryRequest{CallID: "c-1", Query: "q", DeadlineUnixMs: deadline.UnixMilli()})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	newWorker(service, nil, 1).respond(context.Background(), &responderFake{}, payload)

	got, ok := service.ctx.Deadline()
	if !ok {
		t.Fatalf("expected service context to carry the caller deadline")
	}
	if !got.Equal(deadline) {
		t.Fatalf("expected deadline %v, got %v", deadline, got)
	}
	if service.ctx.Err() == nil {
		t.Fatalf("expected request context to be released after the reply")
	}
}

func TestRespondWithoutDeadlineHasNone(t *testing.T) {
	service := &queryServiceFake{result: &domain.QueryResult{Query: "q", Answer: "a"}}
	newWorker(service, nil, 1).respond(context.Background(), &responderFake{}, []byte(`{"query":"q"}`))
	if _, ok := service.ctx.Deadline(); ok {
		t.Fatalf("expected no deadline")
	}
}

func TestNewQueryRequestCarriesDeadlineAndCallID(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	req := newQueryRequest(ctx, "q", func(context.Context) string { return "r-1" })
	if req.DeadlineUnixMs != deadline.UnixMilli() {
		t.Fatalf("expected deadline %d, got %d", deadline.UnixMilli(), req.DeadlineUnixMs)
	}
	if req.CallID == "" || req.RequestID != "r-1" {
		t.Fatalf("unexpected ids: %+v", req)
	}
	if other := newQueryRequest(context.Background(), "q", nil); other.CallID == req.CallID || other.DeadlineUnixMs != 0 {
		t.Fatalf("expected fresh call id and no deadline, got %+v", other)
	}
}

func TestWorkerCancelAbortsInFlightQuery(t *testing.T) {
	service := &blockingServiceFake{started: make(chan string, 1), release: make(chan struct{})}
	w := newWorker(service, nil, 1)
	out := &responderFake{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.respond(context.Background(), out, []byte(`{"call_id":"c-1","query":"q"}`))
	}()
	<-service.started

	if w.cancel("c-unknown") {
		t.Fatalf("unknown call must not be cancelled")
	}
	if !w.cancel("c-1") {
		t.Fatalf("expected in-flight call to be cancelled")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("cancelled query did not return")
	}

	_, err := decodeReply(out.reply())
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if w.cancel("c-1") {
		t.Fatalf("finished call must be unregistered")
	}
}

func TestWorkerDispatchRunsQueriesConcurrently(t *testing.T) {
	service := &blockingServiceFake{started: make(chan string, 3), release: make(chan struct{})}
	w := newWorker(service, nil, 2)
	outs := []*responderFake{{}, {}, {}}

	for i, out := range outs {
		payload := []byte(`{"query":"q` + string(rune('1'+i)) + `"}`)
		if i < 2 {
			w.dispatch(context.Background(), out, payload)
			continue
		}
		// The third call blocks until a slot frees, so run it aside.
		go w.dispatch(context.Background(), out, payload)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-service.started:
		case <-time.After(time.Second):
			t.Fatalf("expected two queries to run at once")
		}
	}
	select {
	case q := <-service.started:
		t.Fatalf("third query %q started beyond the limit", q)
	case <-time.After(50 * time.Millisecond):
	}

	close(service.release)
	select {
	case <-service.started:
	case <-time.After(time.Second):
		t.Fatalf("third query never started")
	}
	w.wait()
	for i, out := range outs {
		result, err := decodeReply(out.reply())
		if err != nil || result.Answer != "done" {
			t.Fatalf("reply %d: result=%+v err=%v", i, result, err)
		}
	}
}

func TestEncodeErrorKeepsEveryKind(t *testing.T) {
	err := domain.WrapError(domain.ErrCompletion, "answer", domain.WrapError(domain.ErrTemporary, "ollama", errors.New("503")))
	encoded := encodeError(err)
	if encoded.Kind != "temporary" {
		t.Fatalf("expected primary kind temporary, got %s", encoded.Kind)
	}

	decoded := decodeError(encoded)
	if !domain.IsKind(decoded, domain.ErrTemporary) || !domain.IsKind(decoded, domain.ErrCompletion) {
		t.Fatalf("expected temporary completion error after decode, got %v (%v)", decoded, encoded.Kinds)
	}
	if domain.IsKind(decoded, domain.ErrRetrieval) {
		t.Fatalf("unexpected retrieval kind: %v", encoded.Kinds)
	}
}

func TestEncodeErrorCarriesDeadline(t *testing.T) {
	decoded := decodeError(encodeError(domain.ContextError("query", context.DeadlineExceeded)))
	if !errors.Is(decoded, context.DeadlineExceeded) || !domain.IsKind(decoded, domain.ErrTemporary) {
		t.Fatalf("expected timeout and temporary after decode, got %v", decoded)
	}
}

func TestDecodeErrorAcceptsPrimaryKindOnly(t *testing.T) {
	decoded := decodeError(&queryError{Kind: "retrieval", Message: "qdrant down"})
	if !domain.IsKind(decoded, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", decoded)
	}
}
