// Package natsrpc serves search over NATS request/reply.
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rentsearch/internal/model"
	"rentsearch/internal/service"

	"github.com/nats-io/nats.go"
)

// Reply error codes
const (
	CodeBadRequest       = "bad_request"
	CodeInvalidQuery     = "invalid_query"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal"
)

// Searcher is the part of the search service the responder needs
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (*model.SearchResponse, error)
}

// Request is the JSON body of a search request message
type Request struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"max_results,omitempty"`
}

// Reply is the JSON body sent back to the requester
type Reply struct {
	Response *model.SearchResponse `json:"response,omitempty"`
	Error    string                `json:"error,omitempty"`
	Code     string                `json:"code,omitempty"`
}

// Responder answers search requests published on a subject
type Responder struct {
	nc      *nats.Conn
	svc     Searcher
	timeout time.Duration
	sub     *nats.Subscription
	logger  *slog.Logger
}

// Connect opens a named NATS connection
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("rental-search"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NewResponder creates a responder; timeout bounds each request
func NewResponder(nc *nats.Conn, svc Searcher, timeout time.Duration) *Responder {
	return &Responder{
		nc:      nc,
		svc:     svc,
		timeout: timeout,
		logger:  slog.Default().With("component", "nats-responder"),
	}
}

// Start subscribes in a queue group so several instances share the load
func (r *Responder) Start(subject, queue string) error {
	sub, err := r.nc.QueueSubscribe(subject, queue, r.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	r.sub = sub
	r.logger.Info("listening for search requests", "subject", subject, "queue", queue)
	return nil
}

// Stop drains the subscription, letting in-flight requests finish
func (r *Responder) Stop() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Drain()
}

func (r *Responder) handle(msg *nats.Msg) {
	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		r.respond(msg, Reply{Error: "invalid request: " + err.Error(), Code: CodeBadRequest})
		return
	}

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	maxResults := -1
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}

	resp, err := r.svc.Search(ctx, req.Query, maxResults)
	if err != nil {
		r.respond(msg, errorReply(err))
		return
	}
	r.respond(msg, Reply{Response: resp})
}

func errorReply(err error) Reply {
	var verr *service.ValidationError
	var rerr *service.RetrievalError
	switch {
	case errors.As(err, &verr):
		return Reply{Error: verr.Error(), Code: CodeInvalidQuery}
	case errors.As(err, &rerr):
		return Reply{Error: rerr.Error(), Code: CodeStoreUnavailable}
	default:
		return Reply{Error: err.Error(), Code: CodeInternal}
	}
}

func (r *Responder) respond(msg *nats.Msg, reply Reply) {
	if msg.Reply == "" {
		r.logger.Warn("dropping search request without reply subject", "subject", msg.Subject)
		return
	}
	body, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("marshal reply failed", "err", err)
		return
	}
	if err := msg.Respond(body); err != nil {
		r.logger.Error("send reply failed", "err", err)
	}
}

// Search is the client side: it publishes req and waits for the reply
func Search(ctx context.Context, nc *nats.Conn, subject string, req Request) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	msg, err := nc.RequestWithContext(ctx, subject, body)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}
