package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/authority"
	"github.com/alfredjeanlab/gatepass/internal/events"
	"github.com/alfredjeanlab/gatepass/internal/forward"
	"github.com/alfredjeanlab/gatepass/internal/idgen"
	"github.com/alfredjeanlab/gatepass/internal/model"
	"github.com/alfredjeanlab/gatepass/internal/policy"
)

// InternalError is a transaction that could not be classified, usually
// because the authority lookup failed. It is never a business outcome.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Engine runs the transaction pipeline: incoming audit, lookup,
// classification, outcome audit, event, and forwarding of matches.
type Engine struct {
	authority authority.Looker
	policy    *policy.Policy
	audit     audit.Log
	publisher events.Publisher
	forwarder forward.Forwarder
	logger    *slog.Logger
	now       func() time.Time
	newID     idgen.Func
}

// Option configures an Engine.
type Option func(*Engine)

// WithAudit sets the audit trail. Defaults to an in-memory log.
func WithAudit(l audit.Log) Option {
	return func(e *Engine) { e.audit = l }
}

// WithPublisher sets the event publisher. Defaults to a no-op.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithForwarder sets the downstream forwarder. Defaults to a no-op.
func WithForwarder(f forward.Forwarder) Option {
	return func(e *Engine) { e.forwarder = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides decision time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides decision ID generation.
func WithIDs(f idgen.Func) Option {
	return func(e *Engine) { e.newID = f }
}

// New returns an engine classifying with p and looking permits up through a.
func New(a authority.Looker, p *policy.Policy, opts ...Option) *Engine {
	e := &Engine{
		authority: a,
		policy:    p,
		audit:     audit.NewMemoryLog(),
		publisher: &events.NoopPublisher{},
		forwarder: forward.NoopForwarder{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     idgen.Decision,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Policy returns the policy the engine classifies with.
func (e *Engine) Policy() *policy.Policy {
	return e.policy
}

// Decide classifies req, calling the authority unless the manual override
// applies. Lookup failures are returned as *InternalError.
func (e *Engine) Decide(ctx context.Context, req model.GateEntryRequest) (model.Decision, error) {
	var rec *model.AuthorityRecord
	if !ManualOverride(req, e.policy) {
		var err error
		rec, err = e.authority.Lookup(ctx, req.PermitNumber)
		if err != nil {
			return model.Decision{}, &InternalError{Op: "authority lookup", Err: err}
		}
	}

	d := Reconcile(req, rec, e.policy, e.now())
	id, err := e.newID()
	if err != nil {
		return model.Decision{}, &InternalError{Op: "decision id", Err: err}
	}
	d.ID = id
	return d, nil
}

// Process runs the full pipeline for one submitted request body. The body
// is recorded under incoming exactly as received, before it is decoded.
// Audit and event failures are logged and never fail the transaction;
// forwarding never fails by contract. The returned error is a
// *model.ValidationError or an *InternalError.
func (e *Engine) Process(ctx context.Context, body []byte) (model.Decision, error) {
	e.appendBestEffort(ctx, model.CategoryIncoming, rawBody(body))

	var req model.GateEntryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		verr := &model.ValidationError{Errors: []model.FieldError{
			{Field: "body", Message: "malformed JSON: " + err.Error()},
		}}
		e.RecordError(ctx, verr, nil)
		return model.Decision{}, verr
	}

	if err := model.ValidateGateEntry(&req); err != nil {
		e.RecordError(ctx, err, &req)
		return model.Decision{}, err
	}

	d, err := e.Decide(ctx, req)
	if err != nil {
		e.logger.Error("reconcile: transaction failed", "permit", req.PermitNumber, "err", err)
		e.RecordError(ctx, err, &req)
		return model.Decision{}, err
	}

	payload, err := json.Marshal(d)
	if err != nil {
		ierr := &InternalError{Op: "encode decision", Err: err}
		e.RecordError(ctx, ierr, &req)
		return model.Decision{}, ierr
	}

	e.appendBestEffort(ctx, d.Category(), json.RawMessage(payload))

	name := events.NameFor(d.Outcome)
	if err := e.publisher.Publish(ctx, name, json.RawMessage(payload)); err != nil {
		e.logger.Warn("reconcile: publish failed", "event", name, "id", d.ID, "err", err)
	}

	if d.IsMatched() {
		// The caller may hang up once it has its answer; delivery still gets
		// its own bounded attempt.
		e.forwarder.Forward(context.WithoutCancel(ctx), payload)
	}

	e.logger.Info("reconcile: decision",
		"id", d.ID,
		"permit", req.PermitNumber,
		"gate", req.GateType,
		"outcome", d.Outcome,
		"source", d.Source,
		"mismatches", len(d.Mismatches),
	)
	return d, nil
}

// RecordError appends a transaction failure to the error category. req may
// be nil when the request could not be decoded.
func (e *Engine) RecordError(ctx context.Context, err error, req *model.GateEntryRequest) {
	e.appendBestEffort(ctx, model.CategoryError, model.ErrorEntry{Error: err.Error(), Request: req})
}

// rawBody keeps a JSON body byte-for-byte; anything else is stored as a
// string so the audit entry stays valid JSON.
func rawBody(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func (e *Engine) appendBestEffort(ctx context.Context, c model.Category, payload any) {
	if _, err := e.audit.Append(ctx, c, payload); err != nil {
		e.logger.Warn("reconcile: audit append failed", "category", c, "err", err)
	}
}

// IsInternal reports whether err is an unclassifiable transaction failure.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *model.ValidationError
	return errors.As(err, &ve)
}
