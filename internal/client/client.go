// Package client provides a transport-agnostic interface for the gatepass
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/gatepass/internal/forward"
	"github.com/alfredjeanlab/gatepass/internal/model"
)

// GatepassClient is the interface the gatepass CLI commands use to talk to
// a running server.
type GatepassClient interface {
	// SubmitGateEntry runs one transaction. Mismatch and expired outcomes
	// are results, not errors.
	SubmitGateEntry(ctx context.Context, req *model.GateEntryRequest) (*GateEntryResult, error)

	// History returns one audit category in append order. The legacy
	// route name "mismatched" is accepted for the mismatch category.
	History(ctx context.Context, category string) (*HistoryResponse, error)

	// ReplayForward re-sends failed forwarding deliveries.
	ReplayForward(ctx context.Context) (*forward.ReplayResult, error)

	Health(ctx context.Context) (*HealthResponse, error)

	Close() error
}

// GateEntryResult is the server's answer to a gate-entry submission.
type GateEntryResult struct {
	// StatusCode is the HTTP status the server answered with: 200 matched,
	// 409 mismatch, 422 expired.
	StatusCode int `json:"-"`

	Success    bool                   `json:"success"`
	Status     string                 `json:"status,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Source     model.Source           `json:"source,omitempty"`
	Mismatches []model.MismatchDetail `json:"mismatches,omitempty"`
	SOAPData   *model.AuthorityRecord `json:"soapData"`
	Decision   model.Decision         `json:"decision"`
}

// HistoryResponse is the response from History.
type HistoryResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Data    []model.AuditEntry `json:"data"`
}

// HealthResponse is the response from Health.
type HealthResponse struct {
	Status        string `json:"status"`
	PolicyID      string `json:"policyId"`
	PolicyVersion string `json:"policyVersion"`
	Uptime        string `json:"uptime"`
}
