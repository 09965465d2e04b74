// Package oracle supplies definitive outcomes for expired markets. Each data
// source sits behind ResolutionOracle, so settlement never branches on
// provider-specific response shapes.
package oracle

import (
	"context"
	"encoding/json"
	"sync"
)

// Resolution source keys stored on markets
const (
	SourceManual     = "manual"
	SourceHTTPJSON   = "http_json"
	SourcePolymarket = "polymarket"
)

// Outcome is an oracle answer. Known means Answer holds the winning label.
// Final with !Known means the source will never produce an answer and the
// market should close with no result.
type Outcome struct {
	Answer string
	Known  bool
	Final  bool
}

// Answer is a known outcome
func Answer(label string) Outcome {
	return Outcome{Answer: label, Known: true, Final: true}
}

// Pending is an outcome that may become known later
func Pending() Outcome {
	return Outcome{}
}

// NoOutcome is an outcome that will never become known
func NoOutcome() Outcome {
	return Outcome{Final: true}
}

// ResolutionOracle fetches the outcome of one market. meta is the market's
// resolution metadata as stored at creation. An error means the source could
// not be consulted and the caller should retry later.
type ResolutionOracle interface {
	Resolve(ctx context.Context, meta json.RawMessage) (Outcome, error)
}

// MetaValidator is implemented by oracles that can reject resolution
// metadata when a market is created, before it could ever reach a sweep.
// answerA and answerB are the market's answer labels.
type MetaValidator interface {
	ValidateMeta(meta json.RawMessage, answerA, answerB string) error
}

// Func adapts a function to ResolutionOracle
type Func func(ctx context.Context, meta json.RawMessage) (Outcome, error)

func (f Func) Resolve(ctx context.Context, meta json.RawMessage) (Outcome, error) {
	return f(ctx, meta)
}

// Registry maps resolution sources to oracles
type Registry struct {
	mu      sync.RWMutex
	oracles map[string]ResolutionOracle
}

// NewRegistry returns a registry with the manual oracle installed
func NewRegistry() *Registry {
	r := &Registry{oracles: make(map[string]ResolutionOracle)}
	r.Register(SourceManual, Manual{})
	return r
}

// Register installs o for source, replacing any previous oracle
func (r *Registry) Register(source string, o ResolutionOracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracles[source] = o
}

// Lookup returns the oracle for source
func (r *Registry) Lookup(source string) (ResolutionOracle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[source]
	return o, ok
}

// Manual never knows the outcome. Markets using it close only through the
// admin endpoint.
type Manual struct{}

func (Manual) Resolve(context.Context, json.RawMessage) (Outcome, error) {
	return Pending(), nil
}
