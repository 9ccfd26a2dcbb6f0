package strategy

import (
	"context"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

// Strategy is the contract for per-match trading logic driven by the
// controller tick.
type Strategy interface {
	// Name is the identifier stored on assigned match rows.
	Name() string

	// RequiresGateway reports whether the strategy needs a live exchange
	// session. The controller opens one session per tick if any installed
	// strategy does.
	RequiresGateway() bool

	// AssignIfApplicable claims the match for this strategy, at most once.
	// It never places orders.
	AssignIfApplicable(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord) error

	// OnTick runs the order lifecycle for a match this strategy owns.
	// session is nil when no live session could be established this tick.
	OnTick(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, session ports.Session) error

	// SettlePnL computes the profit/loss for a settled result.
	SettlePnL(rec *domain.MatchRecord, result int) float64
}

// Registry keeps installed strategies in install order, indexed by name.
type Registry struct {
	order  []Strategy
	byName map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Strategy)}
}

// Register installs a strategy. Re-registering a name replaces it.
func (r *Registry) Register(s Strategy) {
	if _, ok := r.byName[s.Name()]; !ok {
		r.order = append(r.order, s)
	}
	r.byName[s.Name()] = s
}

// Get returns the strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns installed strategies in install order.
func (r *Registry) All() []Strategy {
	return r.order
}
