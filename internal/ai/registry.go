// SPDX-License-Identifier: AGPL-3.0-or-later
package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Registry holds the registered providers and tracks the active one.
type Registry struct {
	providers map[string]Provider
	order     []string
	active    string
	log       zerolog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		providers: map[string]Provider{},
		log:       log,
	}
}

// Register adds a provider. Registration order is preserved for listings.
func (r *Registry) Register(p Provider) {
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	r.log.Debug().Str("provider", name).Msg("registered ai provider")
}

// Get returns a provider by name, or nil.
func (r *Registry) Get(name string) Provider {
	return r.providers[name]
}

// All returns providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// SetActive marks a registered provider as active.
func (r *Registry) SetActive(name string) error {
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not found", name)
	}
	r.active = name
	return nil
}

// Active returns the active provider. When none was set explicitly, or the
// chosen one has no credentials, the first configured provider is promoted;
// nil when nothing is usable.
func (r *Registry) Active() Provider {
	if r.active != "" && r.providers[r.active].Configured() {
		return r.providers[r.active]
	}
	for _, name := range r.order {
		if r.providers[name].Configured() {
			r.active = name
			r.log.Debug().Str("provider", name).Msg("promoted first configured provider to active")
			return r.providers[name]
		}
	}
	return nil
}

// ActiveName returns the active provider's name, or "".
func (r *Registry) ActiveName() string {
	if p := r.Active(); p != nil {
		return p.Name()
	}
	return ""
}

// Configured returns the names of providers that have credentials.
func (r *Registry) Configured() []string {
	var out []string
	for _, name := range r.order {
		if r.providers[name].Configured() {
			out = append(out, name)
		}
	}
	return out
}

// Working returns the names of providers that are configured and reachable.
func (r *Registry) Working(ctx context.Context) []string {
	var out []string
	for _, name := range r.order {
		p := r.providers[name]
		if p.Configured() && p.TestConnection(ctx) == nil {
			out = append(out, name)
		}
	}
	return out
}

// Recommended picks the best provider: the active one when it works,
// otherwise the first working one, otherwise the first configured one.
// Empty when nothing is configured.
func (r *Registry) Recommended(ctx context.Context) string {
	working := r.Working(ctx)
	if len(working) > 0 {
		active := r.ActiveName()
		for _, name := range working {
			if name == active {
				return name
			}
		}
		return working[0]
	}
	if configured := r.Configured(); len(configured) > 0 {
		return configured[0]
	}
	return ""
}

// Statuses reports the health of every registered provider, in order.
func (r *Registry) Statuses(ctx context.Context) []Status {
	out := make([]Status, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, StatusOf(ctx, r.providers[name]))
	}
	return out
}
