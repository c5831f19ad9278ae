// Package endpoint selects the Kami endpoint used by each scheduler iteration.
package endpoint

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/tensorplex-labs/burner/internal/config"
)

// Rotator maps a cursor to a Kami endpoint URL. It holds no mutable state;
// the caller owns the cursor.
type Rotator struct {
	mode     string
	fixed    string
	names    []string
	template string
	fallback string
}

// NewRotator builds a rotator from the endpoint configuration. fallback is
// the endpoint used when rotation is off.
func NewRotator(cfg config.EndpointEnvConfig, fallback string) *Rotator {
	return &Rotator{
		mode:     cfg.EndpointMode,
		fixed:    cfg.LocalSubtensor,
		names:    append([]string(nil), cfg.LocalSubtensors...),
		template: cfg.EndpointTemplate,
		fallback: fallback,
	}
}

// Mode returns the configured rotation mode.
func (r *Rotator) Mode() string { return r.mode }

// RandomCursor returns a random starting position so a fleet of validators
// spreads over the endpoint list.
func (r *Rotator) RandomCursor() int {
	if len(r.names) == 0 {
		return 0
	}
	return rand.IntN(len(r.names))
}

// Next returns the endpoint for this iteration and the cursor for the next
// call. Only rotate mode advances the cursor.
func (r *Rotator) Next(cursor int) (string, int) {
	switch r.mode {
	case config.EndpointModeFixed:
		return r.URL(r.fixed), cursor
	case config.EndpointModeRotate:
		if len(r.names) == 0 {
			return r.fallback, cursor
		}
		next := (cursor + 1) % len(r.names)
		if next < 0 {
			next += len(r.names)
		}
		return r.URL(r.names[next]), next
	default:
		return r.fallback, cursor
	}
}

// URL expands an endpoint name with the template. Names that are already
// URLs are returned unchanged.
func (r *Rotator) URL(name string) string {
	if strings.Contains(name, "://") {
		return name
	}
	return fmt.Sprintf(r.template, name)
}
