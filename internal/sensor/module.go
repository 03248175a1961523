// Package sensor defines the pluggable defense-module contract and the
// reference WAF and IDS implementations.
package sensor

import (
	"context"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// Module is the contract every pluggable sensor implements. Handle inspects
// a signal and either returns a result or abstains by returning (nil, nil).
// The integrator hands each module its own clone of the signal; modules must
// not retain it beyond the call. A returned error marks the module's
// contribution as failed and is isolated at the call site.
type Module interface {
	Handle(ctx context.Context, sig *signal.Signal) (*signal.Result, error)
}
