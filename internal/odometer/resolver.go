// Package odometer obtains live odometer readings for the two-step trip flow.
//
// A reading is resolved through an ordered chain of sources: the value the
// user typed, then a plain poll of the provider, then a forced refresh
// followed by a poll. The first source that yields a number wins. Provider
// failures never fail a trip operation; they are logged and treated as
// "no reading".
package odometer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pkordes/korjournal/internal/domain"
)

// Provider delivers odometer readings in kilometres. Both methods return
// (nil, nil) when the provider has no numeric value, and an error only for
// transport, auth or configuration problems.
type Provider interface {
	PollCurrent(ctx context.Context, vehicleReg string) (*float64, error)
	ForceRefreshAndPoll(ctx context.Context, vehicleReg string) (*float64, error)
}

// Source names reported with a resolved reading.
const (
	SourceManual = "manual"
	SourcePoll   = "poll"
	SourceForce  = "force"
	SourceNone   = "none"
)

// Reading is the outcome of a resolution. Km is nil when no source had a value.
type Reading struct {
	Km     *float64
	Source string
}

// source is one step of the chain.
type source struct {
	name    string
	timeout time.Duration
	read    func(ctx context.Context) (*float64, error)
}

// Resolver runs the manual → poll → force chain.
type Resolver struct {
	provider     Provider
	pollTimeout  time.Duration
	forceTimeout time.Duration
	log          *slog.Logger
}

// NewResolver builds a Resolver. A nil provider limits the chain to the
// manual value. Non-positive timeouts mean "bounded only by ctx".
func NewResolver(p Provider, pollTimeout, forceTimeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: p, pollTimeout: pollTimeout, forceTimeout: forceTimeout, log: logger}
}

// Resolve returns the first non-nil reading of the chain. It never fails.
func (r *Resolver) Resolve(ctx context.Context, vehicleReg string, manual *float64) Reading {
	for _, src := range r.chain(vehicleReg, manual) {
		km, err := r.try(ctx, src)
		if err == nil && km != nil {
			return Reading{Km: km, Source: src.name}
		}
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, domain.ErrNotConfigured) {
				level = slog.LevelDebug
			}
			r.log.Log(ctx, level, "odometer source failed",
				"source", src.name,
				"vehicle_reg", vehicleReg,
				"error", err,
			)
		}
		// The caller gave up.
		if ctx.Err() != nil {
			break
		}
	}
	return Reading{Source: SourceNone}
}

func (r *Resolver) chain(vehicleReg string, manual *float64) []source {
	chain := []source{{
		name: SourceManual,
		read: func(context.Context) (*float64, error) { return manual, nil },
	}}
	if r.provider == nil {
		return chain
	}
	return append(chain,
		source{
			name:    SourcePoll,
			timeout: r.pollTimeout,
			read: func(ctx context.Context) (*float64, error) {
				return r.provider.PollCurrent(ctx, vehicleReg)
			},
		},
		source{
			name:    SourceForce,
			timeout: r.forceTimeout,
			read: func(ctx context.Context) (*float64, error) {
				return r.provider.ForceRefreshAndPoll(ctx, vehicleReg)
			},
		},
	)
}

func (r *Resolver) try(ctx context.Context, src source) (*float64, error) {
	if src.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.timeout)
		defer cancel()
	}
	return src.read(ctx)
}
