package security

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sandboxcore/internal/policy"
)

// OperationKind identifies the kind of operation routed through the
// aggregate facade.
type OperationKind string

const (
	OperationPath    OperationKind = "path"
	OperationFile    OperationKind = "file"
	OperationCommand OperationKind = "command"
	OperationNetwork OperationKind = "network"
)

// DenyReason explains why an operation was refused; callers that need
// structured rejection reasons read this instead of a bare bool.
type DenyReason struct {
	Kind    OperationKind
	Message string
}

// Mediator is the aggregate security facade: the single entry point that
// routes to the four sub-mediators. It holds no mutable state beyond the
// per-host rate limiters, so it is safe to share across goroutines.
type Mediator struct {
	policy *policy.Policy

	netLimiters       *hostLimiters
	networkRatePerSec float64
	networkBurst      int
}

// New builds a Mediator over an immutable policy.
func New(p *policy.Policy) *Mediator {
	return &Mediator{
		policy:            p,
		netLimiters:       newHostLimiters(),
		networkRatePerSec: 5,
		networkBurst:      10,
	}
}

// Policy returns the underlying immutable policy.
func (m *Mediator) Policy() *policy.Policy { return m.policy }

// Payload carries the operation-specific arguments for ValidateOperation.
type Payload struct {
	Path string
	FileOp FileOp
	Command string
	Host string
	Port int
}

// ValidateOperation routes kind to the relevant sub-mediator. Any
// internal panic inside a sub-mediator is recovered and counted as deny,
// per the "failure inside a mediator is never allow" rule.
func (m *Mediator) ValidateOperation(kind OperationKind, payload Payload, iso IsolateView) (allowed bool) {
	defer func() {
		if r := recover(); r != nil {
			allowed = false
		}
	}()

	switch kind {
	case OperationPath:
		return m.ValidatePath(payload.Path, iso)
	case OperationFile:
		return m.ValidateFileOperation(payload.FileOp, payload.Path, iso)
	case OperationCommand:
		return m.ValidateCommand(payload.Command, iso)
	case OperationNetwork:
		return m.ValidateNetworkAccess(payload.Host, payload.Port)
	default:
		return false
	}
}

// ValidateAll runs several independent checks concurrently and returns
// the first rejection, if any. Useful when a single caller operation
// (e.g. a toolchain verb) implies several independent mediator calls that
// don't depend on each other's outcome.
func (m *Mediator) ValidateAll(ctx context.Context, checks ...func() bool) error {
	g, _ := errgroup.WithContext(ctx)
	results := make([]bool, len(checks))
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			results[i] = check()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, ok := range results {
		if !ok {
			return fmt.Errorf("security check %d denied", i)
		}
	}
	return nil
}
