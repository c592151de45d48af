package deploy

import "sync"

// Gate serializes deployments for the compose project.
//
// The webhook handler acquires the gate before triggering a deployment and
// rejects the request when it is already held, so two compose invocations
// can never interleave. Acquisition is non-blocking.
type Gate struct {
	mu     sync.Mutex
	active bool
}

// NewGate creates a released gate.
func NewGate() *Gate {
	return &Gate{}
}

// TryAcquire attempts to take the gate.
//
// Returns true if the gate was acquired (the deployment can proceed).
// Returns false if another deployment is already in progress.
//
// This method is non-blocking - it returns immediately either way. The
// caller must Release the gate once the deployment completes (success or
// failure). Typically used with defer.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return false
	}
	g.active = true
	return true
}

// Release returns the gate.
//
// It is safe to call this when the gate is not held (no-op).
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active = false
}

// InProgress reports whether a deployment currently holds the gate.
func (g *Gate) InProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.active
}
