// Package middleware wraps snapshot stores with cross-cutting persistence
// behavior: encryption at rest and output redaction. Middlewares compose
// around any ports.SnapshotStore, so the same chain works over the file,
// Redis and in-memory stores.
package middleware

import "github.com/aretw0/furrow/pkg/ports"

// Middleware wraps a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore

// Chain applies middlewares so the first listed is the outermost: the store
// the engine talks to first.
func Chain(store ports.SnapshotStore, mws ...Middleware) ports.SnapshotStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
