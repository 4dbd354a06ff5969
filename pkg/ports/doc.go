// Package ports defines the persistence and locking interfaces the engine
// depends on. Adapters under pkg/adapters provide Redis and in-memory
// implementations; anything with atomic per-document writes and an ordered
// message sub-collection can serve.
package ports
