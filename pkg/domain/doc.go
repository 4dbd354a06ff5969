// Package domain contains the core entities of a Moonhollow game: the game
// record itself, its participants, the message log, the typed scheduling
// queues and the night action bookkeeping.
//
// Everything here is plain data. Mutation happens exclusively in the engine
// under the single-writer-per-game discipline; adapters only serialize these
// types. All types round-trip through JSON, since the game record is stored
// as a single versioned document.
package domain
