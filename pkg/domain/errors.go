package domain

import "errors"

// ErrGameNotFound is returned when a game ID cannot be found in the store.
var ErrGameNotFound = errors.New("game not found")

// ErrVersionConflict is returned when a save observes that the game record
// changed since it was read. The caller must reload and retry the step.
var ErrVersionConflict = errors.New("game version conflict")

// ErrMessageNotFound is returned when a reset anchor message does not exist.
var ErrMessageNotFound = errors.New("message not found")

// ErrHumanTurn is returned when automated advancement reaches the human
// participant; the step parks until the human submits input.
var ErrHumanTurn = errors.New("waiting for human input")

// ErrGameEnded is returned when a step is requested on a terminal game.
var ErrGameEnded = errors.New("game has ended")

// ErrResetLimit is returned when a restricted-tier game has exhausted its
// per-day reset allowance.
var ErrResetLimit = errors.New("daily reset limit reached")
