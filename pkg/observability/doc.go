/*
Package observability provides reporting views over a game's consumption.

It aggregates the per-participant token and cost counters the engine
accumulates into per-model and whole-game summaries for billing display and
the usage CLI.
*/
package observability
