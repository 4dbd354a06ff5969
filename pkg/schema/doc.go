// Package schema describes the machine-readable shape expected from a model
// reply and validates raw provider output against it.
//
// A Schema maps field names to Types. The engine renders the schema into
// prompt instructions appended to the final turn, then parses and validates
// the reply. Validation failures surface every problem at once via
// AggregateError so the retry instruction can name all of them.
package schema
