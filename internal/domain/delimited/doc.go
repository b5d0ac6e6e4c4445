// Package delimited tokenizes single lines of delimited text (CSV, TSV and
// friends).
//
// Quoting follows the usual CSV convention: a double quote opens a quoted span
// in which the delimiter is literal and "" stands for one quote character.
// Whitespace outside quoted spans is trimmed from both ends of every field.
// A line always yields at least one field, and a trailing delimiter yields a
// trailing empty field.
//
// An unterminated quote closes implicitly at end of line. Callers that would
// rather reject such input set Options.Strict.
package delimited
