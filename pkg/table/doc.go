// Package table decodes delimited-text archive members into in-memory
// tables.
//
// CAGED releases vary in delimiter and text encoding across years, so the
// Decoder tries an ordered list of (delimiter, encoding) schemes and
// accepts the first that parses — first success wins, not best success.
// Within an accepted scheme, rows that do not match the header's width are
// dropped rather than failing the whole file.
package table
