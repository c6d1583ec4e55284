// Package keyer derives deterministic cache fingerprints from call arguments.
//
// It reduces arbitrary argument structures, including nested slices, maps,
// sets, and plain structs, to a single SHA-256 digest that is stable across
// processes, call order, and map iteration order.
package keyer
