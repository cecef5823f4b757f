// Package conv provides safe integer conversion utilities.
//
// These functions perform bounds checking to prevent integer overflow/underflow
// when converting between signed/unsigned integer types and when reading
// numbers out of generically decoded documents (map[string]any from JSON or
// YAML), whose numeric representation depends on the decoder.
package conv
