// Package record defines the property value model for stored objects and
// its canonical JSON serialization.
//
// Object properties are stored as canonical JSON TEXT so that two writes of
// the same logical value produce byte-identical rows. Canonicalization
// follows RFC 8785: object keys sorted by UTF-16 code units, no HTML
// escaping, NFC-normalized strings. Version comparison in the change
// pipeline relies on this determinism.
package record
