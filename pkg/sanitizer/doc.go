// Package sanitizer normalizes guest and room type input before validation and
// storage.
//
// All functions are idempotent and never fail: input that cannot be normalized is
// returned as an empty string (or dropped from a slice) so the validator reports it.
//
// Normalization includes:
//   - Phone numbers: E.164 (+[country][number])
//   - Emails: trimmed and lowercased
//   - Names: whitespace collapsed and trimmed
//   - URLs: https enforced, host lowercased, tracking parameters dropped
//   - Amenities: normalized, deduplicated, empties removed
package sanitizer
