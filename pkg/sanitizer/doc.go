// Package sanitizer normalizes user supplied text before validation and
// storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized comes back as an empty string.
//
// Normalization includes:
//   - Phone numbers: E.164, national numbers read as Indian first, then US
//   - Emails: trimmed and lowercased
//   - Free text: whitespace collapsed and trimmed
//   - Categories: collapsed, trimmed and lowercased
package sanitizer
