// Package validation provides the error kinds shared by crmguard's registries.
//
// Input validation collects every problem before failing, so callers receive one
// aggregate Errors value listing all messages. Errors satisfies
// errors.Is(err, ErrInvalid).
//
// Structural failures such as a missing role identifier or an unknown action keyword
// wrap ErrMalformed instead, letting callers tell a malformed request apart from a
// legitimately denied one.
package validation
