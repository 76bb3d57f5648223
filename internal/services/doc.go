// Package services defines the shared error taxonomy consumed by the
// content pipelines and external integrations.
//
// Key responsibilities:
//   - Structured error markers that classify failures (provider, validation,
//     configuration, timeout) for logging and retry decisions.
//   - The Wrap helper that attaches component and operation context while
//     preserving the marker for errors.Is checks.
//   - Context helpers that stamp request identifiers for log correlation.
//
// Components wrap failures with these helpers and re-raise; retry policy is
// always applied by the caller, never inside a component.
package services
