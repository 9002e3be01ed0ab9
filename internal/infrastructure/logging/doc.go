// Package logging provides structured logging for AV Bridge Core.
//
// It wraps log/slog with configuration-driven handler selection and default
// service attributes. Core packages depend on a small package-local Logger
// interface rather than this concrete type; this package is wired in at the
// composition root.
package logging
