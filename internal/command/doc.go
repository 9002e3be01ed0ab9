// Package command models device command schemas and resolves raw parameter
// maps against them.
//
// A Definition declares a command's action, variant (standard or IR) and an
// ordered parameter schema. Resolve() validates a caller-supplied parameter
// map against that schema: required parameters must be present, optional
// parameters pick up their defaults, values coerce only within their own
// type family, and numeric values are bounds-checked. The result is a
// normalised ResolvedParams map ready for dispatch.
//
// Resolution is pure: the same definition and input always produce the same
// output, and nothing is mutated.
package command
