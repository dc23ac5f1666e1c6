// Package analysis implements the design-system coverage engine: element
// matching, area coverage, per-component aggregation and cross-viewport
// statistics. Every function in this package is pure; failures are returned
// as values and never abort sibling computations.
package analysis
