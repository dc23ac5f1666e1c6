// Package scan defines the core types and interfaces shared across the
// coverage scanner subsystems: page and viewport configuration, per-run
// report shapes, and the collaborator contracts (renderer, stores,
// publisher) the orchestration layer is wired with.
package scan
