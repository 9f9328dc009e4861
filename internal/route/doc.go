// Package route computes per-tick shortest-path movement decisions.
//
// NextStep runs a full breadth-first search on every call rather than
// caching paths across ticks; the per-call cost is bounded by maze size
// and the recompute keeps agents correct as their target sets change.
package route
