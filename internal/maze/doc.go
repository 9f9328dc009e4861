// Package maze generates the immutable maze the simulation runs on.
//
// # Overview
//
// Generate carves a perfect maze (a spanning tree over the odd-coordinate
// lattice, so exactly one simple path exists between any two corridor
// cells), then marks special cells on the primary path from the fixed
// start at (1,1):
//
//   - Exit: the corridor cell farthest from start by BFS distance
//   - Checkpoints: k cells spaced at fractions of the primary path
//   - Bottleneck: one cell near the middle of the primary path
//
// The returned Maze is frozen after generation and safe for concurrent
// unsynchronized reads. Worker subprocesses receive it as JSON via their
// bootstrap message, so the type round-trips through encoding/json.
package maze
