// ABOUTME: BFS next-step routing over walkable maze cells toward a target set.
// ABOUTME: Deterministic tie-breaking via the maze's fixed neighbor expansion order.

package route

import "github.com/raikyr/mazewarden/internal/maze"

// NextStep returns the first step of a shortest path from `from` to the
// nearest cell in targets, searching only walkable cells. If `from` is
// itself a target it is returned unchanged. The second return is false
// when no target is reachable; callers are expected to fall back rather
// than fault.
func NextStep(m *maze.Maze, from maze.Point, targets map[maze.Point]bool) (maze.Point, bool) {
	if len(targets) == 0 {
		return maze.Point{}, false
	}
	if targets[from] {
		return from, true
	}

	prev := map[maze.Point]maze.Point{from: from}
	queue := []maze.Point{from}
	var found maze.Point
	ok := false
	var scratch []maze.Point

search:
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		scratch = m.Neighbors(scratch[:0], cur)
		for _, n := range scratch {
			if _, seen := prev[n]; seen {
				continue
			}
			prev[n] = cur
			if targets[n] {
				found, ok = n, true
				break search
			}
			queue = append(queue, n)
		}
	}
	if !ok {
		return maze.Point{}, false
	}

	// Walk predecessors back to the neighbor of `from`.
	step := found
	for prev[step] != from {
		step = prev[step]
	}
	return step, true
}
