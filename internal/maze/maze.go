// ABOUTME: Perfect-maze generation via randomized DFS backtracking on an odd lattice.
// ABOUTME: Marks exit, checkpoints, and the bottleneck along the primary start-exit path.

package maze

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Cell is the type of a single grid cell. The values double as the wire
// alphabet used when the grid is serialized row by row.
type Cell byte

const (
	Wall       Cell = '#'
	Corridor   Cell = '.'
	Checkpoint Cell = 'C'
	Bottleneck Cell = 'G'
	Exit       Cell = 'S'
)

// maxAttempts bounds regeneration after a degenerate primary path.
const maxAttempts = 8

// directions is the fixed expansion order for every BFS over the grid.
// Keeping it constant makes search order, and therefore tie-breaking,
// deterministic for a given seed.
var directions = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Point is a grid coordinate. It serializes as a two-element [row, col]
// array to keep event payloads compact.
type Point struct {
	Row int
	Col int
}

// MarshalJSON encodes the point as [row, col].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Row, p.Col})
}

// UnmarshalJSON decodes a [row, col] array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var rc [2]int
	if err := json.Unmarshal(data, &rc); err != nil {
		return err
	}
	p.Row, p.Col = rc[0], rc[1]
	return nil
}

// Maze is the immutable generated grid plus its special cells. It is never
// mutated after Generate returns, so concurrent reads need no locking.
type Maze struct {
	grid        [][]Cell
	start       Point
	exit        Point
	bottleneck  Point
	checkpoints []Point
	walkable    []Point
}

// Generate builds a maze of roughly rows x cols cells with the requested
// number of checkpoints. Dimensions are forced odd. The same seed always
// produces the same maze; exit ties at maximal BFS distance are broken by
// dequeue order, which is fixed by the constant direction table.
//
// If the primary path from start to exit is degenerate (<3 cells) the
// maze is regenerated at rows+2 x cols+2, up to a bounded number of
// attempts.
func Generate(rows, cols, checkpoints int, seed int64) (*Maze, error) {
	if checkpoints < 1 {
		checkpoints = 1
	}
	rng := rand.New(rand.NewSource(seed))
	for attempt := 0; attempt < maxAttempts; attempt++ {
		m, ok := generate(rows, cols, checkpoints, rng)
		if ok {
			return m, nil
		}
		rows += 2
		cols += 2
	}
	return nil, fmt.Errorf("maze generation: no usable primary path after %d attempts", maxAttempts)
}

func generate(rows, cols, checkpoints int, rng *rand.Rand) (*Maze, bool) {
	if rows%2 == 0 {
		rows++
	}
	if cols%2 == 0 {
		cols++
	}
	if rows < 5 {
		rows = 5
	}
	if cols < 5 {
		cols = 5
	}

	grid := make([][]Cell, rows)
	for r := range grid {
		grid[r] = make([]Cell, cols)
		for c := range grid[r] {
			grid[r][c] = Wall
		}
	}

	start := Point{1, 1}
	grid[1][1] = Corridor

	// Randomized DFS backtracker over the odd-coordinate cells. Carving both
	// the doorway and the target cell yields a spanning tree: connected, no
	// cycles.
	stack := []Point{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		var choices []Point
		for _, d := range directions {
			n := Point{cur.Row + 2*d[0], cur.Col + 2*d[1]}
			if n.Row >= 1 && n.Row < rows-1 && n.Col >= 1 && n.Col < cols-1 && grid[n.Row][n.Col] == Wall {
				choices = append(choices, n)
			}
		}
		if len(choices) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		next := choices[rng.Intn(len(choices))]
		grid[(cur.Row+next.Row)/2][(cur.Col+next.Col)/2] = Corridor
		grid[next.Row][next.Col] = Corridor
		stack = append(stack, next)
	}

	// BFS from start for distances and predecessors. The exit is the
	// farthest cell; the first dequeued cell at the maximal distance wins.
	dist := map[Point]int{start: 0}
	prev := map[Point]Point{}
	queue := []Point{start}
	exit := start
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if dist[cur] > dist[exit] {
			exit = cur
		}
		for _, d := range directions {
			n := Point{cur.Row + d[0], cur.Col + d[1]}
			if n.Row < 0 || n.Row >= rows || n.Col < 0 || n.Col >= cols {
				continue
			}
			if grid[n.Row][n.Col] != Corridor {
				continue
			}
			if _, seen := dist[n]; seen {
				continue
			}
			dist[n] = dist[cur] + 1
			prev[n] = cur
			queue = append(queue, n)
		}
	}

	// Primary path start -> exit.
	var path []Point
	for cur := exit; ; {
		path = append(path, cur)
		p, ok := prev[cur]
		if !ok {
			break
		}
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	pathLen := len(path)
	if pathLen < 3 {
		return nil, false
	}

	// Checkpoints at rounded fractions of the path, clamped off the
	// endpoints, nudged when an index is already taken.
	used := map[int]bool{}
	cps := make([]Point, 0, checkpoints)
	for k := 1; k <= checkpoints; k++ {
		idx := clamp(int(float64(pathLen)*float64(k)/float64(checkpoints+1)+0.5), 1, pathLen-2)
		for tries := 0; used[idx] && tries < pathLen; tries++ {
			idx = clamp(idx+1, 1, pathLen-2)
			if used[idx] {
				idx = clamp(idx-2, 1, pathLen-2)
			}
		}
		used[idx] = true
		cps = append(cps, path[idx])
	}

	// Bottleneck near the middle of the path, probing alternately outward
	// when the midpoint collides with a checkpoint or endpoint. Bounded:
	// after pathLen probes the last probed cell stands.
	mid := clamp(pathLen/2, 1, pathLen-2)
	for probe := 1; (used[mid] || mid == 0 || mid == pathLen-1) && probe <= pathLen; probe++ {
		sign := 1
		if probe%2 == 1 {
			sign = -1
		}
		mid = clamp(pathLen/2+sign*probe, 1, pathLen-2)
	}
	bottleneck := path[mid]

	for _, p := range cps {
		grid[p.Row][p.Col] = Checkpoint
	}
	grid[bottleneck.Row][bottleneck.Col] = Bottleneck
	grid[exit.Row][exit.Col] = Exit

	m := &Maze{
		grid:        grid,
		start:       start,
		exit:        exit,
		bottleneck:  bottleneck,
		checkpoints: cps,
	}
	m.walkable = collectWalkable(grid)
	return m, true
}

func collectWalkable(grid [][]Cell) []Point {
	var walkable []Point
	for r := range grid {
		for c := range grid[r] {
			if grid[r][c] != Wall {
				walkable = append(walkable, Point{r, c})
			}
		}
	}
	return walkable
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Size returns the grid dimensions.
func (m *Maze) Size() (rows, cols int) {
	return len(m.grid), len(m.grid[0])
}

// Start returns the fixed start cell.
func (m *Maze) Start() Point { return m.start }

// Exit returns the exit cell.
func (m *Maze) Exit() Point { return m.exit }

// BottleneckCell returns the admission-limited cell.
func (m *Maze) BottleneckCell() Point { return m.bottleneck }

// Checkpoints returns the ordered checkpoint cells.
func (m *Maze) Checkpoints() []Point {
	out := make([]Point, len(m.checkpoints))
	copy(out, m.checkpoints)
	return out
}

// WalkableCells returns every non-wall cell.
func (m *Maze) WalkableCells() []Point {
	out := make([]Point, len(m.walkable))
	copy(out, m.walkable)
	return out
}

// At returns the cell type at p. Out-of-bounds points read as Wall.
func (m *Maze) At(p Point) Cell {
	if !m.InBounds(p) {
		return Wall
	}
	return m.grid[p.Row][p.Col]
}

// InBounds reports whether p lies inside the grid.
func (m *Maze) InBounds(p Point) bool {
	return p.Row >= 0 && p.Row < len(m.grid) && p.Col >= 0 && p.Col < len(m.grid[0])
}

// IsWalkable reports whether p is a non-wall cell.
func (m *Maze) IsWalkable(p Point) bool {
	return m.At(p) != Wall
}

// Neighbors appends the walkable orthogonal neighbors of p to dst and
// returns it. Order follows the fixed direction table.
func (m *Maze) Neighbors(dst []Point, p Point) []Point {
	for _, d := range directions {
		n := Point{p.Row + d[0], p.Col + d[1]}
		if m.IsWalkable(n) {
			dst = append(dst, n)
		}
	}
	return dst
}

// Rows renders the grid one string per row using the wire alphabet.
func (m *Maze) Rows() []string {
	rows := make([]string, len(m.grid))
	for r, line := range m.grid {
		b := make([]byte, len(line))
		for c, cell := range line {
			b[c] = byte(cell)
		}
		rows[r] = string(b)
	}
	return rows
}

// mazeJSON is the wire form used to hand the maze to worker subprocesses.
type mazeJSON struct {
	Rows        []string `json:"rows"`
	Start       Point    `json:"start"`
	Exit        Point    `json:"exit"`
	Bottleneck  Point    `json:"bottleneck"`
	Checkpoints []Point  `json:"checkpoints"`
}

// MarshalJSON serializes the maze as row strings plus special cells.
func (m *Maze) MarshalJSON() ([]byte, error) {
	return json.Marshal(mazeJSON{
		Rows:        m.Rows(),
		Start:       m.start,
		Exit:        m.exit,
		Bottleneck:  m.bottleneck,
		Checkpoints: m.checkpoints,
	})
}

// UnmarshalJSON rebuilds a maze from its wire form.
func (m *Maze) UnmarshalJSON(data []byte) error {
	var w mazeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Rows) == 0 {
		return fmt.Errorf("maze: empty grid")
	}
	grid := make([][]Cell, len(w.Rows))
	for r, row := range w.Rows {
		if len(row) != len(w.Rows[0]) {
			return fmt.Errorf("maze: ragged grid at row %d", r)
		}
		grid[r] = make([]Cell, len(row))
		for c := 0; c < len(row); c++ {
			switch cell := Cell(row[c]); cell {
			case Wall, Corridor, Checkpoint, Bottleneck, Exit:
				grid[r][c] = cell
			default:
				return fmt.Errorf("maze: unknown cell %q at %d,%d", row[c], r, c)
			}
		}
	}
	m.grid = grid
	m.start = w.Start
	m.exit = w.Exit
	m.bottleneck = w.Bottleneck
	m.checkpoints = w.Checkpoints
	m.walkable = collectWalkable(grid)
	return nil
}
