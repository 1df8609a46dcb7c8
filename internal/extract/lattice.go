package extract

// lattice.go reconstructs table cells from page geometry.
//
// PDF coordinates grow upward, so rows are ordered by descending Y and
// columns by ascending X. A lattice is the set of column edges (from
// vertical rules) and row edges (from horizontal rules); each pair of
// adjacent edges bounds a band, and a glyph belongs to the cell whose bands
// contain its center.

import (
	"math"
	"slices"
	"strings"
)

// Glyph is one positioned run of text on a page.
type Glyph struct {
	X, Y float64 // Baseline origin
	W    float64 // Advance width
	Size float64 // Font size
	S    string
}

func (g Glyph) centerX() float64 { return g.X + g.W/2 }

// centerY lifts the baseline by a third of the font size so glyphs sitting
// on a rule are assigned to the band above it.
func (g Glyph) centerY() float64 { return g.Y + g.Size/3 }

// Rule is a filled or stroked rectangle from the page content.
type Rule struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rule) width() float64  { return r.MaxX - r.MinX }
func (r Rule) height() float64 { return r.MaxY - r.MinY }

// ruleThickness is the widest a rectangle can be and still count as a line.
const ruleThickness = 2.0

// Lattice holds merged cell edges for one page.
type Lattice struct {
	Cols []float64 // Ascending X
	Rows []float64 // Descending Y
}

// DetectLattice derives column and row edges from rules.
// ok is false when the page does not have at least one full cell.
func DetectLattice(rules []Rule, opts Options) (Lattice, bool) {
	opts = opts.withDefaults()

	var xs, ys []float64
	for _, r := range rules {
		w, h := r.width(), r.height()
		switch {
		case w <= ruleThickness && h >= opts.MinRuleLength:
			xs = append(xs, r.MinX+w/2)
		case h <= ruleThickness && w >= opts.MinRuleLength:
			ys = append(ys, r.MinY+h/2)
		case w >= opts.MinRuleLength && h >= opts.MinRuleLength:
			// Cell drawn as a box.
			xs = append(xs, r.MinX, r.MaxX)
			ys = append(ys, r.MinY, r.MaxY)
		}
	}

	cols := mergeEdges(xs, opts.RowTolerance)
	rows := mergeEdges(ys, opts.RowTolerance)
	slices.Reverse(rows)

	if len(cols) < 2 || len(rows) < 2 {
		return Lattice{}, false
	}
	return Lattice{Cols: cols, Rows: rows}, true
}

// mergeEdges sorts positions and collapses runs closer than tol into their mean.
func mergeEdges(pos []float64, tol float64) []float64 {
	if len(pos) == 0 {
		return nil
	}
	sorted := slices.Clone(pos)
	slices.Sort(sorted)

	var out []float64
	sum, n := sorted[0], 1
	for _, p := range sorted[1:] {
		if p-sum/float64(n) <= tol {
			sum += p
			n++
			continue
		}
		out = append(out, sum/float64(n))
		sum, n = p, 1
	}
	return append(out, sum/float64(n))
}

// Cells assigns glyphs to the lattice and returns one row per band, top to
// bottom, each with one cell per column band. Bands that received no glyph
// at all are omitted; glyphs outside the lattice are ignored.
func (l Lattice) Cells(glyphs []Glyph) [][]string {
	nrows, ncols := len(l.Rows)-1, len(l.Cols)-1
	if nrows < 1 || ncols < 1 {
		return nil
	}

	grid := make([][][]Glyph, nrows)
	for i := range grid {
		grid[i] = make([][]Glyph, ncols)
	}

	for _, g := range glyphs {
		r := bandDesc(l.Rows, g.centerY())
		c := bandAsc(l.Cols, g.centerX())
		if r < 0 || c < 0 {
			continue
		}
		grid[r][c] = append(grid[r][c], g)
	}

	var out [][]string
	for _, row := range grid {
		cells := make([]string, ncols)
		filled := false
		for c, gs := range row {
			if len(gs) > 0 {
				cells[c] = cellText(gs)
				filled = true
			}
		}
		if filled {
			out = append(out, cells)
		}
	}
	return out
}

// bandAsc returns i such that edges[i] <= v < edges[i+1], or -1.
func bandAsc(edges []float64, v float64) int {
	for i := 0; i+1 < len(edges); i++ {
		if v >= edges[i] && v < edges[i+1] {
			return i
		}
	}
	return -1
}

// bandDesc is bandAsc for descending edges.
func bandDesc(edges []float64, v float64) int {
	for i := 0; i+1 < len(edges); i++ {
		if v <= edges[i] && v > edges[i+1] {
			return i
		}
	}
	return -1
}

// cellText joins the glyphs of one cell. Lines are read top to bottom and
// joined with a space; within a line glyphs are ordered left to right.
func cellText(glyphs []Glyph) string {
	lines := groupLines(glyphs, lineTolerance(glyphs))
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, joinLine(line))
	}
	return strings.Join(parts, " ")
}

// lineTolerance is half the largest font size among glyphs, with a floor.
func lineTolerance(glyphs []Glyph) float64 {
	size := 0.0
	for _, g := range glyphs {
		size = math.Max(size, g.Size)
	}
	return math.Max(size/2, 1)
}

// groupLines clusters glyphs by baseline, top line first, each line sorted by X.
func groupLines(glyphs []Glyph, tol float64) [][]Glyph {
	sorted := slices.Clone(glyphs)
	slices.SortStableFunc(sorted, func(a, b Glyph) int {
		switch {
		case a.Y > b.Y:
			return -1
		case a.Y < b.Y:
			return 1
		}
		return 0
	})

	var lines [][]Glyph
	for _, g := range sorted {
		n := len(lines)
		if n > 0 && math.Abs(lines[n-1][0].Y-g.Y) <= tol {
			lines[n-1] = append(lines[n-1], g)
			continue
		}
		lines = append(lines, []Glyph{g})
	}

	for _, line := range lines {
		slices.SortStableFunc(line, func(a, b Glyph) int {
			switch {
			case a.X < b.X:
				return -1
			case a.X > b.X:
				return 1
			}
			return 0
		})
	}
	return lines
}

// wordGap is the fraction of the font size a horizontal gap must exceed to
// be rendered as a space.
const wordGap = 0.25

// joinLine concatenates one line of glyphs, inserting a space at word gaps.
func joinLine(line []Glyph) string {
	var b strings.Builder
	for i, g := range line {
		if i > 0 {
			prev := line[i-1]
			if g.X-(prev.X+prev.W) > wordGap*math.Max(g.Size, prev.Size) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return b.String()
}

// columnGap is the fraction of the font size a gap must exceed to start a
// new cell when a page has no rules.
const columnGap = 1.5

// SplitLines is the fallback for pages without a lattice: glyphs are grouped
// into visual lines by baseline and each line is cut into cells at wide gaps.
func SplitLines(glyphs []Glyph, opts Options) [][]string {
	opts = opts.withDefaults()

	var out [][]string
	for _, line := range groupLines(glyphs, opts.RowTolerance) {
		var cells []string
		start := 0
		for i := 1; i < len(line); i++ {
			prev, g := line[i-1], line[i]
			if g.X-(prev.X+prev.W) > columnGap*math.Max(g.Size, prev.Size) {
				cells = append(cells, joinLine(line[start:i]))
				start = i
			}
		}
		cells = append(cells, joinLine(line[start:]))
		out = append(out, cells)
	}
	return out
}

// PageRows returns a page's table rows, using the lattice when the page has
// one and the gap heuristic otherwise.
func PageRows(glyphs []Glyph, rules []Rule, opts Options) [][]string {
	if lat, ok := DetectLattice(rules, opts); ok {
		return lat.Cells(glyphs)
	}
	return SplitLines(glyphs, opts)
}
