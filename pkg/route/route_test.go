package route

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

var (
	red  = thread.RGB(200, 0, 0)
	blue = thread.RGB(0, 0, 200)
)

func square(c thread.Color, t stitch.Type) scene.ShapeKind {
	k := scene.NewShape(geom.RectGeometry{Width: 10, Height: 10})
	k.Fill = &c
	k.Stroke = &c
	k.Stitch.Type = t
	return k
}

func line(c thread.Color, a, b geom.Point) scene.ShapeKind {
	var p geom.Path
	p.MoveTo(a)
	p.LineTo(b)
	k := scene.NewShape(geom.PathGeometry{Path: p})
	k.Stroke = &c
	return k
}

func add(t *testing.T, s *scene.Scene, k scene.ShapeKind, x, y float64, parent scene.NodeID) scene.NodeID {
	t.Helper()
	id, err := s.CreateNodeWithTransform("shape", k, geom.Translate(x, y), parent)
	require.NoError(t, err)
	return id
}

func quiet() Options {
	o := DefaultOptions()
	o.TieMode = scene.TieOff
	return o
}

func count(d format.Design, t format.StitchType) int {
	n := 0
	for _, s := range d.Stitches {
		if s.Type == t {
			n++
		}
	}
	return n
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name string
		edit func(*Options)
	}{
		{"policy", func(o *Options) { o.Policy = "fastest" }},
		{"sequence", func(o *Options) { o.SequenceMode = "random" }},
		{"entry exit", func(o *Options) { o.EntryExitMode = "middle" }},
		{"tie", func(o *Options) { o.TieMode = "knot" }},
		{"max jump", func(o *Options) { o.MaxJumpMm = 0 }},
		{"trim", func(o *Options) { o.TrimThresholdMm = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.edit(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOptions)
		})
	}
}

func TestResolveInheritsPerField(t *testing.T) {
	global := DefaultOptions()
	assert.Equal(t, Effective{
		AllowReverse:  true,
		EntryExitMode: scene.EntryExitAuto,
		TieMode:       scene.TieShapeStartEnd,
	}, Resolve(scene.RoutingOverrides{}, global))

	tie := scene.TieOff
	o := scene.RoutingOverrides{TieMode: &tie}
	global.AllowReverse = false
	global.EntryExitMode = scene.EntryExitNearestPoint
	got := Resolve(o, global)
	assert.False(t, got.AllowReverse)
	assert.Equal(t, scene.EntryExitNearestPoint, got.EntryExitMode)
	assert.Equal(t, scene.TieOff, got.TieMode)

	// Changing the global later reaches blocks that do not override it.
	s := scene.New()
	a := add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
	b := add(t, s, square(red, stitch.TypeRunning), 20, 0, 0)
	yes := true
	require.True(t, s.SetObjectRoutingOverrides(scene.BlockID(b), scene.RoutingOverrides{AllowReverse: &yes}))

	for _, allow := range []bool{true, false} {
		opts := DefaultOptions()
		opts.AllowReverse = allow
		blocks, _ := New(opts, 0, nil).Build(s)
		require.Len(t, blocks, 2)
		assert.Equal(t, scene.BlockID(a), blocks[0].ID)
		assert.Equal(t, allow, blocks[0].Routing.AllowReverse)
		assert.True(t, blocks[1].Routing.AllowReverse)
	}
}

func TestExportEmptyScene(t *testing.T) {
	d, rep := Export(scene.New(), DefaultOptions(), 0)
	assert.Empty(t, d.Stitches)
	assert.Empty(t, d.Colors)
	assert.Empty(t, rep.Blocks)
}

// Two same-color squares 50 mm apart: the gap is over the trim threshold,
// so the route trims once and crosses in jumps no longer than maxJumpMm.
func TestExportSameColorGap(t *testing.T) {
	s := scene.New()
	add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
	add(t, s, square(red, stitch.TypeRunning), 50, 0, 0)

	opts := quiet()
	d, rep := Export(s, opts, 2.5)
	require.Len(t, rep.Blocks, 2)
	assert.Equal(t, 1, count(d, format.Trim))
	assert.Equal(t, 5, count(d, format.Jump))
	assert.Zero(t, count(d, format.ColorChange))
	assert.Equal(t, []thread.Color{red}, d.Colors)
	assert.Equal(t, format.End, d.Stitches[len(d.Stitches)-1].Type)

	for i := 1; i < len(d.Stitches); i++ {
		if d.Stitches[i].Type == format.Jump {
			a, b := d.Stitches[i-1], d.Stitches[i]
			assert.LessOrEqual(t, math.Hypot(b.X-a.X, b.Y-a.Y), opts.MaxJumpMm+1e-9)
		}
	}
}

func TestExportColorChange(t *testing.T) {
	s := scene.New()
	add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
	add(t, s, square(blue, stitch.TypeRunning), 50, 0, 0)

	d, _ := Export(s, quiet(), 2.5)
	assert.Equal(t, []thread.Color{red, blue}, d.Colors)
	assert.Equal(t, 1, count(d, format.ColorChange))

	cc := -1
	for i, st := range d.Stitches {
		if st.Type == format.ColorChange {
			cc = i
		}
	}
	require.Greater(t, cc, 0)
	assert.Equal(t, format.Trim, d.Stitches[cc-1].Type)
	assert.Equal(t, format.Jump, d.Stitches[cc+1].Type)

	merged := quiet()
	merged.AllowColorMerge = true
	d, _ = Export(s, merged, 2.5)
	assert.Zero(t, count(d, format.ColorChange))
	assert.Equal(t, []thread.Color{red}, d.Colors)
}

func TestExportSkipsNonFiniteShapes(t *testing.T) {
	s := scene.New()
	bad := scene.NewShape(geom.RectGeometry{Width: math.NaN(), Height: 10})
	bad.Fill = &blue
	bad.Stitch.Type = stitch.TypeTatami
	skipped := add(t, s, bad, 0, 0, 0)
	kept := add(t, s, square(red, stitch.TypeTatami), 30, 0, 0)

	d, rep := Export(s, quiet(), 2.5)
	assert.Equal(t, []scene.BlockID{scene.BlockID(skipped)}, rep.Skipped)
	require.Len(t, rep.Blocks, 1)
	assert.Equal(t, scene.BlockID(kept), rep.Blocks[0].ID)
	assert.Equal(t, []thread.Color{red}, d.Colors)
}

func TestExportSkipsHiddenLayers(t *testing.T) {
	s := scene.New()
	off, err := s.CreateNode("off", scene.LayerKind{Visible: false}, 0)
	require.NoError(t, err)
	hidden := add(t, s, square(blue, stitch.TypeRunning), 0, 0, off)
	shown := add(t, s, square(red, stitch.TypeRunning), 30, 0, 0)

	d, rep := Export(s, quiet(), 2.5)
	assert.Equal(t, []scene.BlockID{scene.BlockID(hidden)}, rep.Skipped)
	require.Len(t, rep.Blocks, 1)
	assert.Equal(t, scene.BlockID(shown), rep.Blocks[0].ID)
	assert.Equal(t, []thread.Color{red}, d.Colors)
}

func TestExportIsDeterministic(t *testing.T) {
	s := scene.New()
	for i := range 6 {
		c := red
		if i%2 == 1 {
			c = blue
		}
		add(t, s, square(c, stitch.TypeTatami), float64(i*17), float64(i%3*9), 0)
	}
	for _, mode := range []SequenceMode{SequenceStrict, SequenceOptimizer} {
		opts := DefaultOptions()
		opts.SequenceMode = mode
		d1, r1 := Export(s, opts, 2.5)
		d2, r2 := Export(s, opts, 2.5)
		assert.Empty(t, cmp.Diff(d1, d2), mode)
		assert.Empty(t, cmp.Diff(r1, r2), mode)
	}
}

func TestStrictKeepsTrackOrder(t *testing.T) {
	s := scene.New()
	a := add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
	b := add(t, s, square(red, stitch.TypeRunning), 40, 0, 0)
	c := add(t, s, square(red, stitch.TypeRunning), 20, 0, 0)

	ids := func() []scene.BlockID {
		_, rep := Export(s, quiet(), 2.5)
		out := make([]scene.BlockID, len(rep.Blocks))
		for i, br := range rep.Blocks {
			out[i] = br.ID
		}
		return out
	}
	assert.Equal(t, []scene.BlockID{scene.BlockID(a), scene.BlockID(b), scene.BlockID(c)}, ids())
	require.True(t, s.ReorderStitchBlock(scene.BlockID(c), 1))
	assert.Equal(t, []scene.BlockID{scene.BlockID(a), scene.BlockID(c), scene.BlockID(b)}, ids())
}

func TestStrictReversesWhenCheaper(t *testing.T) {
	s := scene.New()
	add(t, s, line(red, geom.Pt(0, 0), geom.Pt(10, 0)), 0, 0, 0)
	b := add(t, s, line(red, geom.Pt(30, 0), geom.Pt(12, 0)), 0, 0, 0)

	_, rep := Export(s, quiet(), 2.5)
	require.Len(t, rep.Blocks, 2)
	assert.False(t, rep.Blocks[0].Reversed)
	assert.True(t, rep.Blocks[1].Reversed)
	assert.Equal(t, geom.Pt(12, 0), rep.Blocks[1].Entry)

	keep := scene.EntryExitPreserveShapeStart
	require.True(t, s.SetObjectRoutingOverrides(scene.BlockID(b), scene.RoutingOverrides{EntryExitMode: &keep}))
	_, rep = Export(s, quiet(), 2.5)
	assert.False(t, rep.Blocks[1].Reversed)
	assert.Equal(t, geom.Pt(30, 0), rep.Blocks[1].Entry)
}

func TestNearestPointRotatesLoops(t *testing.T) {
	s := scene.New()
	add(t, s, line(red, geom.Pt(0, 0), geom.Pt(30, 0)), 0, 0, 0)
	b := add(t, s, square(red, stitch.TypeRunning), 30, 10, 0)
	near := scene.EntryExitNearestPoint
	require.True(t, s.SetObjectRoutingOverrides(scene.BlockID(b), scene.RoutingOverrides{EntryExitMode: &near}))

	_, rep := Export(s, quiet(), 2.5)
	require.Len(t, rep.Blocks, 2)
	entry := rep.Blocks[1].Entry
	assert.Equal(t, entry, rep.Blocks[1].Exit)
	assert.Less(t, entry.Dist(geom.Pt(30, 0)), 10.0+1e-9)
	assert.Less(t, entry.Dist(geom.Pt(30, 0)), geom.Pt(30, 10).Dist(geom.Pt(30, 0))+1e-9)
}

// routeTravel sums the travel the router charged between placed blocks.
func routeTravel(r *Router, rep Report) float64 {
	sum := 0.0
	for i := 1; i < len(rep.Blocks); i++ {
		sum += r.travel(rep.Blocks[i-1].Exit, rep.Blocks[i].Entry)
	}
	return sum
}

// bruteTravel tries every order and direction of the segments.
func bruteTravel(r *Router, segs [][2]geom.Point) float64 {
	best := math.Inf(1)
	used := make([]bool, len(segs))
	var walk func(depth int, at geom.Point, sum float64)
	walk = func(depth int, at geom.Point, sum float64) {
		if sum >= best {
			return
		}
		if depth == len(segs) {
			best = sum
			return
		}
		for i, sg := range segs {
			if used[i] {
				continue
			}
			used[i] = true
			for _, dir := range [][2]geom.Point{{sg[0], sg[1]}, {sg[1], sg[0]}} {
				cost := 0.0
				if depth > 0 {
					cost = r.travel(at, dir[0])
				}
				walk(depth+1, dir[1], sum+cost)
			}
			used[i] = false
		}
	}
	walk(0, geom.Point{}, 0)
	return best
}

func TestOptimizerMinTravelIsExact(t *testing.T) {
	segs := [][2]geom.Point{
		{geom.Pt(0, 0), geom.Pt(10, 0)},
		{geom.Pt(40, 5), geom.Pt(25, 30)},
		{geom.Pt(12, 22), geom.Pt(3, 40)},
		{geom.Pt(60, 60), geom.Pt(45, 10)},
		{geom.Pt(18, 2), geom.Pt(33, 1)},
		{geom.Pt(70, 20), geom.Pt(52, 44)},
	}
	s := scene.New()
	for _, sg := range segs {
		add(t, s, line(red, sg[0], sg[1]), 0, 0, 0)
	}
	opts := quiet()
	opts.Policy = PolicyMinTravel
	opts.SequenceMode = SequenceOptimizer
	r := New(opts, 2.5, nil)

	_, rep := r.Export(s)
	require.Len(t, rep.Blocks, len(segs))
	assert.InDelta(t, bruteTravel(r, segs), routeTravel(r, rep), 1e-9)
}

func TestOptimizerKeepsColorOrder(t *testing.T) {
	s := scene.New()
	a := add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
	b := add(t, s, square(blue, stitch.TypeRunning), 15, 0, 0)
	c := add(t, s, square(red, stitch.TypeRunning), 30, 0, 0)

	opts := quiet()
	opts.SequenceMode = SequenceOptimizer
	d, rep := Export(s, opts, 2.5)
	assert.Equal(t, []thread.Color{red, blue}, d.Colors)
	assert.Equal(t, 1, count(d, format.ColorChange))
	require.Len(t, rep.Blocks, 3)
	assert.ElementsMatch(t, []scene.BlockID{scene.BlockID(a), scene.BlockID(c)},
		[]scene.BlockID{rep.Blocks[0].ID, rep.Blocks[1].ID})
	assert.Equal(t, scene.BlockID(b), rep.Blocks[2].ID)
}

func TestOptimizerGreedyCoversEveryBlock(t *testing.T) {
	s := scene.New()
	for i := range exactBlocks + 3 {
		add(t, s, square(red, stitch.TypeRunning), float64(i%4)*25, float64(i/4)*25, 0)
	}
	opts := quiet()
	opts.SequenceMode = SequenceOptimizer
	_, rep := Export(s, opts, 2.5)
	seen := make(map[scene.BlockID]bool)
	for _, br := range rep.Blocks {
		assert.False(t, seen[br.ID])
		seen[br.ID] = true
	}
	assert.Len(t, seen, exactBlocks+3)
}

func TestCommandOverrides(t *testing.T) {
	no, yes := false, true

	t.Run("trim after suppressed", func(t *testing.T) {
		s := scene.New()
		a := add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
		add(t, s, square(red, stitch.TypeRunning), 50, 0, 0)
		require.True(t, s.SetStitchBlockCommandOverrides(scene.BlockID(a), scene.CommandOverrides{TrimAfter: &no}))
		d, _ := Export(s, quiet(), 2.5)
		assert.Zero(t, count(d, format.Trim))
		assert.Equal(t, 5, count(d, format.Jump))
	})

	t.Run("trim before forced", func(t *testing.T) {
		s := scene.New()
		add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
		b := add(t, s, square(red, stitch.TypeRunning), 1, 0, 0)
		d, _ := Export(s, quiet(), 2.5)
		assert.Zero(t, count(d, format.Trim))

		require.True(t, s.SetStitchBlockCommandOverrides(scene.BlockID(b), scene.CommandOverrides{TrimBefore: &yes}))
		d, rep := Export(s, quiet(), 2.5)
		assert.Equal(t, 1, count(d, format.Trim))
		assert.True(t, rep.Blocks[1].Trimmed)
	})

	t.Run("color change always trims", func(t *testing.T) {
		s := scene.New()
		a := add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
		add(t, s, square(blue, stitch.TypeRunning), 1, 0, 0)
		require.True(t, s.SetStitchBlockCommandOverrides(scene.BlockID(a), scene.CommandOverrides{TrimAfter: &no}))
		d, _ := Export(s, quiet(), 2.5)
		assert.Equal(t, 1, count(d, format.Trim))
	})

	t.Run("tie in suppressed", func(t *testing.T) {
		s := scene.New()
		a := add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
		require.True(t, s.SetStitchBlockCommandOverrides(scene.BlockID(a), scene.CommandOverrides{TieIn: &no}))
		_, rep := Export(s, DefaultOptions(), 2.5)
		assert.False(t, rep.Blocks[0].TieIn)
		assert.True(t, rep.Blocks[0].TieOut)
	})
}

func TestTies(t *testing.T) {
	s := scene.New()
	add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)

	plain, _ := Export(s, quiet(), 2.5)
	tied, rep := Export(s, DefaultOptions(), 2.5)
	assert.Len(t, tied.Stitches, len(plain.Stitches)+2*tieStitches)
	assert.True(t, rep.Blocks[0].TieIn)
	assert.True(t, rep.Blocks[0].TieOut)

	entry := geom.Pt(tied.Stitches[0].X, tied.Stitches[0].Y)
	for k := 1; k <= tieStitches; k++ {
		p := geom.Pt(tied.Stitches[k].X, tied.Stitches[k].Y)
		want := 0.0
		if k%2 == 1 {
			want = TieLengthMm
		}
		assert.InDelta(t, want, p.Dist(entry), 1e-9)
		assert.Equal(t, format.Normal, tied.Stitches[k].Type)
	}
}

func TestTieColorChangeMode(t *testing.T) {
	s := scene.New()
	add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
	add(t, s, square(red, stitch.TypeRunning), 12, 0, 0)
	add(t, s, square(blue, stitch.TypeRunning), 24, 0, 0)

	opts := DefaultOptions()
	opts.TieMode = scene.TieColorChange
	_, rep := Export(s, opts, 2.5)
	require.Len(t, rep.Blocks, 3)
	assert.True(t, rep.Blocks[0].TieIn)
	assert.False(t, rep.Blocks[0].TieOut)
	assert.False(t, rep.Blocks[1].TieIn)
	assert.True(t, rep.Blocks[1].TieOut)
	assert.True(t, rep.Blocks[2].TieIn)
	assert.True(t, rep.Blocks[2].TieOut)
}

func TestUnderpathRunsInsteadOfJumping(t *testing.T) {
	s := scene.New()
	add(t, s, line(red, geom.Pt(0, 0), geom.Pt(10, 0)), 0, 0, 0)
	add(t, s, line(red, geom.Pt(18, 0), geom.Pt(30, 0)), 0, 0, 0)

	opts := quiet()
	opts.AllowReverse = false
	d, _ := Export(s, opts, 2.5)
	assert.Equal(t, 1, count(d, format.Jump))

	opts.AllowUnderpath = true
	d, _ = Export(s, opts, 2.5)
	assert.Zero(t, count(d, format.Jump))
	assert.Zero(t, count(d, format.Trim))
}

func TestReverseMovesFlags(t *testing.T) {
	in := []stitch.Stitch{
		{Pos: geom.Pt(0, 0)},
		{Pos: geom.Pt(1, 0)},
		{Pos: geom.Pt(5, 0), Jump: true},
		{Pos: geom.Pt(6, 0), Trim: true},
		{Pos: geom.Pt(7, 0)},
	}
	want := []stitch.Stitch{
		{Pos: geom.Pt(7, 0), Trim: true},
		{Pos: geom.Pt(6, 0)},
		{Pos: geom.Pt(5, 0)},
		{Pos: geom.Pt(1, 0), Jump: true},
		{Pos: geom.Pt(0, 0)},
	}
	assert.Empty(t, cmp.Diff(want, reverse(in)))
}

func TestMetrics(t *testing.T) {
	d := format.Design{Stitches: []format.Stitch{
		{X: 0, Y: 0, Type: format.Normal},
		{X: 5, Y: 0, Type: format.Jump},
		{X: 10, Y: 0, Type: format.Jump},
		{X: 10, Y: 0, Type: format.Normal},
		{X: 10, Y: 0, Type: format.Trim},
		{X: 10, Y: 0, Type: format.ColorChange},
		{X: 10, Y: 10, Type: format.Jump},
		{X: 10, Y: 10, Type: format.Normal},
		{X: 10, Y: 10, Type: format.End},
	}}
	m := Metrics(d, PolicyBalanced)
	assert.Equal(t, RouteMetrics{
		StitchCount:      3,
		JumpCount:        3,
		TrimCount:        1,
		ColorChangeCount: 1,
		TravelDistanceMm: 20,
		LongestTravelMm:  10,
		RouteScore:       3*1 + 1*2 + 1*10 + 20*0.2,
	}, m)

	// Every policy rewards removing an event.
	fewer := m
	fewer.JumpCount--
	for _, p := range []Policy{PolicyBalanced, PolicyMinTravel, PolicyMinTrims} {
		assert.Less(t, Score(fewer, p), Score(m, p), p)
	}
}

func TestQualityOfTatami(t *testing.T) {
	s := scene.New()
	k := scene.NewShape(geom.RectGeometry{Width: 20, Height: 20})
	k.Fill = &red
	k.Stitch.Type = stitch.TypeTatami
	k.Stitch.Angle = 0
	k.Stitch.Underlay.Enabled = false
	_, err := s.CreateNode("fill", k, 0)
	require.NoError(t, err)

	q := New(quiet(), 2.5, nil).Quality(s)
	assert.Greater(t, q.MeanStitchLengthMm, 0.0)
	assert.GreaterOrEqual(t, q.P95StitchLengthMm, q.MeanStitchLengthMm)
	assert.Less(t, q.AngleErrorDeg, 1.0)
	assert.Less(t, q.CoverageErrorPct, 15.0)
	assert.Less(t, q.DensityErrorMm, 0.45)
}

func TestTimeline(t *testing.T) {
	d := format.Design{
		Stitches: []format.Stitch{
			{Type: format.Normal},
			{X: 5, Type: format.Jump},
			{X: 5, Type: format.Normal},
			{X: 5, Type: format.Trim},
			{X: 5, Type: format.ColorChange},
			{X: 5, Y: 3, Type: format.Normal},
			{X: 5, Y: 3, Type: format.End},
		},
		Colors: []thread.Color{red, blue},
	}
	m := Machine{StitchesPerMinute: 600, JumpSeconds: 0.5, TrimSeconds: 2, ColorChangeSeconds: 10}
	require.NoError(t, m.Validate())

	frames, sum := Timeline(d, m)
	require.Len(t, frames, 7)
	assert.Equal(t, TimelineSummary{
		Frames: 7, Stitches: 3, Jumps: 1, Trims: 1, ColorChanges: 1, Colors: 2,
		Seconds: sum.Seconds,
	}, sum)
	assert.InDelta(t, 3*0.1+0.5+2+10, sum.Seconds, 1e-9)
	assert.Equal(t, 0, frames[3].ColorIndex)
	assert.Equal(t, 1, frames[5].ColorIndex)
	for i := 1; i < len(frames); i++ {
		assert.GreaterOrEqual(t, frames[i].Seconds, frames[i-1].Seconds)
	}

	assert.Len(t, Window(frames, 5, 10), 2)
	assert.Empty(t, Window(frames, 9, 10))
	assert.Error(t, Machine{}.Validate())
}

func TestScenarioSatinSquare(t *testing.T) {
	s := scene.New()
	layer, err := s.CreateNode("layer", scene.LayerKind{Visible: true}, 0)
	require.NoError(t, err)
	k := square(red, stitch.TypeSatin)
	k.Stitch.Density = 0.4
	_, err = s.CreateNode("rect", k, layer)
	require.NoError(t, err)

	d, _ := Export(s, DefaultOptions(), 2.5)
	require.NotEmpty(t, d.Stitches)
	assert.Equal(t, format.Normal, d.Stitches[0].Type)
	assert.Equal(t, format.End, d.Stitches[len(d.Stitches)-1].Type)
}

func TestScenarioTrimByDistance(t *testing.T) {
	tests := []struct {
		name string
		gap  float64
		trim int
	}{
		{"far", 30, 1},
		{"near", 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scene.New()
			add(t, s, line(red, geom.Pt(0, 0), geom.Pt(10, 0)), 0, 0, 0)
			add(t, s, line(red, geom.Pt(0, 0), geom.Pt(10, 0)), 10+tt.gap, 0, 0)
			opts := quiet()
			opts.TrimThresholdMm = 12
			d, _ := Export(s, opts, 2.5)
			assert.Equal(t, tt.trim, count(d, format.Trim))
			if tt.trim == 0 {
				assert.Equal(t, 1, count(d, format.Jump))
			}
		})
	}
}

func TestBlockTieOverrideOnlyAffectsThatBlock(t *testing.T) {
	s := scene.New()
	a := add(t, s, square(red, stitch.TypeRunning), 0, 0, 0)
	add(t, s, square(red, stitch.TypeRunning), 12, 0, 0)

	_, rep := Export(s, quiet(), 2.5)
	for _, br := range rep.Blocks {
		assert.False(t, br.TieIn)
		assert.False(t, br.TieOut)
	}

	tie := scene.TieShapeStartEnd
	require.True(t, s.SetObjectRoutingOverrides(scene.BlockID(a), scene.RoutingOverrides{TieMode: &tie}))
	_, rep = Export(s, quiet(), 2.5)
	assert.True(t, rep.Blocks[0].TieIn)
	assert.True(t, rep.Blocks[0].TieOut)
	assert.False(t, rep.Blocks[1].TieIn)
	assert.False(t, rep.Blocks[1].TieOut)
}
