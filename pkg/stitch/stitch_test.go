package stitch

import (
	"math"
	"testing"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, size float64) []geom.Point {
	return []geom.Point{
		{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}, {X: x, Y: y},
	}
}

// sewn returns the stitches that are actually sewn: every pair of
// consecutive stitches where the second is not a jump.
func sewn(sts []Stitch) [][2]geom.Point {
	var out [][2]geom.Point
	for i := 1; i < len(sts); i++ {
		if !sts[i].Jump {
			out = append(out, [2]geom.Point{sts[i-1].Pos, sts[i].Pos})
		}
	}
	return out
}

func TestRunning(t *testing.T) {
	tests := []struct {
		name string
		pts  []geom.Point
		opt  RunOptions
		want []float64 // x positions on the X axis
	}{
		{
			name: "straight line keeps both ends",
			pts:  []geom.Point{{}, {X: 10}},
			opt:  RunOptions{Length: 3},
			want: []float64{0, 3, 6, 9, 10},
		},
		{
			name: "remainder carries across segments",
			pts:  []geom.Point{{}, {X: 5}, {X: 10}},
			opt:  RunOptions{Length: 3},
			want: []float64{0, 3, 6, 9, 10},
		},
		{
			name: "short tail merged by min segment",
			pts:  []geom.Point{{}, {X: 6.2}},
			opt:  RunOptions{Length: 3, MinSegment: 0.5},
			want: []float64{0, 3, 6.2},
		},
		{
			name: "long stitches split",
			pts:  []geom.Point{{}, {X: 8}},
			opt:  RunOptions{Length: 8, MaxStitch: 3},
			want: []float64{0, 8.0 / 3, 16.0 / 3, 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Running(tt.pts, tt.opt)
			require.Len(t, got, len(tt.want))
			for i, x := range tt.want {
				assert.InDelta(t, x, got[i].Pos.X, 1e-9, "stitch %d", i)
				assert.False(t, got[i].Jump)
			}
		})
	}
}

func TestRunningDegenerateInput(t *testing.T) {
	assert.Empty(t, Running(nil, RunOptions{}))
	assert.Empty(t, Running([]geom.Point{{X: 1, Y: 1}}, RunOptions{}))
	assert.Empty(t, Running([]geom.Point{{X: 1, Y: 1}, {X: 1, Y: 1}}, RunOptions{}))
}

func TestRunningClosedStaysClosed(t *testing.T) {
	got := Running(square(0, 0, 10), RunOptions{Length: 2.5})
	require.NotEmpty(t, got)
	assert.Equal(t, got[0].Pos, got[len(got)-1].Pos)
}

func TestRunningBean(t *testing.T) {
	plainRun := Running([]geom.Point{{}, {X: 6}}, RunOptions{Length: 3})
	beanRun := Running([]geom.Point{{}, {X: 6}}, RunOptions{Length: 3, Bean: true})
	require.Len(t, plainRun, 3)
	require.Len(t, beanRun, 1+3*2)
	assert.Equal(t, []float64{0, 3, 0, 3, 6, 3, 6}, xs(beanRun))
}

func xs(sts []Stitch) []float64 {
	out := make([]float64, len(sts))
	for i, s := range sts {
		out[i] = s.Pos.X
	}
	return out
}

func parallelRails() ([]geom.Point, []geom.Point) {
	return []geom.Point{{}, {X: 20}}, []geom.Point{{Y: 10}, {X: 20, Y: 10}}
}

func TestSatinAlternatesRails(t *testing.T) {
	r1, r2 := parallelRails()
	got := Satin(r1, r2, SatinOptions{Density: 0.5})
	require.Len(t, got, 80)
	for i, s := range got {
		assert.False(t, s.Jump)
		onRail := s.Pos.Y == 0 || s.Pos.Y == 10
		assert.True(t, onRail, "stitch %d at %v", i, s.Pos)
	}
	assert.Equal(t, 0.0, got[0].Pos.Y)
	assert.Equal(t, 10.0, got[1].Pos.Y)
	assert.Equal(t, 10.0, got[2].Pos.Y)
	assert.Equal(t, 0.0, got[3].Pos.Y)
}

func TestSatinCompensation(t *testing.T) {
	r1, r2 := parallelRails()
	tests := []struct {
		name   string
		comp   Compensation
		lo, hi float64
	}{
		{"off", Compensation{Mode: CompensationOff, PullCompensation: 1}, 0, 10},
		{"auto widens", Compensation{Mode: CompensationAuto, PullCompensation: 0.5}, -0.5, 10.5},
		{"auto narrows", Compensation{Mode: CompensationAuto, PullCompensation: -1}, 1, 9},
		{"directional uses Y along a vertical pair", Compensation{Mode: CompensationDirectional, XMm: 2, YMm: 0.25}, -0.25, 10.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Satin(r1, r2, SatinOptions{Density: 0.5, Compensation: tt.comp})
			require.NotEmpty(t, got)
			for _, s := range got {
				ok := math.Abs(s.Pos.Y-tt.lo) < 1e-9 || math.Abs(s.Pos.Y-tt.hi) < 1e-9
				assert.True(t, ok, "y=%f", s.Pos.Y)
			}
		})
	}
}

func TestSatinUnderlayModes(t *testing.T) {
	r1, r2 := parallelRails()
	tests := []struct {
		mode  UnderlayMode
		trims int
	}{
		{UnderlayCenterWalk, 1},
		{UnderlayEdgeWalk, 2},
		{UnderlayZigzag, 1},
		{UnderlayCenterEdge, 3},
		{UnderlayCenterZigzag, 2},
		{UnderlayEdgeZigzag, 3},
		{UnderlayFull, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got := Satin(r1, r2, SatinOptions{
				Density:      0.5,
				Underlay:     Underlay{Mode: tt.mode, SpacingMm: 2, Enabled: true},
				StitchLength: 2.5,
			})
			trims, jumps := 0, 0
			for _, s := range got {
				if s.Trim {
					trims++
				}
				if s.Jump {
					jumps++
				}
			}
			assert.Equal(t, tt.trims, trims)
			assert.Equal(t, 1, jumps, "one jump from underlay to the top stitching")
			assert.Greater(t, len(got), 80)
		})
	}
}

func TestSatinEdgeWalkStaysInside(t *testing.T) {
	r1, r2 := parallelRails()
	got := Satin(r1, r2, SatinOptions{
		Density:  0.5,
		Underlay: Underlay{Mode: UnderlayEdgeWalk, Enabled: true},
	})
	for _, s := range got {
		if s.Jump {
			break
		}
		assert.True(t, s.Pos.Y > 1.4 && s.Pos.Y < 8.6, "edge walk at y=%f", s.Pos.Y)
	}
}

func TestSatinTightCurveHasNoDegenerateStitches(t *testing.T) {
	// The inner rail is a single point, as at the apex of a sharp turn.
	inner := []geom.Point{{X: 5, Y: 5}, {X: 5, Y: 5}}
	var outer []geom.Point
	for i := 0; i <= 20; i++ {
		a := math.Pi * float64(i) / 20
		outer = append(outer, geom.Pt(5+4*math.Cos(a), 5+4*math.Sin(a)))
	}
	got := Satin(inner, outer, SatinOptions{Density: 0.4})
	require.NotEmpty(t, got)
	for _, st := range sewn(got) {
		assert.GreaterOrEqual(t, st[0].Dist(st[1]), MinStitch-1e-9)
	}
}

func TestSatinRails(t *testing.T) {
	r1, r2 := SatinRails([]geom.Point{{}, {X: 10}}, 0.2)
	require.Len(t, r1, 2)
	assert.InDelta(t, MinSatinWidth, r1[0].Dist(r2[0]), 1e-9, "width raised to the minimum")

	r1, r2 = SatinRails(square(0, 0, 10), 2)
	assert.Len(t, r1, 4, "closing point dropped")
	assert.Len(t, r2, 4)
	assert.Nil(t, first(SatinRails([]geom.Point{{}}, 2)))
}

func first(a, _ []geom.Point) []geom.Point { return a }

func fillOpts() FillOptions {
	return FillOptions{Density: 0.5, StitchLength: 3}
}

func TestTatamiRectangleCoverage(t *testing.T) {
	got := Tatami([][]geom.Point{square(0, 0, 10)}, fillOpts())
	require.NotEmpty(t, got)
	assert.False(t, got[0].Jump)
	rows := map[float64]bool{}
	for _, s := range got {
		assert.True(t, s.Pos.X >= -1e-9 && s.Pos.X <= 10+1e-9, "x=%f", s.Pos.X)
		assert.True(t, s.Pos.Y >= -1e-9 && s.Pos.Y <= 10+1e-9, "y=%f", s.Pos.Y)
		rows[math.Round(s.Pos.Y*100)/100] = true
	}
	assert.Len(t, rows, 20, "rows every 0.5mm from 0 to 9.5")
}

func TestTatamiExcludesHoles(t *testing.T) {
	rings := [][]geom.Point{square(0, 0, 20), square(8, 8, 4)}
	got := Tatami(rings, fillOpts())
	require.NotEmpty(t, got)
	inHole := func(p geom.Point) bool {
		return p.X > 8.01 && p.X < 11.99 && p.Y > 8.01 && p.Y < 11.99
	}
	for _, st := range sewn(got) {
		assert.False(t, inHole(st[0]) || inHole(st[1]) || inHole(st[0].Lerp(st[1], 0.5)),
			"stitch %v-%v crosses the hole", st[0], st[1])
	}
}

func TestTatamiStaggersAlternateRows(t *testing.T) {
	got := Tatami([][]geom.Point{square(0, 0, 20)}, fillOpts())
	rowX := func(y float64) map[float64]bool {
		out := map[float64]bool{}
		for _, s := range got {
			if math.Abs(s.Pos.Y-y) < 1e-6 {
				out[math.Round(s.Pos.X*1000)/1000] = true
			}
		}
		return out
	}
	row0, row1 := rowX(0), rowX(0.5)
	assert.True(t, row0[3])
	assert.False(t, row0[1.5])
	assert.True(t, row1[1.5])
	assert.False(t, row1[3])
}

func TestTatamiReverseStartsFromFarSide(t *testing.T) {
	opt := fillOpts()
	opt.StartMode = FillStartReverse
	got := Tatami([][]geom.Point{square(0, 0, 10)}, opt)
	require.NotEmpty(t, got)
	assert.Greater(t, got[0].Pos.Y, 9.0)
}

func TestTatamiEdgeWalkAndUnderlay(t *testing.T) {
	opt := fillOpts()
	opt.EdgeWalk = true
	opt.Underlay = Underlay{Enabled: true, SpacingMm: 2}
	got := Tatami([][]geom.Point{square(0, 0, 10)}, opt)
	require.NotEmpty(t, got)
	assert.Equal(t, geom.Pt(0, 0), got[0].Pos, "edge walk starts on the outline")
	base := Tatami([][]geom.Point{square(0, 0, 10)}, fillOpts())
	assert.Greater(t, len(got), len(base))
}

func TestContour(t *testing.T) {
	ring := square(0, 0, 10)
	got := Contour([][]geom.Point{ring}, fillOpts())
	require.NotEmpty(t, got)
	assert.Equal(t, geom.Pt(0, 0), got[0].Pos, "outermost loop first")
	for _, s := range got {
		assert.True(t, inRegion(s.Pos, [][]geom.Point{ring}))
	}

	opt := fillOpts()
	opt.StartMode = FillStartInsideOut
	rev := Contour([][]geom.Point{ring}, opt)
	require.NotEmpty(t, rev)
	assert.Less(t, rev[0].Pos.Dist(geom.Pt(5, 5)), 1.0, "innermost loop first")
}

func TestContourSkipsHoles(t *testing.T) {
	rings := [][]geom.Point{square(0, 0, 20), square(6, 6, 8)}
	for _, s := range Contour(rings, fillOpts()) {
		assert.False(t, s.Pos.X > 6.1 && s.Pos.X < 13.9 && s.Pos.Y > 6.1 && s.Pos.Y < 13.9, "%v in hole", s.Pos)
	}
}

func TestSpiral(t *testing.T) {
	ring := square(0, 0, 10)
	got := Spiral([][]geom.Point{ring}, fillOpts())
	require.NotEmpty(t, got)
	assert.Less(t, got[0].Pos.Dist(geom.Pt(5, 5)), 0.5)
	for _, s := range got {
		assert.True(t, inRegion(s.Pos, [][]geom.Point{ring}))
	}
}

func TestMotifPatterns(t *testing.T) {
	ring := square(0, 0, 12)
	for _, pat := range []MotifPattern{MotifDiamond, MotifWave, MotifTriangle} {
		t.Run(string(pat), func(t *testing.T) {
			opt := fillOpts()
			opt.Pattern = pat
			opt.MotifScale = 1
			got := Motif([][]geom.Point{ring}, opt)
			require.NotEmpty(t, got)
			for _, s := range got {
				assert.True(t, inRegion(s.Pos, [][]geom.Point{ring}))
			}
			opt.Phase = 0.5
			shifted := Motif([][]geom.Point{ring}, opt)
			assert.NotEqual(t, got[0].Pos, shifted[0].Pos)
		})
	}
}

func TestFillsIgnoreDegenerateRings(t *testing.T) {
	line := [][]geom.Point{{{}, {X: 10}, {}}}
	assert.Empty(t, Tatami(line, fillOpts()))
	assert.Empty(t, Contour(line, fillOpts()))
	assert.Empty(t, Spiral(line, fillOpts()))
	assert.Empty(t, Motif(line, fillOpts()))
}

func TestLetterOutlinesFollowBaseline(t *testing.T) {
	straight, err := LetterOutlines("HH", LetteringOptions{SizeMm: 10})
	require.NoError(t, err)
	require.NotEmpty(t, straight)
	bb := bboxOf(straight)
	assert.InDelta(t, 10, bb.Height(), 1.0, "cap height matches size")
	assert.Greater(t, bb.Width(), bb.Height())
	assert.LessOrEqual(t, bb.MaxY, 0.5, "glyphs sit on the baseline")

	vertical, err := LetterOutlines("HH", LetteringOptions{
		SizeMm:   10,
		Baseline: []geom.Point{{}, {Y: 100}},
	})
	require.NoError(t, err)
	vb := bboxOf(vertical)
	assert.Greater(t, vb.Height(), vb.Width())
}

func TestLetterOutlinesSpacing(t *testing.T) {
	tight, err := LetterOutlines("II", LetteringOptions{SizeMm: 10})
	require.NoError(t, err)
	loose, err := LetterOutlines("II", LetteringOptions{SizeMm: 10, SpacingMm: 5})
	require.NoError(t, err)
	assert.InDelta(t, bboxOf(tight).Width()+5, bboxOf(loose).Width(), 1e-6)
}

func bboxOf(rings [][]geom.Point) geom.BBox {
	bb := geom.EmptyBBox()
	for _, r := range rings {
		bb = bb.Union(geom.BBoxOf(r))
	}
	return bb
}

func TestLettering(t *testing.T) {
	got, err := Lettering("A", LetteringOptions{SizeMm: 12, Satin: SatinOptions{Density: 0.4}})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, st := range sewn(got) {
		assert.Greater(t, st[0].Dist(st[1]), 1e-6)
	}
	none, err := Lettering(" ", LetteringOptions{SizeMm: 12})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGenerateFallsBackToRunning(t *testing.T) {
	open := []geom.Subpath{{Points: []geom.Point{{}, {X: 10}}}}
	p := DefaultParams()
	p.Type = TypeTatami
	got := Generate(p, open, 1, 2.5)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.Equal(t, 0.0, s.Pos.Y)
	}
}

func TestGenerateDispatch(t *testing.T) {
	closed := []geom.Subpath{{Points: square(0, 0, 10), Closed: true}}
	for _, typ := range Types {
		t.Run(string(typ), func(t *testing.T) {
			p := DefaultParams()
			p.Type = typ
			got := Generate(p, closed, 2, 2.5)
			assert.NotEmpty(t, got)
			assert.Positive(t, EstimateCount(p, closed, 2.5))
		})
	}
}

func TestGenerateStitchLengthOverride(t *testing.T) {
	path := []geom.Subpath{{Points: []geom.Point{{}, {X: 10}}}}
	p := DefaultParams()
	p.StitchLengthMm = 5
	got := Generate(p, path, 1, 2.5)
	assert.Len(t, got, 3)
}

func TestEstimateCountNonFinite(t *testing.T) {
	p := DefaultParams()
	nan := []geom.Subpath{{Points: []geom.Point{geom.Pt(0, 0), geom.Pt(math.NaN(), 0), geom.Pt(1, 1)}, Closed: true}}
	assert.GreaterOrEqual(t, EstimateCount(p, nan, DefaultStitchLength), 0)

	huge := []geom.Subpath{{Points: []geom.Point{geom.Pt(0, 0), geom.Pt(1e300, 0)}}}
	p.Type = TypeRunning
	assert.Equal(t, maxEstimate+2, EstimateCount(p, huge, DefaultStitchLength))
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, DefaultDensity, p.Density)

	typ, err := ParseType("contour")
	require.NoError(t, err)
	assert.True(t, typ.IsFill())
	_, err = ParseType("cross")
	assert.Error(t, err)

	p.Compensation.Mode = "sideways"
	assert.Error(t, p.Validate())
}
