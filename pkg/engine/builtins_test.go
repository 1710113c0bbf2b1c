package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"simple keyword", `(rect 10 10 :fill "#fff")`, `(rect 10 10 "__kw_fill" "#fff")`},
		{"multiple keywords", `(stitch :type :tatami)`, `(stitch "__kw_type" "__kw_tatami")`},
		{"keyword in string preserved", `"thing with :keyword inside"`, `"thing with :keyword inside"`},
		{"escaped quote in string", `"a \" :b"`, `"a \" :b"`},
		{"backtick string preserved", "`svg-path :x`", "`svg-path :x`"},
		{"assignment operator preserved", `(def x := 10)`, `(def x := 10)`},
		{"kebab-case identifier", `(svg-path "M0 0")`, `(svg_path "M0 0")`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"negative number preserved", `(vec -5 x-1)`, `(vec -5 x-1)`},
		{"comment converted to // style", `;; comment with :keyword`, `// comment with :keyword`},
		{"comment ends at newline", "; c\n(rect 1 1)", "// c\n(rect 1 1)"},
		{"hyphen in keyword preserved", `:stroke-width`, `"__kw_stroke-width"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// eval runs source and fails the test on any error.
func eval(t *testing.T, source string) *Design {
	t.Helper()
	d, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	return d
}

// evalErr runs source and returns the first eval error message.
func evalErr(t *testing.T, source string) string {
	t.Helper()
	d, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if d != nil || len(evalErrs) == 0 {
		t.Fatalf("expected an eval error for %q", source)
	}
	return evalErrs[0].Message
}

func shapeNamed(t *testing.T, s *scene.Scene, name string) (scene.Node, scene.ShapeKind) {
	t.Helper()
	for _, id := range s.DepthFirst() {
		n, _ := s.GetNode(id)
		if n.Name != name {
			continue
		}
		k, ok := n.Kind.(scene.ShapeKind)
		if !ok {
			t.Fatalf("%q is a %s, not a shape", name, n.Kind.KindName())
		}
		return n, k
	}
	t.Fatalf("no node named %q", name)
	return scene.Node{}, scene.ShapeKind{}
}

func TestRectWithStitch(t *testing.T) {
	d := eval(t, `
(def red (color "#ff0000"))
(rect 20 10 :name "patch" :radius 2 :fill red :stroke (color 0 0 255)
      :stroke-width 1.5 :at (vec 5 6) :rotate 90
      :stitch (stitch :type :tatami :density 0.3 :angle 30 :underlay :none
                      :start :reverse :length 3))
`)
	n, k := shapeNamed(t, d.Scene, "patch")
	g, ok := k.Geometry.(geom.RectGeometry)
	if !ok || g.Width != 20 || g.Height != 10 || g.CornerRadius != 2 {
		t.Errorf("geometry = %#v", k.Geometry)
	}
	if k.Fill == nil || *k.Fill != thread.RGB(255, 0, 0) {
		t.Errorf("fill = %v", k.Fill)
	}
	if k.Stroke == nil || *k.Stroke != thread.RGB(0, 0, 255) {
		t.Errorf("stroke = %v", k.Stroke)
	}
	if k.StrokeWidth != 1.5 {
		t.Errorf("stroke width = %v", k.StrokeWidth)
	}
	p := k.Stitch
	if p.Type != stitch.TypeTatami || p.Density != 0.3 || p.Angle != 30 || p.StitchLengthMm != 3 {
		t.Errorf("stitch = %+v", p)
	}
	if p.Underlay.Enabled {
		t.Error("underlay :none should disable underlay")
	}
	if p.FillStartMode != stitch.FillStartReverse {
		t.Errorf("fill start = %q", p.FillStartMode)
	}
	if n.Transform.X != 5 || n.Transform.Y != 6 || math.Abs(n.Transform.Rotation-math.Pi/2) > 1e-12 {
		t.Errorf("transform = %+v", n.Transform)
	}

	blocks := d.Scene.StitchBlocks()
	if len(blocks) != 1 || blocks[0].StitchType != stitch.TypeTatami {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestShapeBuiltins(t *testing.T) {
	d := eval(t, `
(ellipse 5 3 :name "e")
(polygon 6 4 :name "hex" :type :satin)
(path (vec 0 0) (vec 10 0) (vec 10 10) :name "open")
(path (list (vec 0 0) (vec 5 0) (vec 5 5)) :closed true :name "tri")
(svg-path "M0 0 H10 V10 Z" :name "svg" :fill "#00ff00")
(text "Hi" :size 12 :spacing 1)
`)
	if _, k := shapeNamed(t, d.Scene, "e"); k.Geometry != (geom.EllipseGeometry{RX: 5, RY: 3}) {
		t.Errorf("ellipse = %#v", k.Geometry)
	}
	if _, k := shapeNamed(t, d.Scene, "hex"); k.Stitch.Type != stitch.TypeSatin {
		t.Errorf("hex stitch type = %q", k.Stitch.Type)
	}
	_, open := shapeNamed(t, d.Scene, "open")
	if p := open.Geometry.(geom.PathGeometry).Path; p.Closed || len(p.Commands) != 3 {
		t.Errorf("open path = %+v", p)
	}
	_, tri := shapeNamed(t, d.Scene, "tri")
	if p := tri.Geometry.(geom.PathGeometry).Path; !p.Closed || len(p.Commands) != 4 {
		t.Errorf("closed path = %+v", p)
	}
	_, sp := shapeNamed(t, d.Scene, "svg")
	if b := sp.Geometry.ToPath().BBox(); b.MaxX != 10 || b.MaxY != 10 {
		t.Errorf("svg path bbox = %+v", b)
	}
	_, txt := shapeNamed(t, d.Scene, "Hi")
	if g := txt.Geometry.(geom.TextGeometry); g.SizeMm != 12 || g.SpacingMm != 1 {
		t.Errorf("text = %+v", g)
	}
	if txt.Stitch.Type != stitch.TypeLettering {
		t.Errorf("text defaults to lettering, got %q", txt.Stitch.Type)
	}
	if got := len(d.Scene.StitchBlocks()); got != 6 {
		t.Errorf("blocks = %d, want 6", got)
	}
}

func TestGroupsAndLayers(t *testing.T) {
	d := eval(t, `
(def a (rect 5 5 :name "a"))
(def b (rect 5 5 :name "b"))
(layer "top" :locked true
  (group "pair" :at (vec 10 0) a b)
  (ellipse 2 2 :name "dot"))
(layer "hidden" :visible false (rect 1 1 :name "ghost"))
`)
	s := d.Scene
	roots := s.Roots()
	if len(roots) != 2 {
		t.Fatalf("roots = %v", roots)
	}
	top, _ := s.GetNode(roots[0])
	lk, ok := top.Kind.(scene.LayerKind)
	if !ok || !lk.Visible || !lk.Locked || top.Name != "top" {
		t.Errorf("top layer = %+v", top)
	}
	kids := s.Children(roots[0])
	if len(kids) != 2 {
		t.Fatalf("top children = %v", kids)
	}
	pair, _ := s.GetNode(kids[0])
	if pair.Name != "pair" || len(s.Children(kids[0])) != 2 {
		t.Errorf("pair group = %+v", pair)
	}
	a, _ := shapeNamed(t, s, "a")
	if got := s.WorldMatrix(a.ID).Apply(geom.Pt(0, 0)); got != geom.Pt(10, 0) {
		t.Errorf("a world origin = %v", got)
	}
	ghost, _ := shapeNamed(t, s, "ghost")
	if !s.Hidden(ghost.ID) {
		t.Error("ghost should be hidden")
	}
	if s.CanUndo() {
		t.Error("evaluation should leave an empty history")
	}

	msg := evalErr(t, `(group "g" (layer "l"))`)
	if !strings.Contains(msg, "layer cannot be nested") {
		t.Errorf("message = %q", msg)
	}
}

func TestRoutingBuiltin(t *testing.T) {
	d := eval(t, `
(routing :policy :min-travel :max-jump 8 :sequence :optimizer :tie :color-change
         :entry-exit :nearest-point :underpath true :allow-reverse false)
(routing :trim-threshold 5)
`)
	o := d.Routing
	want := route.DefaultOptions()
	want.Policy = route.PolicyMinTravel
	want.MaxJumpMm = 8
	want.SequenceMode = route.SequenceOptimizer
	want.TieMode = scene.TieColorChange
	want.EntryExitMode = scene.EntryExitNearestPoint
	want.AllowUnderpath = true
	want.AllowReverse = false
	want.TrimThresholdMm = 5
	if o != want {
		t.Errorf("routing = %+v\nwant %+v", o, want)
	}

	if d := eval(t, `(routing :sequence :strict)`); d.Routing.SequenceMode != route.SequenceStrict {
		t.Errorf("sequence = %q", d.Routing.SequenceMode)
	}
	if msg := evalErr(t, `(routing :policy :fastest)`); !strings.Contains(msg, "policy") {
		t.Errorf("message = %q", msg)
	}
}

func TestSequenceReordersBlocks(t *testing.T) {
	d := eval(t, `
(def a (rect 5 5 :name "a"))
(def b (rect 5 5 :name "b"))
(def c (rect 5 5 :name "c"))
(def g (group "g" a b))
(sequence c g)
`)
	var names []string
	for _, blk := range d.Scene.StitchBlocks() {
		n, _ := d.Scene.GetNode(blk.SourceNodeID)
		names = append(names, n.Name)
	}
	if strings.Join(names, ",") != "c,a,b" {
		t.Errorf("sequence = %v, want c,a,b", names)
	}
}

func TestOverrideBuiltin(t *testing.T) {
	d := eval(t, `
(def a (rect 5 5 :name "a"))
(override a :allow-reverse false :entry-exit :preserve-shape-start :tie :off
            :trim-before true :tie-out false)
(override a :trim-before nil)
`)
	blk := d.Scene.StitchBlocks()[0]
	ro, co := blk.RoutingOverrides, blk.CommandOverrides
	if ro.AllowReverse == nil || *ro.AllowReverse {
		t.Errorf("allow reverse = %v", ro.AllowReverse)
	}
	if ro.EntryExitMode == nil || *ro.EntryExitMode != scene.EntryExitPreserveShapeStart {
		t.Errorf("entry exit = %v", ro.EntryExitMode)
	}
	if ro.TieMode == nil || *ro.TieMode != scene.TieOff {
		t.Errorf("tie = %v", ro.TieMode)
	}
	if co.TrimBefore != nil {
		t.Errorf("trim before should be cleared, got %v", *co.TrimBefore)
	}
	if co.TieOut == nil || *co.TieOut {
		t.Errorf("tie out = %v", co.TieOut)
	}
	if co.TrimAfter != nil || co.TieIn != nil {
		t.Error("unset overrides should stay nil")
	}

	if msg := evalErr(t, `(override (group "g") :tie :off)`); !strings.Contains(msg, "no stitch block") {
		t.Errorf("message = %q", msg)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"vec arity", `(vec 1)`, "vec: requires exactly 2"},
		{"rect size", `(rect 0 5)`, "rect: width and height must be positive"},
		{"rect type", `(rect "a" 5)`, "width: expected number"},
		{"bad color", `(color "#zz0000")`, "color"},
		{"color range", `(color 300 0 0)`, "out of range"},
		{"bad stitch type", `(stitch :type :cross)`, "unknown stitch type"},
		{"polygon sides", `(polygon 2 5)`, "at least 3 sides"},
		{"path points", `(path (vec 0 0))`, "at least 2 points"},
		{"svg parse", `(svg-path "M 0 0 L x")`, "svg-path"},
		{"text size", `(text "A" :size 0)`, "size must be positive"},
		{"group child", `(group "g" 5)`, "child 1"},
		{"zero scale", `(rect 1 1 :scale 0)`, "scale must not be zero"},
		{"bad entry mode", `(override (rect 1 1) :entry-exit :anywhere)`, "entry-exit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := evalErr(t, tt.source); !strings.Contains(msg, tt.want) {
				t.Errorf("message = %q, want containing %q", msg, tt.want)
			}
		})
	}
}

func TestDesignExports(t *testing.T) {
	d := eval(t, `
(routing :tie :off)
(layer "l"
  (rect 10 10 :fill "#ff0000" :type :tatami)
  (rect 10 10 :fill "#0000ff" :type :tatami :at (vec 20 0)))
`)
	out, rep := route.Export(d.Scene, d.Routing, 0)
	if len(rep.Blocks) != 2 {
		t.Fatalf("routed %d blocks, want 2", len(rep.Blocks))
	}
	if out.ColorChangeCount() != 1 || len(out.Colors) != 2 {
		t.Errorf("colors = %v, changes = %d", out.Colors, out.ColorChangeCount())
	}
}
