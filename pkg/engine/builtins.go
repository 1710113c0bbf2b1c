package engine

import (
	"fmt"
	"math"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/svg"
	"github.com/chazu/bobbin/pkg/thread"
)

// builder accumulates what a program builds.
type builder struct {
	s       *scene.Scene
	routing route.Options
}

func newBuilder(s *scene.Scene, routing route.Options) *builder {
	return &builder{s: s, routing: routing}
}

// design hands the scene over with an empty history, so undo cannot take
// apart what the program built.
func (b *builder) design() *Design {
	b.s.ClearHistory()
	return &Design{Scene: b.s, Routing: b.routing}
}

type builtin func(b *builder, a kwArgs) (zygo.Sexp, error)

// builtins maps names, after kebab-case conversion, to implementations.
var builtins = map[string]builtin{
	"vec":      vecBuiltin,
	"color":    colorBuiltin,
	"stitch":   stitchBuiltin,
	"rect":     rectBuiltin,
	"ellipse":  ellipseBuiltin,
	"polygon":  polygonBuiltin,
	"path":     pathBuiltin,
	"svg_path": svgPathBuiltin,
	"text":     textBuiltin,
	"group":    groupBuiltin,
	"layer":    layerBuiltin,
	"routing":  routingBuiltin,
	"sequence": sequenceBuiltin,
	"override": overrideBuiltin,
}

// registerBuiltins installs every design builtin into env. Source must be
// preprocessed first so keywords are recognizable.
func registerBuiltins(env *zygo.Zlisp, b *builder) {
	for name, fn := range builtins {
		display := kebab(name)
		env.AddFunction(name, func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
			out, err := fn(b, parseArgs(args))
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", display, err)
			}
			return out, nil
		})
	}
}

func kebab(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == '_' {
			out[i] = '-'
		}
	}
	return string(out)
}

// (vec x y)
func vecBuiltin(_ *builder, a kwArgs) (zygo.Sexp, error) {
	if len(a.positional) != 2 {
		return nil, fmt.Errorf("requires exactly 2 arguments, got %d", len(a.positional))
	}
	x, err := toFloat64(a.positional[0])
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	y, err := toFloat64(a.positional[1])
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}
	return &sexpVec{p: geom.Pt(x, y)}, nil
}

// (color "#rrggbb") or (color r g b)
func colorBuiltin(_ *builder, a kwArgs) (zygo.Sexp, error) {
	switch len(a.positional) {
	case 1:
		s, err := toString(a.positional[0])
		if err != nil {
			return nil, err
		}
		c, err := thread.ParseHex(s)
		if err != nil {
			return nil, err
		}
		return &sexpColor{c: c}, nil
	case 3:
		var rgb [3]uint8
		for i, v := range a.positional {
			n, err := toInt(v)
			if err != nil {
				return nil, err
			}
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("component %d out of range", n)
			}
			rgb[i] = uint8(n)
		}
		return &sexpColor{c: thread.RGB(rgb[0], rgb[1], rgb[2])}, nil
	}
	return nil, fmt.Errorf("requires a hex string or three components")
}

// (stitch :type :tatami :density 0.4 :angle 30 :underlay :zigzag ...)
func stitchBuiltin(_ *builder, a kwArgs) (zygo.Sexp, error) {
	p := stitch.DefaultParams()
	if err := applyStitch(&p, a); err != nil {
		return nil, err
	}
	return &sexpStitch{p: p}, nil
}

func applyStitch(p *stitch.Params, a kwArgs) error {
	var typ, underlay, comp, start, motif string
	steps := []error{
		a.enum("type", &typ),
		a.float("density", &p.Density),
		a.float("angle", &p.Angle),
		a.enum("underlay", &underlay),
		a.float("underlay-spacing", &p.Underlay.SpacingMm),
		a.boolean("underlay-enabled", &p.Underlay.Enabled),
		a.enum("compensation", &comp),
		a.float("pull", &p.Compensation.PullCompensation),
		a.float("comp-x", &p.Compensation.XMm),
		a.float("comp-y", &p.Compensation.YMm),
		a.float("min-segment", &p.MinSegmentMm),
		a.float("overlap", &p.OverlapMm),
		a.boolean("edge-walk", &p.EdgeWalkOnFill),
		a.enum("start", &start),
		a.float("contour-step", &p.ContourStepMm),
		a.enum("motif", &motif),
		a.float("motif-scale", &p.MotifScale),
		a.float("phase", &p.FillPhase),
		a.float("length", &p.StitchLengthMm),
		a.float("max-stitch", &p.MaxStitchMm),
		a.boolean("bean", &p.BeanStitch),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	if typ != "" {
		t, err := stitch.ParseType(typ)
		if err != nil {
			return err
		}
		p.Type = t
	}
	if underlay == "none" {
		p.Underlay.Enabled = false
	} else if underlay != "" {
		p.Underlay.Mode = stitch.UnderlayMode(underlay)
		p.Underlay.Enabled = true
	}
	if comp != "" {
		p.Compensation.Mode = stitch.CompensationMode(comp)
	}
	if start != "" {
		p.FillStartMode = stitch.FillStartMode(start)
	}
	if motif != "" {
		p.MotifPattern = stitch.MotifPattern(motif)
	}
	return p.Validate()
}

// transform reads :at (vec x y), :rotate degrees and :scale, :scale-x,
// :scale-y.
func transform(a kwArgs) (geom.Transform, error) {
	t := geom.Identity()
	if v, ok := a.kw["at"]; ok {
		p, err := toVec(v)
		if err != nil {
			return t, fmt.Errorf("at: %w", err)
		}
		t.X, t.Y = p.X, p.Y
	}
	var deg float64
	if err := a.float("rotate", &deg); err != nil {
		return t, err
	}
	t.Rotation = deg * math.Pi / 180
	scale := 1.0
	if err := a.float("scale", &scale); err != nil {
		return t, err
	}
	t.ScaleX, t.ScaleY = scale, scale
	if err := a.float("scale-x", &t.ScaleX); err != nil {
		return t, err
	}
	if err := a.float("scale-y", &t.ScaleY); err != nil {
		return t, err
	}
	if t.ScaleX == 0 || t.ScaleY == 0 {
		return t, fmt.Errorf("scale must not be zero")
	}
	return t, nil
}

// nodeName reads :name, falling back to def.
func nodeName(a kwArgs, def string) (string, error) {
	if v, ok := a.kw["name"]; ok {
		return toString(v)
	}
	return def, nil
}

// addShape creates a root-level shape from g and the common shape keywords
// :name :fill :stroke :stroke-width :stitch :type and the transform ones.
func (b *builder) addShape(def string, g geom.Geometry, a kwArgs, typ stitch.Type) (zygo.Sexp, error) {
	k := scene.NewShape(g)
	if typ != "" {
		k.Stitch.Type = typ
	}
	name, err := nodeName(a, def)
	if err != nil {
		return nil, err
	}
	if v, ok := a.kw["fill"]; ok {
		if k.Fill, err = toColor(v); err != nil {
			return nil, fmt.Errorf("fill: %w", err)
		}
	}
	if v, ok := a.kw["stroke"]; ok {
		if k.Stroke, err = toColor(v); err != nil {
			return nil, fmt.Errorf("stroke: %w", err)
		}
	}
	if err := a.float("stroke-width", &k.StrokeWidth); err != nil {
		return nil, err
	}
	if v, ok := a.kw["stitch"]; ok {
		sp, ok := v.(*sexpStitch)
		if !ok {
			return nil, fmt.Errorf("stitch: expected (stitch ...), got %s", v.SexpString(nil))
		}
		k.Stitch = sp.p
	}
	if a.has("type") {
		if err := applyStitch(&k.Stitch, kwArgs{kw: map[string]zygo.Sexp{"type": a.kw["type"]}}); err != nil {
			return nil, err
		}
	}
	t, err := transform(a)
	if err != nil {
		return nil, err
	}
	id, err := b.s.CreateNodeWithTransform(name, k, t, 0)
	if err != nil {
		return nil, err
	}
	return &sexpNodeRef{id: id, kind: "shape", name: name}, nil
}

func floats(args []zygo.Sexp, names ...string) ([]float64, error) {
	if len(args) != len(names) {
		return nil, fmt.Errorf("requires %d arguments, got %d", len(names), len(args))
	}
	out := make([]float64, len(args))
	for i, v := range args {
		f, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
		out[i] = f
	}
	return out, nil
}

// (rect w h :radius r ...)
func rectBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	wh, err := floats(a.positional, "width", "height")
	if err != nil {
		return nil, err
	}
	g := geom.RectGeometry{Width: wh[0], Height: wh[1]}
	if err := a.float("radius", &g.CornerRadius); err != nil {
		return nil, err
	}
	if g.Width <= 0 || g.Height <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}
	return b.addShape("rect", g, a, "")
}

// (ellipse rx ry ...)
func ellipseBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	r, err := floats(a.positional, "rx", "ry")
	if err != nil {
		return nil, err
	}
	if r[0] <= 0 || r[1] <= 0 {
		return nil, fmt.Errorf("radii must be positive")
	}
	return b.addShape("ellipse", geom.EllipseGeometry{RX: r[0], RY: r[1]}, a, "")
}

// (polygon sides radius ...)
func polygonBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	if len(a.positional) != 2 {
		return nil, fmt.Errorf("requires sides and radius")
	}
	sides, err := toInt(a.positional[0])
	if err != nil {
		return nil, fmt.Errorf("sides: %w", err)
	}
	radius, err := toFloat64(a.positional[1])
	if err != nil {
		return nil, fmt.Errorf("radius: %w", err)
	}
	if sides < 3 || radius <= 0 {
		return nil, fmt.Errorf("needs at least 3 sides and a positive radius")
	}
	return b.addShape("polygon", geom.PolygonGeometry{Sides: sides, Radius: radius}, a, "")
}

// (path (vec 0 0) (vec 10 0) ... :closed true), points may also be passed
// as one list.
func pathBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	var pts []geom.Point
	for _, v := range a.positional {
		items := []zygo.Sexp{v}
		if _, ok := v.(*sexpVec); !ok {
			var err error
			if items, err = toList(v); err != nil {
				return nil, err
			}
		}
		for _, it := range items {
			p, err := toVec(it)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("requires at least 2 points")
	}
	var closed bool
	if err := a.boolean("closed", &closed); err != nil {
		return nil, err
	}
	var p geom.Path
	p.MoveTo(pts[0])
	for _, pt := range pts[1:] {
		p.LineTo(pt)
	}
	if closed {
		p.Close()
	}
	return b.addShape("path", geom.PathGeometry{Path: p}, a, "")
}

// (svg-path "M0 0 L10 0 Z" ...)
func svgPathBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	if len(a.positional) != 1 {
		return nil, fmt.Errorf("requires path data")
	}
	d, err := toString(a.positional[0])
	if err != nil {
		return nil, err
	}
	p, err := svg.ParsePath(d)
	if err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		return nil, fmt.Errorf("empty path data")
	}
	return b.addShape("svg-path", geom.PathGeometry{Path: p}, a, "")
}

// (text "ABC" :size 10 :spacing 0.5 :baseline (list (vec ...) ...))
func textBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	if len(a.positional) != 1 {
		return nil, fmt.Errorf("requires the text")
	}
	s, err := toString(a.positional[0])
	if err != nil {
		return nil, err
	}
	g := geom.TextGeometry{Text: s, SizeMm: 10}
	if err := a.float("size", &g.SizeMm); err != nil {
		return nil, err
	}
	if err := a.float("spacing", &g.SpacingMm); err != nil {
		return nil, err
	}
	if v, ok := a.kw["baseline"]; ok {
		items, err := toList(v)
		if err != nil {
			return nil, fmt.Errorf("baseline: %w", err)
		}
		for i, it := range items {
			p, err := toVec(it)
			if err != nil {
				return nil, fmt.Errorf("baseline: %w", err)
			}
			if i == 0 {
				g.Baseline.MoveTo(p)
			} else {
				g.Baseline.LineTo(p)
			}
		}
	}
	if g.SizeMm <= 0 {
		return nil, fmt.Errorf("size must be positive")
	}
	return b.addShape(s, g, a, stitch.TypeLettering)
}

// container creates a group or layer and moves the given nodes into it.
func (b *builder) container(kind string, k scene.Kind, a kwArgs) (zygo.Sexp, error) {
	if len(a.positional) < 1 {
		return nil, fmt.Errorf("requires a name")
	}
	name, err := toString(a.positional[0])
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	t, err := transform(a)
	if err != nil {
		return nil, err
	}
	id, err := b.s.CreateNodeWithTransform(name, k, t, 0)
	if err != nil {
		return nil, err
	}
	for i, v := range a.positional[1:] {
		ref, err := toNodeRef(v)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i+1, err)
		}
		if kind == "group" && ref.kind == "layer" {
			return nil, fmt.Errorf("child %d: a layer cannot be nested in a group", i+1)
		}
		if !b.s.MoveNode(ref.id, id, i) {
			return nil, fmt.Errorf("child %d: cannot move %s", i+1, ref.SexpString(nil))
		}
	}
	return &sexpNodeRef{id: id, kind: kind, name: name}, nil
}

// (group "name" child... :at (vec x y) :rotate deg :scale s)
func groupBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	return b.container("group", scene.GroupKind{}, a)
}

// (layer "name" child... :visible false :locked true)
func layerBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	k := scene.LayerKind{Visible: true}
	if err := a.boolean("visible", &k.Visible); err != nil {
		return nil, err
	}
	if err := a.boolean("locked", &k.Locked); err != nil {
		return nil, err
	}
	return b.container("layer", k, a)
}

// (routing :policy :min-travel :max-jump 10 :sequence :optimizer ...)
// Options not named keep their current value.
func routingBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	o := b.routing
	var policy, entry, tie, seq string
	steps := []error{
		a.enum("policy", &policy),
		a.float("max-jump", &o.MaxJumpMm),
		a.float("trim-threshold", &o.TrimThresholdMm),
		a.boolean("preserve-color", &o.PreserveColorOrder),
		a.boolean("preserve-layer", &o.PreserveLayerOrder),
		a.boolean("allow-reverse", &o.AllowReverse),
		a.boolean("allow-merge", &o.AllowColorMerge),
		a.boolean("underpath", &o.AllowUnderpath),
		a.enum("entry-exit", &entry),
		a.enum("tie", &tie),
		a.float("min-run", &o.MinStitchRunBeforeTrimMm),
		a.enum("sequence", &seq),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}
	if policy != "" {
		o.Policy = route.Policy(policy)
	}
	if entry != "" {
		o.EntryExitMode = scene.EntryExitMode(entry)
	}
	if tie != "" {
		o.TieMode = scene.TieMode(tie)
	}
	switch seq {
	case "":
	case "strict":
		o.SequenceMode = route.SequenceStrict
	default:
		o.SequenceMode = route.SequenceMode(seq)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	b.routing = o
	return zygo.SexpNull, nil
}

// (sequence shape...) moves the named blocks, in order, to the front of
// the sewing sequence. Groups and layers stand for every shape below them
// in tree order.
func sequenceBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	next := 0
	for i, v := range a.positional {
		ref, err := toNodeRef(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		for _, id := range b.shapesUnder(ref.id) {
			if b.s.ReorderStitchBlock(scene.BlockID(id), next) {
				next++
			}
		}
	}
	return zygo.SexpNull, nil
}

func (b *builder) shapesUnder(root scene.NodeID) []scene.NodeID {
	var out []scene.NodeID
	stack := []scene.NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := b.s.GetNode(id)
		if !ok {
			continue
		}
		if _, ok := n.Kind.(scene.ShapeKind); ok {
			out = append(out, id)
		}
		kids := b.s.Children(id)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// (override shape :allow-reverse false :entry-exit :nearest-point :tie :off
//
//	:trim-before true :trim-after false :tie-in true :tie-out false)
//
// Passing nil for a key clears that override.
func overrideBuiltin(b *builder, a kwArgs) (zygo.Sexp, error) {
	if len(a.positional) != 1 {
		return nil, fmt.Errorf("requires one shape")
	}
	ref, err := toNodeRef(a.positional[0])
	if err != nil {
		return nil, err
	}
	blk, ok := b.s.StitchBlock(scene.BlockID(ref.id))
	if !ok {
		return nil, fmt.Errorf("%s has no stitch block", ref.SexpString(nil))
	}

	ro, co := blk.RoutingOverrides, blk.CommandOverrides
	if err := a.optBool("allow-reverse", &ro.AllowReverse); err != nil {
		return nil, err
	}
	if a.has("entry-exit") {
		if ro.EntryExitMode, err = optEnum(a, "entry-exit", scene.ParseEntryExitMode); err != nil {
			return nil, err
		}
	}
	if a.has("tie") {
		if ro.TieMode, err = optEnum(a, "tie", scene.ParseTieMode); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		name string
		dst  **bool
	}{
		{"trim-before", &co.TrimBefore},
		{"trim-after", &co.TrimAfter},
		{"tie-in", &co.TieIn},
		{"tie-out", &co.TieOut},
	} {
		if err := a.optBool(f.name, f.dst); err != nil {
			return nil, err
		}
	}
	b.s.SetObjectRoutingOverrides(blk.ID, ro)
	b.s.SetStitchBlockCommandOverrides(blk.ID, co)
	return a.positional[0], nil
}

func optEnum[T any](a kwArgs, name string, parse func(string) (T, error)) (*T, error) {
	if a.kw[name] == zygo.SexpNull {
		return nil, nil
	}
	var s string
	if err := a.enum(name, &s); err != nil {
		return nil, err
	}
	v, err := parse(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &v, nil
}
