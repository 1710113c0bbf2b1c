package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
)

// ---------------------------------------------------------------------------
// 1. Empty editor: empty string -> no preview, no errors, non-nil slices.
// ---------------------------------------------------------------------------

func TestE2EEmptySourceExtended(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	if len(result.Errors) != 0 || len(result.Warnings) != 0 || len(result.Preview) != 0 {
		t.Errorf("expected an empty result, got %+v", result)
	}
	// JSON should serialize as [] not null.
	b, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "null") {
		t.Errorf("empty result serialized with null: %s", b)
	}
}

// ---------------------------------------------------------------------------
// 2. Syntax error mid-program: the error carries a message.
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("(+ 1 2)\n(rect 10 \"oops\"")

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	e := result.Errors[0]
	if e.Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	t.Logf("syntax error: line=%d, col=%d, message=%q", e.Line, e.Col, e.Message)
}

// ---------------------------------------------------------------------------
// 3. Builtin misuse: bad dimensions and unknown keywords are eval errors.
// ---------------------------------------------------------------------------

func TestE2EBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"zero width rect", `(rect 0 10)`},
		{"negative radius", `(ellipse -1 4)`},
		{"two-sided polygon", `(polygon 2 5)`},
		{"unknown stitch type", `(rect 10 10 :type :cross)`},
		{"bad color", `(rect 10 10 :fill "#12")`},
		{"layer inside group", `(group "g" (layer "l"))`},
		{"unknown routing policy", `(routing :policy :fastest)`},
		{"undefined symbol", `(rect width 10)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp()
			result := app.Evaluate(tt.source)
			if len(result.Errors) == 0 {
				t.Fatalf("expected an error for %s", tt.source)
			}
			if len(result.Preview) != 0 {
				t.Errorf("expected no preview, got %d items", len(result.Preview))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// 4. Rapid evaluation (debounce simulation): no panics, no data races.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	app := NewApp()
	sources := []string{
		`(rect 10 10 :fill "#ff0000")`,
		`(ellipse 5 3 :fill "#00ff00" :type :tatami)`,
		`(rect 10`,
		``,
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			app.Evaluate(sources[i%len(sources)])
			app.SceneGetTree()
			app.SceneGetStitchPlan()
		}(i)
	}
	wg.Wait()

	// Whatever won, the document is consistent.
	if plan, blocks := app.SceneGetStitchPlan(), app.SceneGetStitchBlocks(); len(plan) != len(blocks) {
		t.Errorf("plan has %d rows for %d blocks", len(plan), len(blocks))
	}
}

// ---------------------------------------------------------------------------
// 5. Large dimensions: a large fill routes without crashing.
// ---------------------------------------------------------------------------

func TestE2ELargeDimensions(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`(rect 300 200 :fill "#336699" :type :tatami :density 2)`)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	d := app.SceneExportDesign(0)
	b := d.Extents()
	if b.Width() < 290 || b.Height() < 190 {
		t.Errorf("extents %+v do not cover the shape", b)
	}
	for _, name := range []string{"dst", "exp", "jef"} {
		f, err := app.ExportFormat(name, d)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(f.Data) == 0 {
			t.Errorf("%s: empty file", name)
		}
	}
}

// ---------------------------------------------------------------------------
// 6. Comments and arithmetic.
// ---------------------------------------------------------------------------

func TestE2ECommentsOnly(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(";; just a comment\n; and another with :keyword\n")
	if len(result.Errors) != 0 || len(result.Preview) != 0 {
		t.Errorf("expected an empty result, got %+v", result)
	}
}

func TestE2ENestedArithmeticDef(t *testing.T) {
	app := NewApp()
	source := `
(def side 8)
(def gap (+ side 4))
(rect side side :fill "#aa0000")
(rect (* side 2) side :at (vec gap 0) :fill "#aa0000")
`
	result := app.Evaluate(source)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Preview) != 2 {
		t.Fatalf("expected 2 shapes, got %d", len(result.Preview))
	}
	b := app.SceneNodeBBox(result.Preview[1].ID)
	if b == nil {
		t.Fatal("missing bbox")
	}
	if b.MinX < 11.9 || b.MinX > 12.1 || b.Width() < 15.9 || b.Width() > 16.1 {
		t.Errorf("second rect bbox = %+v", *b)
	}
}

// ---------------------------------------------------------------------------
// 7. Preview colors: uncolored shapes cycle through the palette.
// ---------------------------------------------------------------------------

func TestE2EColorPaletteWrapping(t *testing.T) {
	var sb strings.Builder
	n := len(previewPalette) + 2
	for i := 0; i < n; i++ {
		sb.WriteString("(rect 5 5)\n")
	}
	app := NewApp()
	result := app.Evaluate(sb.String())
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Preview) != n {
		t.Fatalf("expected %d items, got %d", n, len(result.Preview))
	}
	for i, p := range result.Preview {
		if want := previewPalette[i%len(previewPalette)]; p.Color != want {
			t.Errorf("item %d color = %s, want %s", i, p.Color, want)
		}
	}
}

// ---------------------------------------------------------------------------
// 8. Unknown ids are no-ops across the bindings.
// ---------------------------------------------------------------------------

func TestUnknownIDs(t *testing.T) {
	app := NewApp()
	const missing = scene.NodeID(99)

	if app.SceneGetNode(missing) != nil {
		t.Error("SceneGetNode should return nil")
	}
	if app.SceneNodeBBox(missing) != nil {
		t.Error("SceneNodeBBox should return nil")
	}
	if app.SceneRemoveNode(missing) || app.SceneRenameNode(missing, "x") ||
		app.SceneMoveNode(missing, 0, 0) || app.SceneReorderChild(missing, 0) ||
		app.SceneReorderStitchBlock(scene.BlockID(missing), 0) ||
		app.SceneUpdateTransform(missing, geom.Identity()) {
		t.Error("mutations on unknown ids should return false")
	}
	if app.SceneHitTest(0, 0) != nil {
		t.Error("hit test on an empty scene should return nil")
	}
	if app.SceneGetPathCommands(missing) != nil {
		t.Error("path commands of an unknown node should be nil")
	}
	if app.SceneUndo() || app.SceneRedo() {
		t.Error("empty history should not undo or redo")
	}
}

// ---------------------------------------------------------------------------
// 9. Bindings that validate their input.
// ---------------------------------------------------------------------------

func TestBindingValidation(t *testing.T) {
	app := NewApp()
	if _, err := app.SceneAddNode("bad", scene.KindSpec{Type: "blob"}, 0); err == nil {
		t.Error("expected an error for an unknown kind")
	}
	if _, err := app.SceneAddNode("orphan", scene.KindSpec{Type: "group"}, 42); err == nil {
		t.Error("expected an error for an unknown parent")
	}

	id, err := app.SceneAddNode("r", rectKind(10, 10, "", stitch.TypeTatami), 0)
	if err != nil {
		t.Fatal(err)
	}
	p := stitch.DefaultParams()
	p.Density = -1
	if _, err := app.SceneSetStitchParams(id, p); err == nil {
		t.Error("expected an error for negative density")
	}
	if _, err := app.SceneSetFill(id, "nope"); err == nil {
		t.Error("expected an error for a bad color")
	}
	if ok, err := app.SceneSetFill(id, "#00ff00"); err != nil || !ok {
		t.Errorf("SceneSetFill = %v, %v", ok, err)
	}
	if ok, err := app.SceneSetFill(id, ""); err != nil || !ok {
		t.Errorf("clearing fill = %v, %v", ok, err)
	}
	if info := app.SceneGetNode(id); info == nil || info.Kind.Fill != nil {
		t.Error("fill was not cleared")
	}

	bad := route.DefaultOptions()
	bad.MaxJumpMm = 0
	if err := app.SetRoutingOptions(bad); err == nil {
		t.Error("expected an error for maxJumpMm 0")
	}
	if _, err := app.SceneExportDesignWithOptions(0, bad); err == nil {
		t.Error("expected an error exporting with bad options")
	}
	if _, err := app.ExportFormat("gif", format.Design{}); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

// ---------------------------------------------------------------------------
// 10. Overrides, sequencing and the views built on them.
// ---------------------------------------------------------------------------

func TestOverridesAndSequence(t *testing.T) {
	app := NewApp()
	a, _ := app.SceneAddNode("a", rectKind(5, 5, "#ff0000", stitch.TypeRunning), 0)
	b, _ := app.SceneAddNode("b", rectKind(5, 5, "#ff0000", stitch.TypeRunning), 0)

	if !app.SceneReorderStitchBlock(scene.BlockID(b), 0) {
		t.Fatal("reorder failed")
	}
	track := app.SceneGetSequenceTrack().OrderedBlockIDs
	if len(track) != 2 || track[0] != scene.BlockID(b) {
		t.Errorf("track = %v", track)
	}
	tree := app.SceneGetTree()
	if len(tree) != 2 || tree[0].ID != a {
		t.Error("reordering a block changed the tree")
	}

	off := scene.TieOff
	if !app.SceneSetObjectRoutingOverrides(scene.BlockID(a), scene.RoutingOverrides{TieMode: &off}) {
		t.Fatal("routing override failed")
	}
	yes := true
	if !app.SceneSetStitchBlockCommandOverrides(scene.BlockID(a), scene.CommandOverrides{TrimBefore: &yes}) {
		t.Fatal("command override failed")
	}
	for _, row := range app.SceneGetStitchPlan() {
		if row.BlockID != scene.BlockID(a) {
			continue
		}
		if row.RoutingOverrides.TieMode == nil || *row.RoutingOverrides.TieMode != scene.TieOff {
			t.Error("tie override missing from plan")
		}
		if row.CommandOverrides.TrimBefore == nil || !*row.CommandOverrides.TrimBefore {
			t.Error("trim override missing from plan")
		}
	}
	if rep := app.SceneRouteReport(); len(rep.Blocks) != 2 || rep.Blocks[0].ID != scene.BlockID(b) {
		t.Errorf("route report = %+v", rep.Blocks)
	}
}

// ---------------------------------------------------------------------------
// 11. Idempotent reads and exports.
// ---------------------------------------------------------------------------

func TestExportIsIdempotent(t *testing.T) {
	app := NewApp()
	if r := app.Evaluate(`(rect 10 10 :fill "#ff0000" :type :satin) (ellipse 4 4 :at (vec 30 0) :fill "#0000ff" :type :spiral)`); len(r.Errors) > 0 {
		t.Fatal(r.Errors)
	}
	opts := route.DefaultOptions()
	opts.SequenceMode = route.SequenceOptimizer
	first, err := app.SceneExportDesignWithOptions(0, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := app.SceneExportDesignWithOptions(0, opts)
	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	if string(b1) != string(b2) {
		t.Error("two exports of an unchanged scene differ")
	}

	q1, q2 := app.SceneQualityMetrics(), app.SceneQualityMetrics()
	if q1 != q2 {
		t.Errorf("quality metrics differ: %+v vs %+v", q1, q2)
	}
	if _, err := app.SceneQualityMetricsWithOptions(opts); err != nil {
		t.Error(err)
	}
}

// ---------------------------------------------------------------------------
// 12. Timeline, machine files, imports, threads and persistence.
// ---------------------------------------------------------------------------

func TestTimelineWindow(t *testing.T) {
	app := NewApp()
	if r := app.Evaluate(`(rect 10 10 :fill "#ff0000")`); len(r.Errors) > 0 {
		t.Fatal(r.Errors)
	}
	tl := app.SceneSimulationTimeline(1, 3)
	if len(tl.Frames) != 3 || tl.Frames[0].Index != 1 {
		t.Errorf("frames = %+v", tl.Frames)
	}
	if tl.Summary.Frames <= 3 || tl.Summary.Seconds <= 0 {
		t.Errorf("summary = %+v", tl.Summary)
	}
	if empty := app.SceneSimulationTimeline(tl.Summary.Frames, 10); len(empty.Frames) != 0 {
		t.Error("window past the end should be empty")
	}
}

func TestMachineFileBindings(t *testing.T) {
	app := NewApp()
	if r := app.Evaluate(`(rect 10 10 :fill "#ff0000" :type :tatami)`); len(r.Errors) > 0 {
		t.Fatal(r.Errors)
	}
	d := app.SceneExportDesign(0)
	for name, data := range map[string][]byte{
		"dst": app.ExportDst(d),
		"pes": app.ExportPes(d),
		"pec": app.ExportPec(d),
	} {
		back, err := format.Decode(name, data)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got, want := len(back.Needles()), len(d.Needles()); got != want {
			t.Errorf("%s: %d needles, want %d", name, got, want)
		}
	}

	path := filepath.Join(t.TempDir(), "out.exp")
	codec, _ := format.Lookup("exp")
	if err := app.writeExport(path, codec); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("export file missing or empty: %v", err)
	}
}

func TestImportSvg(t *testing.T) {
	app := NewApp()
	p, err := app.ImportSvgPath("M0 0 L10 0 L10 10 Z")
	if err != nil || !p.Closed {
		t.Fatalf("ImportSvgPath = %+v, %v", p, err)
	}
	if _, err := app.ImportSvgPath("M 0"); err == nil {
		t.Error("expected an error for a truncated path")
	}

	svgDoc := `<svg><rect width="10" height="10" fill="#ff0000"/><circle cx="20" cy="5" r="5"/></svg>`
	doc, err := app.ImportSvgDocument(svgDoc)
	if err != nil || len(doc.Shapes) != 2 {
		t.Fatalf("ImportSvgDocument = %+v, %v", doc, err)
	}

	ids, err := app.ImportSvgIntoScene(svgDoc, 0)
	if err != nil || len(ids) != 2 {
		t.Fatalf("ImportSvgIntoScene = %v, %v", ids, err)
	}
	if !app.SceneUndo() || app.SceneNodeCount() != 0 {
		t.Error("an import should undo in one step")
	}
	if _, err := app.ImportSvgIntoScene("<svg><rect", 0); err == nil {
		t.Error("expected an error for malformed XML")
	}
	if app.SceneNodeCount() != 0 {
		t.Error("a failed import changed the scene")
	}
}

func TestThreadsAndDefaults(t *testing.T) {
	app := NewApp()
	entries, err := app.GetThreadPalette("isacord")
	if err != nil || len(entries) == 0 {
		t.Fatalf("GetThreadPalette = %d entries, %v", len(entries), err)
	}
	e, err := app.FindNearestThread("isacord", entries[0].Color.Hex())
	if err != nil || e.Code != entries[0].Code {
		t.Errorf("FindNearestThread = %+v, %v", e, err)
	}
	if _, err := app.GetThreadPalette("acme"); err == nil {
		t.Error("expected an error for an unknown brand")
	}
	if app.EngineDefaultStitchParams() != stitch.DefaultParams() {
		t.Error("default stitch params differ")
	}
	if app.EngineDefaultRoutingOptions() != route.DefaultOptions() {
		t.Error("default routing options differ")
	}
}

func TestSaveAndLoadScene(t *testing.T) {
	app := NewApp()
	if r := app.Evaluate(`(layer "l" (rect 10 10 :fill "#ff0000") (ellipse 3 3 :fill "#00ff00"))`); len(r.Errors) > 0 {
		t.Fatal(r.Errors)
	}
	saved, err := app.SaveScene()
	if err != nil {
		t.Fatal(err)
	}
	want := app.SceneGetStitchPlan()

	other := NewApp()
	if err := other.LoadScene(saved); err != nil {
		t.Fatal(err)
	}
	got := other.SceneGetStitchPlan()
	if len(got) != len(want) {
		t.Fatalf("plan has %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].BlockID != want[i].BlockID || got[i].Name != want[i].Name {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if err := other.LoadScene("{not json"); err == nil {
		t.Error("expected an error for a bad document")
	}
	if other.SceneNodeCount() != 3 {
		t.Error("a failed load replaced the document")
	}
	other.SceneCreate()
	if other.SceneNodeCount() != 0 {
		t.Error("SceneCreate should start an empty document")
	}
}
