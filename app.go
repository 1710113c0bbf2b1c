package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/config"
	"github.com/chazu/bobbin/pkg/engine"
	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
	"github.com/chazu/bobbin/pkg/kernel/sdfx"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/svg"
	"github.com/chazu/bobbin/pkg/thread"
)

// previewPalette colors shapes that have neither fill nor stroke.
var previewPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It owns the open document and exposes it to
// the frontend via bindings. Bindings may be called concurrently, so every
// method holds mu while it touches the scene.
type App struct {
	ctx context.Context

	mu           sync.Mutex
	scene        *scene.Scene
	routing      route.Options
	stitchLength float64
	machine      route.Machine

	engine *engine.Engine
	kernel kernel.Kernel
	log    *zap.Logger
}

// OutlineData is one flattened polyline of a shape in world millimeters.
type OutlineData struct {
	Points []geom.Point `json:"points"`
	Closed bool         `json:"closed"`
}

// PreviewItem is a shape ready to draw.
type PreviewItem struct {
	ID       scene.NodeID  `json:"id"`
	Name     string        `json:"name"`
	Color    string        `json:"color"`
	Outlines []OutlineData `json:"outlines"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Preview  []PreviewItem   `json:"preview"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// TimelineData is a window of a sewing simulation.
type TimelineData struct {
	Summary route.TimelineSummary `json:"summary"`
	Frames  []route.Frame         `json:"frames"`
}

// EncodedFile is one machine file.
type EncodedFile struct {
	Format string        `json:"format"`
	Ext    string        `json:"ext"`
	Data   []byte        `json:"data"`
	Notes  []format.Note `json:"notes"`
}

// NewApp creates an App with the default configuration and no logging.
func NewApp() *App {
	return newApp(config.Default(), zap.NewNop())
}

func newApp(cfg config.Config, log *zap.Logger) *App {
	k := sdfx.New()
	a := &App{
		routing:      cfg.Routing,
		stitchLength: cfg.Export.StitchLengthMm,
		machine:      cfg.Machine,
		kernel:       k,
		log:          log,
	}
	a.engine = engine.NewEngine(
		engine.WithLogger(log),
		engine.WithSceneOptions(scene.WithKernel(k)),
		engine.WithRouting(cfg.Routing),
	)
	a.scene = a.newScene()
	return a
}

func (a *App) newScene() *scene.Scene {
	return scene.New(scene.WithKernel(a.kernel), scene.WithLogger(a.log))
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// ---------------------------------------------------------------------------
// DSL
// ---------------------------------------------------------------------------

// Evaluate runs a design program. On success the program's scene and
// routing options replace the open document; on failure the document is
// left alone and the errors are returned. Programs start from the
// configured routing options, not from the open document's.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Preview:  []PreviewItem{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	res := a.engine.EvaluateResult(source)
	for _, e := range res.Errors {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	if res.Design == nil {
		if len(result.Errors) == 0 {
			result.Errors = append(result.Errors, EvalErrorData{Message: "evaluation produced no design"})
		}
		a.log.Warn("evaluate failed", zap.Int("errors", len(result.Errors)))
		return result
	}
	for _, w := range res.Warnings {
		msg := w.Message
		if w.NodeID != 0 {
			msg = fmt.Sprintf("node %d: %s", w.NodeID, w.Message)
		}
		result.Warnings = append(result.Warnings, EvalErrorData{Message: msg})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.scene = res.Design.Scene
	a.routing = res.Design.Routing
	result.Preview = a.preview()
	return result
}

// preview flattens every visible shape. Callers hold mu.
func (a *App) preview() []PreviewItem {
	out := []PreviewItem{}
	for i, item := range a.scene.RenderList() {
		subs, ok := a.scene.Outline(item.ID)
		if !ok {
			continue
		}
		p := PreviewItem{ID: item.ID, Name: item.Name, Color: previewColor(item.Kind, i)}
		for _, sp := range subs {
			p.Outlines = append(p.Outlines, OutlineData{Points: sp.Points, Closed: sp.Closed})
		}
		out = append(out, p)
	}
	return out
}

func previewColor(k scene.KindSpec, i int) string {
	switch {
	case k.Fill != nil:
		return k.Fill.Hex()
	case k.Stroke != nil:
		return k.Stroke.Hex()
	}
	return previewPalette[i%len(previewPalette)]
}

// Preview returns the drawable outlines of the open document.
func (a *App) Preview() []PreviewItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preview()
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// SceneCreate replaces the open document with an empty scene.
func (a *App) SceneCreate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scene = a.newScene()
}

// SaveScene returns the open document as JSON.
func (a *App) SaveScene() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.scene.Save()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadScene replaces the open document. A bad document leaves the open
// one untouched.
func (a *App) LoadScene(data string) error {
	s, err := scene.Load([]byte(data), scene.WithKernel(a.kernel), scene.WithLogger(a.log))
	if err != nil {
		a.log.Warn("load scene", zap.Error(err))
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scene = s
	return nil
}

// ---------------------------------------------------------------------------
// Scene commands
// ---------------------------------------------------------------------------

// SceneAddNode adds a node under parent (0 for the root).
func (a *App) SceneAddNode(name string, kind scene.KindSpec, parent scene.NodeID) (scene.NodeID, error) {
	return a.SceneAddNodeWithTransform(name, kind, geom.Identity(), parent)
}

// SceneAddNodeWithTransform adds a node with a local transform.
func (a *App) SceneAddNodeWithTransform(name string, kind scene.KindSpec, t geom.Transform, parent scene.NodeID) (scene.NodeID, error) {
	k, err := kind.Kind()
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.CreateNodeWithTransform(name, k, t, parent)
}

func (a *App) SceneRemoveNode(id scene.NodeID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.RemoveNode(id)
}

// SceneGetNode returns nil for an unknown id.
func (a *App) SceneGetNode(id scene.NodeID) *scene.NodeInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.scene.GetNode(id)
	if !ok {
		return nil
	}
	info := n.Info()
	return &info
}

func (a *App) SceneUpdateTransform(id scene.NodeID, t geom.Transform) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.UpdateTransform(id, t)
}

// SceneUpdateKind replaces a node's kind. An invalid kind is an error; an
// unknown id returns false.
func (a *App) SceneUpdateKind(id scene.NodeID, kind scene.KindSpec) (bool, error) {
	k, err := kind.Kind()
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.UpdateKind(id, k), nil
}

func (a *App) SceneRenameNode(id scene.NodeID, name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.Rename(id, name)
}

// SceneSetFill sets a shape's fill; an empty hex clears it.
func (a *App) SceneSetFill(id scene.NodeID, hex string) (bool, error) {
	c, err := optionalColor(hex)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SetFill(id, c), nil
}

// SceneSetStroke sets a shape's stroke; an empty hex clears it.
func (a *App) SceneSetStroke(id scene.NodeID, hex string) (bool, error) {
	c, err := optionalColor(hex)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SetStroke(id, c), nil
}

func optionalColor(hex string) (*thread.Color, error) {
	if hex == "" {
		return nil, nil
	}
	c, err := thread.ParseHex(hex)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *App) SceneSetStrokeWidth(id scene.NodeID, w float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SetStrokeWidth(id, w)
}

// SceneSetStitchParams validates p before applying it.
func (a *App) SceneSetStitchParams(id scene.NodeID, p stitch.Params) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SetStitchParams(id, p), nil
}

func (a *App) SceneGetPathCommands(id scene.NodeID) []geom.PathCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	cmds, ok := a.scene.GetPathCommands(id)
	if !ok {
		return nil
	}
	return cmds
}

func (a *App) SceneSetPathCommands(id scene.NodeID, cmds []geom.PathCommand) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SetPathCommands(id, cmds)
}

func (a *App) SceneMoveNode(id, parent scene.NodeID, index int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.MoveNode(id, parent, index)
}

func (a *App) SceneReorderChild(id scene.NodeID, index int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.ReorderChild(id, index)
}

func (a *App) SceneReorderStitchBlock(id scene.BlockID, index int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.ReorderStitchBlock(id, index)
}

func (a *App) SceneSetObjectRoutingOverrides(id scene.BlockID, o scene.RoutingOverrides) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SetObjectRoutingOverrides(id, o)
}

func (a *App) SceneSetStitchBlockCommandOverrides(id scene.BlockID, o scene.CommandOverrides) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SetStitchBlockCommandOverrides(id, o)
}

func (a *App) SceneUndo() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.Undo()
}

func (a *App) SceneRedo() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.Redo()
}

// ---------------------------------------------------------------------------
// Scene reads
// ---------------------------------------------------------------------------

func (a *App) SceneGetTree() []scene.TreeNode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.Tree()
}

func (a *App) SceneGetStitchPlan() []scene.StitchPlanRow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.StitchPlan()
}

func (a *App) SceneGetEmbroideryObjects() []scene.EmbroideryObject {
	a.mu.Lock()
	defer a.mu.Unlock()
	return nonNil(a.scene.EmbroideryObjects())
}

func (a *App) SceneGetStitchBlocks() []scene.StitchBlock {
	a.mu.Lock()
	defer a.mu.Unlock()
	return nonNil(a.scene.StitchBlocks())
}

func (a *App) SceneGetSequenceTrack() scene.SequenceTrack {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.SequenceTrack()
}

func (a *App) SceneGetRenderList() []scene.RenderItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return nonNil(a.scene.RenderList())
}

// SceneHitTest returns the topmost shape at (x, y), or nil.
func (a *App) SceneHitTest(x, y float64) *scene.NodeID {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.scene.HitTest(geom.Pt(x, y))
	if !ok {
		return nil
	}
	return &id
}

// SceneNodeBBox returns nil for an unknown id or a node without geometry.
func (a *App) SceneNodeBBox(id scene.NodeID) *geom.BBox {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.scene.NodeBBox(id)
	if !ok {
		return nil
	}
	return &b
}

func (a *App) SceneNodeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene.NodeCount()
}

func (a *App) SceneValidationDiagnostics() []scene.Diagnostic {
	a.mu.Lock()
	defer a.mu.Unlock()
	return nonNil(scene.Validate(a.scene))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ---------------------------------------------------------------------------
// Routing and export
// ---------------------------------------------------------------------------

// GetRoutingOptions returns the document's routing options.
func (a *App) GetRoutingOptions() route.Options {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.routing
}

// SetRoutingOptions replaces the document's routing options.
func (a *App) SetRoutingOptions(o route.Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routing = o
	return nil
}

// router builds a router for the open document. Callers hold mu.
func (a *App) router(opts route.Options, stitchLength float64) *route.Router {
	if stitchLength <= 0 {
		stitchLength = a.stitchLength
	}
	return route.New(opts, stitchLength, a.log)
}

// SceneExportDesign routes the open document with its own options.
func (a *App) SceneExportDesign(stitchLength float64) format.Design {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, _ := a.router(a.routing, stitchLength).Export(a.scene)
	return d
}

// SceneExportDesignWithOptions routes with explicit options.
func (a *App) SceneExportDesignWithOptions(stitchLength float64, o route.Options) (format.Design, error) {
	if err := o.Validate(); err != nil {
		return format.Design{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d, _ := a.router(o, stitchLength).Export(a.scene)
	return d, nil
}

// SceneRouteReport lists how each block was sewn.
func (a *App) SceneRouteReport() route.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, rep := a.router(a.routing, 0).Export(a.scene)
	return rep
}

func (a *App) SceneRouteMetrics() route.RouteMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, _ := a.router(a.routing, 0).Export(a.scene)
	return route.Metrics(d, a.routing.Policy)
}

func (a *App) SceneRouteMetricsWithOptions(o route.Options) (route.RouteMetrics, error) {
	if err := o.Validate(); err != nil {
		return route.RouteMetrics{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d, _ := a.router(o, 0).Export(a.scene)
	return route.Metrics(d, o.Policy), nil
}

func (a *App) SceneQualityMetrics() route.QualityMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.router(a.routing, 0).Quality(a.scene)
}

func (a *App) SceneQualityMetricsWithOptions(o route.Options) (route.QualityMetrics, error) {
	if err := o.Validate(); err != nil {
		return route.QualityMetrics{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.router(o, 0).Quality(a.scene), nil
}

// SceneSimulationTimeline returns up to limit frames from offset plus the
// totals for the whole design.
func (a *App) SceneSimulationTimeline(offset, limit int) TimelineData {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, _ := a.router(a.routing, 0).Export(a.scene)
	frames, sum := route.Timeline(d, a.machine)
	return TimelineData{Summary: sum, Frames: route.Window(frames, offset, limit)}
}

func (a *App) ExportDst(d format.Design) []byte {
	b, _ := format.EncodeDST(d)
	return b
}

func (a *App) ExportPes(d format.Design) []byte {
	b, _ := format.EncodePES(d)
	return b
}

func (a *App) ExportPec(d format.Design) []byte {
	b, _ := format.EncodePEC(d)
	return b
}

// ExportFormat encodes d in any registered format.
func (a *App) ExportFormat(name string, d format.Design) (EncodedFile, error) {
	codec, err := format.Lookup(name)
	if err != nil {
		return EncodedFile{}, err
	}
	b, notes := codec.Encode(d)
	return EncodedFile{Format: codec.Name, Ext: codec.Ext, Data: b, Notes: nonNil(notes)}, nil
}

// Formats lists the registered machine formats.
func (a *App) Formats() []string {
	return format.Formats()
}

// SaveExport asks for a file name and writes the open document in the
// named format. It returns the chosen path, or "" when the dialog was
// cancelled.
func (a *App) SaveExport(name string) (string, error) {
	codec, err := format.Lookup(name)
	if err != nil {
		return "", err
	}
	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Export " + codec.Name,
		DefaultFilename: "design" + codec.Ext,
		Filters: []runtime.FileFilter{
			{DisplayName: codec.Name + " files", Pattern: "*" + codec.Ext},
		},
	})
	if err != nil || path == "" {
		return "", err
	}
	return path, a.writeExport(path, codec)
}

func (a *App) writeExport(path string, codec format.Codec) error {
	d := a.SceneExportDesign(0)
	b, notes := codec.Encode(d)
	for _, n := range notes {
		a.log.Info("export note", zap.String("format", codec.Name), zap.String("code", n.Code), zap.String("message", n.Message))
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		a.log.Error("export failed", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Import, threads and defaults
// ---------------------------------------------------------------------------

func (a *App) ImportSvgPath(content string) (geom.Path, error) {
	return svg.ParsePath(content)
}

func (a *App) ImportSvgDocument(content string) (svg.Document, error) {
	return svg.ParseDocument(content)
}

// ImportSvgIntoScene adds every shape of an SVG document under parent as
// one undoable step.
func (a *App) ImportSvgIntoScene(content string, parent scene.NodeID) ([]scene.NodeID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids, doc, err := svg.Import(a.scene, parent, content)
	if err != nil {
		a.log.Warn("svg import", zap.Error(err))
		return nil, err
	}
	if skipped := doc.Err(); skipped != nil {
		a.log.Info("svg elements skipped", zap.Error(skipped))
	}
	return nonNil(ids), nil
}

func (a *App) GetThreadPalette(brand string) ([]thread.Entry, error) {
	b, err := thread.ParseBrand(brand)
	if err != nil {
		return nil, err
	}
	return thread.Palette(b)
}

func (a *App) FindNearestThread(brand, hex string) (thread.Entry, error) {
	b, err := thread.ParseBrand(brand)
	if err != nil {
		return thread.Entry{}, err
	}
	c, err := thread.ParseHex(hex)
	if err != nil {
		return thread.Entry{}, err
	}
	return thread.Nearest(b, c)
}

func (a *App) EngineDefaultStitchParams() stitch.Params {
	return stitch.DefaultParams()
}

func (a *App) EngineDefaultRoutingOptions() route.Options {
	return route.DefaultOptions()
}
