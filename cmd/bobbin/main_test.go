package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
)

const twoColors = `; two squares in different colors
(layer "art"
  (rect 10 10 :fill "#ff0000" :type :satin :density 0.4)
  (rect 10 10 :at (vec 40 0) :fill "#0000ff" :type :tatami))
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errb bytes.Buffer
	cmd := newRootCmd(&out, &errb)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errb.String(), err
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "squares.bob", twoColors)
	outDir := filepath.Join(dir, "out")

	stdout, _, err := run(t, "export", src, "-f", "dst,pes", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "squares.dst")
	assert.Contains(t, stdout, "squares.pes")

	raw, err := os.ReadFile(filepath.Join(outDir, "squares.dst"))
	require.NoError(t, err)
	d, err := format.Decode("dst", raw)
	require.NoError(t, err)
	require.NotEmpty(t, d.Stitches)
	assert.Equal(t, format.End, d.Stitches[len(d.Stitches)-1].Type)
	assert.Equal(t, 1, d.ColorChangeCount())

	_, err = os.Stat(filepath.Join(outDir, "squares.pes"))
	assert.NoError(t, err)
}

func TestExportUnknownFormatStillWritesOthers(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "squares.lisp", twoColors)

	_, _, err := run(t, "export", src, "-f", "exp,nope", "-o", dir)
	require.ErrorIs(t, err, format.ErrUnknownFormat)
	_, statErr := os.Stat(filepath.Join(dir, "squares.exp"))
	assert.NoError(t, statErr)
}

func TestExportFormatsFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "squares.bob", twoColors)
	t.Setenv("BOBBIN_FORMATS", "jef")
	t.Setenv("BOBBIN_OUTPUT_DIR", dir)

	_, _, err := run(t, "export", src)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "squares.jef"))
	assert.NoError(t, err)
}

func TestExportRejectsBadPolicy(t *testing.T) {
	src := writeFile(t, t.TempDir(), "squares.bob", twoColors)
	_, _, err := run(t, "export", src, "--policy", "fastest")
	assert.ErrorIs(t, err, route.ErrInvalidOptions)
}

func TestMetrics(t *testing.T) {
	src := writeFile(t, t.TempDir(), "squares.bob", twoColors)
	stdout, _, err := run(t, "metrics", src)
	require.NoError(t, err)

	var rep metricsReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, 1, rep.Route.ColorChangeCount)
	assert.Positive(t, rep.Route.StitchCount)
	assert.Positive(t, rep.Quality.MeanStitchLengthMm)
	assert.Len(t, rep.Blocks, 2)
}

func TestTimeline(t *testing.T) {
	src := writeFile(t, t.TempDir(), "squares.bob", twoColors)

	stdout, _, err := run(t, "timeline", src)
	require.NoError(t, err)
	var rep timelineReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Positive(t, rep.Summary.Frames)
	assert.Positive(t, rep.Summary.Seconds)
	assert.Empty(t, rep.Frames)

	stdout, _, err = run(t, "timeline", src, "--offset", "2", "--limit", "5")
	require.NoError(t, err)
	rep = timelineReport{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	require.Len(t, rep.Frames, 5)
	assert.Equal(t, 2, rep.Frames[0].Index)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	clean := writeFile(t, dir, "clean.bob", twoColors)
	stdout, _, err := run(t, "validate", clean, "--json")
	require.NoError(t, err)
	var diags []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &diags))
	for _, d := range diags {
		assert.NotEqual(t, "error", d["severity"], "unexpected error: %v", d)
	}

	// A fill without a color is only a warning.
	uncolored := writeFile(t, dir, "uncolored.bob", `(rect 10 10 :type :tatami)`)
	stdout, _, err = run(t, "validate", uncolored)
	require.NoError(t, err)
	assert.Contains(t, stdout, scene.CodeMissingColor)
}

func TestPalette(t *testing.T) {
	stdout, _, err := run(t, "palette", "Madeira", "--nearest", "#010101")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "1000\t#000000"), stdout)

	stdout, _, err = run(t, "palette", "sulky")
	require.NoError(t, err)
	assert.Greater(t, strings.Count(stdout, "\n"), 5)

	_, _, err = run(t, "palette", "acme")
	assert.Error(t, err)
}

func TestSVGThenExport(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "art.svg", `<svg xmlns="http://www.w3.org/2000/svg">
  <rect id="a" width="20" height="10" fill="#ff0000"/>
  <circle id="b" cx="40" cy="5" r="5" fill="#00ff00"/>
</svg>`)
	sceneFile := filepath.Join(dir, "art.json")

	_, stderr, err := run(t, "svg", in, "-o", sceneFile)
	require.NoError(t, err)
	assert.Contains(t, stderr, "imported 2 shapes")

	raw, err := os.ReadFile(sceneFile)
	require.NoError(t, err)
	s, err := scene.Load(raw)
	require.NoError(t, err)
	assert.Len(t, s.StitchBlocks(), 2)

	_, _, err = run(t, "export", sceneFile, "-f", "dst", "-o", dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "art.dst"))
	assert.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "metrics", writeFile(t, dir, "design.txt", twoColors))
	assert.ErrorIs(t, err, errUnsupportedDesign)

	_, _, err = run(t, "metrics", writeFile(t, dir, "broken.bob", `(rect 10`))
	assert.Error(t, err)

	_, _, err = run(t, "metrics", filepath.Join(dir, "missing.bob"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg := writeFile(t, dir, "bad.json", `{"export": {"stitchLengthMm": -1}}`)
	_, _, err = run(t, "--config", cfg, "formats")
	assert.Error(t, err)
}

func TestFormats(t *testing.T) {
	stdout, _, err := run(t, "formats")
	require.NoError(t, err)
	for _, name := range format.Formats() {
		assert.Contains(t, stdout, name+"\t.")
	}
}
