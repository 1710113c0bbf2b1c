package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/engine"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
)

var errUnsupportedDesign = errors.New("unsupported design file")

// design is a loaded design with the routing options it should be sewn
// with.
type design struct {
	name    string
	scene   *scene.Scene
	routing route.Options
}

// loadDesign reads a DSL program or a saved scene. Programs start from the
// configured routing options and may override them; saved scenes use the
// configured options as they are.
func (c *cli) loadDesign(path string) (*design, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		s, err := scene.Load(raw, scene.WithLogger(c.log))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &design{name: name, scene: s, routing: c.cfg.Routing}, nil

	case ".lisp", ".bob":
		eng := engine.NewEngine(engine.WithLogger(c.log), engine.WithRouting(c.cfg.Routing))
		d, evalErrs, err := eng.Evaluate(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(evalErrs) > 0 {
			var errs error
			for _, e := range evalErrs {
				errs = multierr.Append(errs, e)
			}
			return nil, fmt.Errorf("%s: %w", path, errs)
		}
		return &design{name: name, scene: d.Scene, routing: d.Routing}, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnsupportedDesign, path)
}

func (c *cli) router(d *design) *route.Router {
	return route.New(d.routing, c.cfg.Export.StitchLengthMm, c.log.With(zap.String("design", d.name)))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
