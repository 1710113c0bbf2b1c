package svg

import (
	"fmt"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
)

// ShapeImports converts the document into scene shapes. Filled closed
// shapes get a tatami fill; everything else is sewn as a running outline
// in its stroke color.
func (d Document) ShapeImports() []scene.ShapeImport {
	out := make([]scene.ShapeImport, 0, len(d.Shapes))
	for i, sh := range d.Shapes {
		k := scene.NewShape(geom.PathGeometry{Path: sh.Path.Clone()})
		k.Fill = sh.Fill
		k.Stroke = sh.Stroke
		if sh.Fill != nil && sh.Path.Closed {
			k.Stitch.Type = stitch.TypeTatami
		}
		name := sh.ID
		if name == "" {
			name = fmt.Sprintf("%s %d", sh.Tag, i+1)
		}
		out = append(out, scene.ShapeImport{Name: name, Kind: k, Transform: geom.Identity()})
	}
	return out
}

// Import parses content and adds its shapes under parent as one undoable
// command. A parse failure leaves s untouched.
func Import(s *scene.Scene, parent scene.NodeID, content string) ([]scene.NodeID, Document, error) {
	doc, err := ParseDocument(content)
	if err != nil {
		return nil, Document{}, err
	}
	ids, err := s.ImportShapes(parent, doc.ShapeImports())
	if err != nil {
		return nil, doc, err
	}
	return ids, doc, nil
}
