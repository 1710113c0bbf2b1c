package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

// Go values passed between builtins.

type sexpVec struct{ p geom.Point }

func (v *sexpVec) SexpString(*zygo.PrintState) string {
	return fmt.Sprintf("(vec %g %g)", v.p.X, v.p.Y)
}
func (v *sexpVec) Type() *zygo.RegisteredType { return nil }

type sexpColor struct{ c thread.Color }

func (c *sexpColor) SexpString(*zygo.PrintState) string {
	return fmt.Sprintf("(color %q)", c.c.Hex())
}
func (c *sexpColor) Type() *zygo.RegisteredType { return nil }

type sexpStitch struct{ p stitch.Params }

func (s *sexpStitch) SexpString(*zygo.PrintState) string {
	return fmt.Sprintf("(stitch :type :%s)", s.p.Type)
}
func (s *sexpStitch) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef is a node already added to the scene.
type sexpNodeRef struct {
	id   scene.NodeID
	kind string
	name string
}

func (n *sexpNodeRef) SexpString(*zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(%s %q)", n.kind, n.name)
	}
	return fmt.Sprintf("(%s #%d)", n.kind, n.id)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// kwArgs splits an argument list into keyword and positional arguments.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// parseArgs pairs each keyword with the value after it. A trailing keyword
// is a flag and gets true.
func parseArgs(args []zygo.Sexp) kwArgs {
	res := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			res.positional = append(res.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			res.kw[name] = args[i+1]
			i++
		} else {
			res.kw[name] = &zygo.SexpBool{Val: true}
		}
	}
	return res
}

// float reads an optional numeric keyword into dst.
func (a kwArgs) float(name string, dst *float64) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = f
	return nil
}

func (a kwArgs) boolean(name string, dst *bool) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	b, err := toBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

// optBool reads a keyword into a tri-state override.
func (a kwArgs) optBool(name string, dst **bool) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	if v == zygo.SexpNull {
		*dst = nil
		return nil
	}
	b, err := toBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = &b
	return nil
}

// enum reads a keyword value naming an enum member; hyphens map to
// underscores so :min-travel names "min_travel".
func (a kwArgs) enum(name string, dst *string) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	s, err := toKeywordString(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = strings.ReplaceAll(s, "-", "_")
	return nil
}

func (a kwArgs) has(name string) bool {
	_, ok := a.kw[name]
	return ok
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %s", s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %s", s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", s.SexpString(nil))
}

// toKeywordString accepts :keyword or "string".
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %s", s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec(s zygo.Sexp) (geom.Point, error) {
	if v, ok := s.(*sexpVec); ok {
		return v.p, nil
	}
	return geom.Point{}, fmt.Errorf("expected vec, got %s", s.SexpString(nil))
}

// toColor accepts a (color ...) value or a hex string.
func toColor(s zygo.Sexp) (*thread.Color, error) {
	switch v := s.(type) {
	case *sexpColor:
		c := v.c
		return &c, nil
	case *zygo.SexpStr:
		if strings.HasPrefix(v.S, kwPrefix) && v.S[len(kwPrefix):] == "none" {
			return nil, nil
		}
		c, err := thread.ParseHex(v.S)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
	if s == zygo.SexpNull {
		return nil, nil
	}
	return nil, fmt.Errorf("expected color, got %s", s.SexpString(nil))
}

func toNodeRef(s zygo.Sexp) (*sexpNodeRef, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref, nil
	}
	return nil, fmt.Errorf("expected a shape, group or layer, got %s", s.SexpString(nil))
}

// toList flattens a list or array argument.
func toList(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	}
	if s == zygo.SexpNull {
		return nil, nil
	}
	return nil, fmt.Errorf("expected list or array, got %s", s.SexpString(nil))
}
