// Package engine evaluates the bobbin design language. A program is a
// zygomys Lisp script whose builtins add layers, groups and shapes to a
// fresh scene and set the routing options used to export it.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
)

// EvalError is a parse or runtime error in user code.
type EvalError struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is a validation finding on the scene a program built.
type EvalWarning struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	NodeID  scene.NodeID `json:"nodeId,omitempty"`
}

// Design is the output of a successful evaluation.
type Design struct {
	Scene   *scene.Scene
	Routing route.Options
}

// EvalResult bundles everything an evaluation produced for the UI.
type EvalResult struct {
	Design   *Design       `json:"-"`
	Errors   []EvalError   `json:"errors"`
	Warnings []EvalWarning `json:"warnings"`
}

// Engine runs programs. It is safe for concurrent use; every evaluation
// gets its own sandbox and scene, so results depend only on the source.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	timeout  time.Duration
	log      *zap.Logger
	sceneOps []scene.Option
	routing  route.Options
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for evaluation tracing.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithTimeout replaces EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithSceneOptions is applied to every scene the engine creates.
func WithSceneOptions(opts ...scene.Option) Option {
	return func(e *Engine) {
		e.sceneOps = append(e.sceneOps, opts...)
	}
}

// WithRouting sets the routing options a program starts from.
func WithRouting(o route.Options) Option {
	return func(e *Engine) { e.routing = o }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout, log: zap.NewNop(), routing: route.DefaultOptions()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs source and returns the design it built.
//
// Return semantics:
//   - On success: design, nil errors, nil error
//   - On parse or runtime failure: nil design, eval errors, nil error
//   - On timeout, panic or a superseded run: nil, nil, error
func (e *Engine) Evaluate(source string) (*Design, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	start := time.Now()
	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		d, evalErrs, err := e.evaluate(source)
		ch <- evalResult{design: d, errors: evalErrs, err: err}
	}()

	d, evalErrs, err := waitWithTimeout(ch, e.timeout, gen, &e.mu, &e.generation)
	e.log.Debug("evaluated design",
		zap.Uint64("generation", gen),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("evalErrors", len(evalErrs)),
		zap.Error(err))
	return d, evalErrs, err
}

// EvaluateResult runs source and attaches the scene's validation warnings.
// Fatal failures are reported as a single EvalError.
func (e *Engine) EvaluateResult(source string) EvalResult {
	d, evalErrs, err := e.Evaluate(source)
	if err != nil {
		return EvalResult{Errors: []EvalError{{Message: err.Error()}}}
	}
	res := EvalResult{Design: d, Errors: evalErrs}
	if d != nil {
		for _, diag := range scene.Validate(d.Scene) {
			if diag.Severity == scene.SeverityInfo {
				continue
			}
			res.Warnings = append(res.Warnings, EvalWarning{Code: diag.Code, Message: diag.Message, NodeID: diag.NodeID})
		}
	}
	return res
}

func (e *Engine) evaluate(source string) (*Design, []EvalError, error) {
	b := newBuilder(scene.New(append([]scene.Option{scene.WithLogger(e.log)}, e.sceneOps...)...), e.routing)
	if strings.TrimSpace(source) == "" {
		return b.design(), nil, nil
	}

	// The sandbox has no filesystem or system call access.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return b.design(), nil, nil
}

// linePattern matches "Error on line N: ..." from the zygomys parser.
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches "line N: ...".
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting
// the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
