// Package eval drives configuration resolution to a fixed point. Modules
// may define option values as functions of the final configuration; the
// evaluator repeatedly re-evaluates those deferred definitions against a
// provisional result until no path changes, then runs the collected
// assertions against the stable tree.
//
// One evaluator run is single-threaded by design: each pass depends on the
// previous one. Independent runs share no mutable state and may proceed in
// parallel. Ownership of the modules passes to the run; callers must not
// mutate them afterwards.
package eval

import (
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/clock"
	"grimm.is/moraine/internal/diag"
	"grimm.is/moraine/internal/logging"
	"grimm.is/moraine/internal/merge"
	"grimm.is/moraine/internal/metrics"
	"grimm.is/moraine/internal/module"
)

// DefaultMaxIterations bounds the fixed-point loop. Well-formed
// configurations stabilize in a handful of passes; anything approaching
// the bound is circular.
const DefaultMaxIterations = 32

// Options configures an Evaluator.
type Options struct {
	// MaxIterations overrides DefaultMaxIterations when > 0. It is the
	// only safety valve against divergent self-reference.
	MaxIterations int

	// Logger for evaluation progress. Defaults to the package default.
	Logger *logging.Logger

	// Metrics sink. Defaults to the global registry.
	Metrics *metrics.Registry

	// Clock for run timing. Defaults to the real clock.
	Clock clock.Clock
}

// Evaluator resolves module sets into configurations. Safe to reuse
// across runs; each Run is independent.
type Evaluator struct {
	maxIter int
	log     *logging.Logger
	metrics *metrics.Registry
	clock   clock.Clock
}

// New creates an Evaluator.
func New(opts Options) *Evaluator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Get()
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	return &Evaluator{
		maxIter: opts.MaxIterations,
		log:     opts.Logger.WithComponent("eval"),
		metrics: opts.Metrics,
		clock:   opts.Clock,
	}
}

// Run composes the modules into one resolved configuration. Module order
// is the load order: it is total and fixed, and every tie-break in the
// run (notably the force tier) derives from it.
//
// Path-level problems (undeclared options, type mismatches, conflicts) do
// not stop resolution of other paths; they are aggregated so one run
// reports as many problems as possible. Divergence aborts the run since
// no partial result can be trusted. On any error-severity diagnostic the
// returned Result is nil.
func (e *Evaluator) Run(mods []module.Module) (*Result, diag.Diagnostics) {
	runID := uuid.NewString()
	started := e.clock.Now()
	log := e.log.WithFields(map[string]any{"run": runID})

	sch, diags := buildSchema(mods)
	if diags.HasErrors() {
		e.finish("error", started, 0, 0, diags)
		return nil, diags
	}

	// Static definitions are fixed across iterations; explode them to
	// declared leaf paths once. The sequence counter spans static and
	// dynamic definitions so load order stays total.
	var static []merge.Def
	seq := 0
	for _, m := range mods {
		for _, def := range m.Definitions {
			defs, defDiags := sch.explode(def, seq)
			seq++
			static = append(static, defs...)
			diags = diags.Extend(defDiags)
		}
	}
	staticSeqEnd := seq

	values := map[string]cty.Value{}
	iterations := 0
	var lastChanged string

	for iterations < e.maxIter {
		iterations++
		v := &view{sch: sch, values: values}

		iterDefs := make([]merge.Def, len(static))
		copy(iterDefs, static)
		var iterDiags diag.Diagnostics

		seq = staticSeqEnd
		for _, m := range mods {
			if m.Dynamic == nil {
				continue
			}
			dynDefs, err := m.Dynamic(v)
			if err != nil {
				d := diag.New(diag.EvaluationFailure, "", "module %q: deferred definitions: %v", m.Name, err)
				iterDiags = iterDiags.Append(d)
				continue
			}
			for _, def := range dynDefs {
				defs, defDiags := sch.explode(def, seq)
				seq++
				iterDefs = append(iterDefs, defs...)
				iterDiags = iterDiags.Extend(defDiags)
			}
		}

		byPath := map[string][]merge.Def{}
		for _, d := range iterDefs {
			key := d.Path.String()
			byPath[key] = append(byPath[key], d)
		}

		next := make(map[string]cty.Value, len(sch.order))
		changed := ""
		unknown := ""
		for _, key := range sch.order {
			decl := sch.decls[key]
			merged, mergeDiags := merge.Resolve(decl, byPath[key])
			iterDiags = iterDiags.Extend(mergeDiags)
			next[key] = merged

			if mergeDiags.HasErrors() {
				continue
			}
			prev, had := values[key]
			if !had || !decl.Type.Equal(prev, merged) {
				if changed == "" {
					changed = key
				}
			}
			if merged != cty.NilVal && !merged.IsKnown() && unknown == "" {
				unknown = key
			}
		}

		values = next

		if changed == "" {
			// Stable. Unknowns that survived stabilization mean a path is
			// mutually dependent on itself and can never resolve.
			diags = diags.Extend(iterDiags)
			if unknown != "" && !diags.HasErrors() {
				d := diag.New(diag.Divergence, unknown, "option never resolves: its value depends on itself (stable after %d passes)", iterations)
				diags = diags.Append(d)
			}
			if diags.HasErrors() {
				e.finish("error", started, iterations, 0, diags)
				return nil, diags
			}

			log.Debug("configuration stabilized", "iterations", iterations, "paths", len(sch.order))
			result := &Result{
				RunID:      runID,
				Iterations: iterations,
				sch:        sch,
				values:     values,
			}

			diags = diags.Extend(e.collectAssertions(mods, result, log))
			if diags.HasErrors() {
				e.finish("error", started, iterations, 0, diags)
				return nil, diags
			}
			e.finish("ok", started, iterations, len(result.Paths()), diags)
			return result, diags
		}

		lastChanged = changed
		// Keep only the final pass's path diagnostics: earlier passes may
		// report transient states of a converging configuration.
		if iterations == e.maxIter {
			diags = diags.Extend(iterDiags)
		}
	}

	d := diag.New(diag.Divergence, lastChanged, "no fixed point after %d passes; option kept changing", e.maxIter)
	diags = diags.Append(d)
	e.finish("divergence", started, iterations, 0, diags)
	return nil, diags
}

// collectAssertions evaluates every module's assertions and warnings
// against the final configuration. All failing assertions are reported
// together; warnings are collected onto the result and as
// warning-severity diagnostics.
func (e *Evaluator) collectAssertions(mods []module.Module, result *Result, log *logging.Logger) diag.Diagnostics {
	var diags diag.Diagnostics
	v := result.View()

	for _, m := range mods {
		for _, a := range m.Assertions {
			ok, err := a.Condition(v)
			if err != nil {
				d := diag.New(diag.AssertionFailure, "", "assertion %q from %s could not be evaluated: %v", a.Name, a.Origin, err)
				d.Origins = []string{a.Origin.String()}
				diags = diags.Append(d)
				continue
			}
			if !ok {
				d := diag.New(diag.AssertionFailure, "", "assertion %q failed: %s", a.Name, a.Message)
				d.Origins = []string{a.Origin.String()}
				diags = diags.Append(d)
			}
		}
		for _, w := range m.Warnings {
			fired, err := w.Condition(v)
			if err != nil {
				log.Warn("warning condition failed to evaluate", "warning", w.Name, "module", m.Name, "error", err)
				continue
			}
			if fired {
				result.Warnings = append(result.Warnings, w.Message)
				diags = diags.Append(&diag.Diagnostic{
					Kind:     diag.AssertionFailure,
					Severity: diag.SeverityWarning,
					Detail:   w.Message,
					Origins:  []string{w.Origin.String()},
				})
			}
		}
	}
	return diags
}

// finish records run metrics.
func (e *Evaluator) finish(outcome string, started time.Time, iterations, paths int, diags diag.Diagnostics) {
	e.metrics.EvaluationsTotal.WithLabelValues(outcome).Inc()
	e.metrics.Duration.Observe(e.clock.Since(started).Seconds())
	if iterations > 0 {
		e.metrics.Iterations.Observe(float64(iterations))
	}
	e.metrics.PathsResolved.Set(float64(paths))
	e.metrics.ConflictsTotal.Add(float64(len(diags.ByKind(diag.Conflict))))
	e.metrics.TypeMismatchesTotal.Add(float64(len(diags.ByKind(diag.TypeMismatch))))
	failed := 0
	for _, d := range diags.ByKind(diag.AssertionFailure) {
		if d.Severity == diag.SeverityError {
			failed++
		}
	}
	e.metrics.AssertionFailuresTotal.Add(float64(failed))
}
