package scenario

import (
	"context"
	"fmt"

	"github.com/class-verify/internal/registry"
	"github.com/class-verify/internal/verifier"
	"github.com/class-verify/pkg/model"
	"github.com/class-verify/pkg/parallel"
	"github.com/class-verify/pkg/utils"
)

// LoadResult is the outcome of one load event.
type LoadResult struct {
	ClassName   string `json:"class_name"`
	Loader      string `json:"loader"`
	Defined     bool   `json:"defined"`
	FailedClass string `json:"failed_class,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Report aggregates the outcome of a scenario run.
type Report struct {
	Verifications []model.VerificationReport `json:"verifications"`
	Loads         []LoadResult               `json:"loads"`
	Failures      int                        `json:"failures"`
}

// Runner replays scenarios through an engine. Consecutive verify events run
// concurrently when Workers allows it; load events are applied in order.
type Runner struct {
	engine   *verifier.Engine
	registry *registry.Registry
	log      utils.Logger

	// Workers caps concurrent verification passes. Zero or one runs
	// everything sequentially.
	Workers int
}

// NewRunner creates a runner over the engine and the registry it verifies
// against.
func NewRunner(engine *verifier.Engine, reg *registry.Registry, log utils.Logger) *Runner {
	if log == nil {
		log = &utils.NullLogger{}
	}
	return &Runner{engine: engine, registry: reg, log: log}
}

// Run replays the scenario and returns the aggregated report. Failures of
// any kind, including references to undeclared loaders, are counted in the
// report rather than returned.
func (r *Runner) Run(ctx context.Context, s *Scenario) *Report {
	loaders := r.resolveLoaders(s)
	report := &Report{}
	var batch []*VerifyEvent

	flush := func() {
		if len(batch) == 0 {
			return
		}
		report.Verifications = append(report.Verifications, r.runBatch(ctx, loaders, batch)...)
		batch = batch[:0]
	}

	for _, ev := range s.Events {
		if ev.Verify != nil {
			batch = append(batch, ev.Verify)
			continue
		}
		flush()
		report.Loads = append(report.Loads, r.runLoad(loaders, ev.Load))
	}
	flush()

	for _, vr := range report.Verifications {
		if vr.Status == model.OutcomeFailed.String() {
			report.Failures++
		}
	}
	for _, lr := range report.Loads {
		if lr.Error != "" || lr.FailedClass != "" {
			report.Failures++
		}
	}
	return report
}

// resolveLoaders materializes the scenario's loaders. The bootstrap loader
// is always available without being declared.
func (r *Runner) resolveLoaders(s *Scenario) map[string]*registry.ClassLoader {
	loaders := map[string]*registry.ClassLoader{
		registry.BootstrapLoaderName: r.registry.BootstrapLoader(),
	}
	for _, spec := range s.Loaders {
		if _, ok := loaders[spec.Name]; !ok {
			loaders[spec.Name] = r.registry.Loader(spec.Name, model.ParseLoaderKind(spec.Kind))
		}
	}
	return loaders
}

func (r *Runner) lookupLoader(loaders map[string]*registry.ClassLoader, name string) (*registry.ClassLoader, error) {
	if name == "" {
		name = registry.BootstrapLoaderName
	}
	loader, ok := loaders[name]
	if !ok {
		return nil, fmt.Errorf("scenario references undeclared loader %q", name)
	}
	return loader, nil
}

// runBatch verifies a run of consecutive verify events. Distinct classes are
// independent, so the batch goes through the worker pool when concurrency is
// enabled.
func (r *Runner) runBatch(ctx context.Context, loaders map[string]*registry.ClassLoader, batch []*VerifyEvent) []model.VerificationReport {
	verify := func(ctx context.Context, ev *VerifyEvent) (model.VerificationReport, error) {
		loader, err := r.lookupLoader(loaders, ev.Loader)
		if err != nil {
			return model.VerificationReport{ClassName: ev.ClassName, Status: model.OutcomeFailed.String()}, err
		}
		report, err := r.engine.VerifyClass(ctx, loader, verifier.ClassVerification{
			ClassName: ev.ClassName,
			Names:     ev.Names,
			Snippets:  ev.Snippets,
		})
		if err != nil {
			r.log.Warn("verification of %s failed: %v", ev.ClassName, err)
		}
		return report, nil
	}

	if r.Workers > 1 && len(batch) > 1 {
		pool := parallel.NewWorkerPool[*VerifyEvent, model.VerificationReport](
			parallel.DefaultPoolConfig().WithWorkers(r.Workers))
		results := pool.ExecuteFunc(ctx, batch, verify)
		reports := make([]model.VerificationReport, 0, len(results))
		for _, res := range results {
			reports = append(reports, res.Result)
		}
		return reports
	}

	reports := make([]model.VerificationReport, 0, len(batch))
	for _, ev := range batch {
		report, _ := verify(ctx, ev)
		reports = append(reports, report)
	}
	return reports
}

// runLoad defines the class and validates its deferred constraints.
func (r *Runner) runLoad(loaders map[string]*registry.ClassLoader, ev *LoadEvent) LoadResult {
	result := LoadResult{ClassName: ev.ClassName, Loader: ev.Loader}
	if result.Loader == "" {
		result.Loader = registry.BootstrapLoaderName
	}

	loader, err := r.lookupLoader(loaders, ev.Loader)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	class, err := r.registry.DefineClass(loader, ev.ClassName, ev.Interface, ev.Super)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Defined = true

	if failed := r.engine.ValidateRelationships(loader, []byte(ev.ClassName), class); failed != nil {
		result.FailedClass = failed.Name
	}
	return result
}
