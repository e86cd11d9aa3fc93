package verifier

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/class-verify/internal/registry"
	"github.com/class-verify/internal/relationship"
	"github.com/class-verify/internal/sharedcache"
	"github.com/class-verify/internal/snippet"
	apperrors "github.com/class-verify/pkg/errors"
	"github.com/class-verify/pkg/filter"
	"github.com/class-verify/pkg/model"
	"github.com/class-verify/pkg/utils"
)

const tracerName = "class-verify/verifier"

// Config bounds the engine's allocations. Zero values mean unlimited.
type Config struct {
	// MaxSnippets caps the number of unique snippets per verification pass.
	MaxSnippets int

	// MaxBufferBytes caps the serialized snippet buffer size.
	MaxBufferBytes int

	// MaxRecords and MaxParentNodes bound each loader's relationship table.
	MaxRecords     int
	MaxParentNodes int
}

// Engine drives deferred class-relationship verification. The shared cache
// and the exclusion filter are optional; without them every pass records and
// processes its snippets locally.
type Engine struct {
	registry ClassRegistry
	cache    sharedcache.Cache
	filter   *filter.ClassFilter
	cfg      Config
	log      utils.Logger
	tracer   trace.Tracer
}

// NewEngine creates an engine. cache and classFilter may be nil, log falls
// back to a null logger.
func NewEngine(reg ClassRegistry, cache sharedcache.Cache, classFilter *filter.ClassFilter, cfg Config, log utils.Logger) *Engine {
	if log == nil {
		log = &utils.NullLogger{}
	}
	return &Engine{
		registry: reg,
		cache:    cache,
		filter:   classFilter,
		cfg:      cfg,
		log:      log,
		tracer:   otel.Tracer(tracerName),
	}
}

// Verification is the snippet state for one class's verification pass. A
// pass runs on a single goroutine; none of this is locked.
type Verification struct {
	className string
	names     [][]byte
	store     *snippet.Store
}

// NewVerification starts a pass for className. names is the pass's
// class-name table; snippet indices resolve into it.
func NewVerification(className string, names [][]byte) *Verification {
	return &Verification{className: className, names: names}
}

// ClassName returns the name of the class under verification.
func (v *Verification) ClassName() string {
	return v.className
}

// AddName appends a class name to the pass's name table and returns its
// index.
func (v *Verification) AddName(name []byte) int {
	v.names = append(v.names, name)
	return len(v.names) - 1
}

// SnippetCount returns the number of unique snippets recorded so far.
func (v *Verification) SnippetCount() int {
	if v.store == nil {
		return 0
	}
	return v.store.Len()
}

// RecordSnippet defers a (child, parent) relationship check, identified by
// indices into the pass's name table. The snippet store is created on first
// use so classes without deferred checks never allocate one. Returns whether
// a new snippet was recorded; re-recording a pair is a no-op.
func (e *Engine) RecordSnippet(v *Verification, childNameIndex, parentNameIndex int) (bool, error) {
	if childNameIndex < 0 || childNameIndex >= len(v.names) ||
		parentNameIndex < 0 || parentNameIndex >= len(v.names) {
		return false, apperrors.Wrap(apperrors.CodeInternalError, "snippet name index out of range", nil)
	}
	if v.store == nil {
		v.store = snippet.NewStore(e.cfg.MaxSnippets)
	}
	added, err := v.store.Record(childNameIndex, parentNameIndex)
	if err != nil {
		return false, err
	}
	if added {
		e.log.Debug("recorded snippet for %s: %s -> %s",
			v.className, v.names[childNameIndex], v.names[parentNameIndex])
	}
	return added, nil
}

// ProcessSnippets checks every deferred relationship collected for the
// class. With cached data the pairs come from the serialized buffer;
// otherwise the pass's local store is walked. Processing stops at the first
// failure.
//
// The loader's loading lock is held across the walk because unresolved pairs
// are recorded into its relationship table.
func (e *Engine) ProcessSnippets(ctx context.Context, v *Verification, loader *registry.ClassLoader, cached []byte) error {
	ctx, span := e.tracer.Start(ctx, "verifier.ProcessSnippets",
		trace.WithAttributes(
			attribute.String("class.name", v.className),
			attribute.Bool("cache.hit", cached != nil),
		))
	defer span.End()
	_ = ctx

	loader.LoadingLock().Lock()
	defer loader.LoadingLock().Unlock()

	if cached != nil {
		return e.processCached(loader, cached)
	}
	return e.processLocal(v, loader)
}

// processLocal walks the pass's own snippet store.
func (e *Engine) processLocal(v *Verification, loader *registry.ClassLoader) error {
	if v.store == nil {
		// No snippets were recorded for this class.
		return nil
	}
	for _, sn := range v.store.Snippets() {
		childName := v.names[sn.ChildNameIndex]
		parentName := v.names[sn.ParentNameIndex]
		if err := e.checkSnippetRelationship(loader, childName, parentName); err != nil {
			e.log.Debug("snippet processing for %s stopped at %s -> %s: %v",
				v.className, childName, parentName, err)
			return err
		}
	}
	return nil
}

// processCached walks pairs out of a serialized buffer from the shared
// cache.
func (e *Engine) processCached(loader *registry.ClassLoader, cached []byte) error {
	reader, err := snippet.NewReader(cached)
	if err != nil {
		return err
	}
	for i := 0; i < reader.Count(); i++ {
		childName, parentName, err := reader.Pair(i)
		if err != nil {
			return err
		}
		if err := e.checkSnippetRelationship(loader, childName, parentName); err != nil {
			e.log.Debug("cached snippet processing stopped at %s -> %s: %v",
				childName, parentName, err)
			return err
		}
	}
	return nil
}

// FetchSnippetsFromSharedCache looks up the class's serialized snippets.
// A miss returns (nil, nil); a cache fault returns the cache error so the
// caller decides whether to degrade to a miss.
func (e *Engine) FetchSnippetsFromSharedCache(ctx context.Context, className string) ([]byte, error) {
	if e.cache == nil {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "verifier.FetchSnippets",
		trace.WithAttributes(attribute.String("class.name", className)))
	defer span.End()

	data, found, err := e.cache.Find(ctx, className)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	e.log.Debug("shared cache hit for %s (%d bytes)", className, len(data))
	return data, nil
}

// StoreSnippetsToSharedCache serializes the pass's snippets and persists
// them under the class name. A pass with no snippets stores nothing and
// succeeds without touching the cache. Excluded classes are skipped.
//
// Failures return stored=false alongside the error: allocation-limit errors
// from serialization, and cache write faults including sharedcache.
// ErrKeyExists when a concurrent writer won the key. The verification
// itself has already succeeded at this point, so callers typically log and
// continue.
func (e *Engine) StoreSnippetsToSharedCache(ctx context.Context, v *Verification) (bool, error) {
	if e.cache == nil || v.store == nil || v.store.Len() == 0 {
		return false, nil
	}

	if e.filter != nil && !e.filter.ShouldCache(v.className) {
		e.log.Debug("class %s excluded from shared cache", v.className)
		return false, nil
	}

	ctx, span := e.tracer.Start(ctx, "verifier.StoreSnippets",
		trace.WithAttributes(
			attribute.String("class.name", v.className),
			attribute.Int("snippet.count", v.store.Len()),
		))
	defer span.End()

	buf, err := snippet.Serialize(v.store, v.names, e.cfg.MaxBufferBytes)
	if err != nil {
		return false, err
	}

	if err := e.cache.Store(ctx, v.className, buf); err != nil {
		return false, err
	}

	e.log.Info("stored %d snippets for %s (%d bytes)", v.store.Len(), v.className, len(buf))
	return true, nil
}

// ValidateRelationships runs the deferred constraints recorded against
// className now that its class is loaded. Returns nil when every constraint
// holds (or none were recorded); otherwise returns the class that failed.
func (e *Engine) ValidateRelationships(loader *registry.ClassLoader, className []byte, class *model.Class) *model.Class {
	loader.LoadingLock().Lock()
	defer loader.LoadingLock().Unlock()

	table := loader.Relationships()
	if table == nil {
		return nil
	}

	resolver := loaderResolver{registry: e.registry, loader: loader}
	failed := table.Validate(className, class, resolver)
	if failed != nil {
		e.log.Error("relationship validation failed for %s against %s", className, failed.Name)
	}
	return failed
}

// FreeRelationshipTableAndPool tears down the loader's relationship state.
// Called when the loader is discarded.
func (e *Engine) FreeRelationshipTableAndPool(loader *registry.ClassLoader) {
	loader.LoadingLock().Lock()
	defer loader.LoadingLock().Unlock()
	loader.TeardownRelationships()
}

// relationshipLimits translates engine limits to table limits.
func (e *Engine) relationshipLimits() relationship.Limits {
	return relationship.Limits{
		MaxRecords: e.cfg.MaxRecords,
		MaxNodes:   e.cfg.MaxParentNodes,
	}
}

// ClassVerification describes one class's pass for VerifyClass: its name
// table and the snippet pairs (indices into Names) its verification derived.
type ClassVerification struct {
	ClassName string
	Names     []string
	Snippets  [][2]int
}

// VerifyClass runs the full flow for one class: fetch cached snippets,
// record the pass's own if the cache missed, process, and store new snippets
// back to the cache. The returned report always describes the outcome;
// a non-nil error carries the failure cause alongside it.
func (e *Engine) VerifyClass(ctx context.Context, loader *registry.ClassLoader, cv ClassVerification) (model.VerificationReport, error) {
	ctx, span := e.tracer.Start(ctx, "verifier.VerifyClass",
		trace.WithAttributes(attribute.String("class.name", cv.ClassName)))
	defer span.End()

	report := model.VerificationReport{
		ClassName: cv.ClassName,
		Loader:    loader.Name(),
	}

	names := make([][]byte, len(cv.Names))
	for i, n := range cv.Names {
		names[i] = []byte(n)
	}
	v := NewVerification(cv.ClassName, names)

	cached, err := e.FetchSnippetsFromSharedCache(ctx, cv.ClassName)
	if err != nil {
		// A faulty cache degrades to a miss; the pass records its own
		// snippets below.
		e.log.Warn("shared cache lookup for %s failed: %v", cv.ClassName, err)
		cached = nil
	}
	report.UsedCachedData = cached != nil

	if cached == nil {
		for _, pair := range cv.Snippets {
			if _, err := e.RecordSnippet(v, pair[0], pair[1]); err != nil {
				report.Status = model.OutcomeFailed.String()
				return report, err
			}
		}
	}
	report.SnippetCount = v.SnippetCount()

	if err := e.ProcessSnippets(ctx, v, loader, cached); err != nil {
		report.Status = model.OutcomeFailed.String()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.CodeVerifyError {
			report.FailedClass = appErr.Message
		}
		return report, err
	}

	if cached == nil {
		stored, err := e.StoreSnippetsToSharedCache(ctx, v)
		if err != nil {
			// The verification already succeeded; a failed store only means
			// the next run re-derives its snippets.
			if errors.Is(err, sharedcache.ErrKeyExists) {
				e.log.Debug("snippets for %s already cached", cv.ClassName)
			} else {
				e.log.Warn("failed to store snippets for %s: %v", cv.ClassName, err)
			}
		}
		report.StoredToCache = stored
	}

	loader.LoadingLock().Lock()
	if table := loader.Relationships(); table != nil {
		for child := range table.Snapshot() {
			report.DeferredChecks = append(report.DeferredChecks, child)
		}
	}
	loader.LoadingLock().Unlock()
	sort.Strings(report.DeferredChecks)

	if len(report.DeferredChecks) > 0 {
		report.Status = model.OutcomeDeferred.String()
	} else {
		report.Status = model.OutcomeVerified.String()
	}
	return report, nil
}
