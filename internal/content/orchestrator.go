package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/feed"
	"github.com/pd-triglav/contentd/internal/provider"
	"github.com/pd-triglav/contentd/internal/store"
	"github.com/pd-triglav/contentd/internal/task"
	"github.com/pd-triglav/contentd/internal/telemetry"
)

// ErrWindowExpired marks a generation task whose window ran out before any
// provider produced a usable document.
var ErrWindowExpired = errors.New("generation window expired")

// Store is the slice of the persistence layer the orchestrator needs.
type Store interface {
	InsertRecord(ctx context.Context, rec store.ContentRecord) (int64, error)
	ServableRecord(ctx context.Context, contentType store.ContentType, dateKey string) (*store.ContentRecord, error)
}

// Generator runs one use case through the provider chain.
type Generator interface {
	Generate(ctx context.Context, useCase string, prompt provider.Prompt) (provider.Result, error)
}

// CandidateSource supplies ranked digest candidates.
type CandidateSource interface {
	Run(ctx context.Context) []feed.Candidate
}

// Indexer receives accepted event records for search.
type Indexer interface {
	IndexRecord(rec store.ContentRecord) error
}

// State is what the read path reports for a content key.
type State string

const (
	StateReady       State = "ready"
	StatePending     State = "pending"
	StateUnavailable State = "unavailable"
)

// Resolution is the outcome of an EnsureContent call.
type Resolution struct {
	State  State
	Record *store.ContentRecord
	Task   *task.Task
}

// Orchestrator decides, per content key, whether to serve an existing
// record or to kick off background generation.
type Orchestrator struct {
	store     Store
	providers Generator
	feeds     CandidateSource
	registry  *task.Registry
	runner    *task.Runner
	index     Indexer
	cfg       config.GenerationConfig
	logger    *log.Logger
	now       func() time.Time
}

// NewOrchestrator wires the pipeline together. index may be nil when no
// search surface is wanted.
func NewOrchestrator(st Store, providers Generator, feeds CandidateSource, registry *task.Registry, runner *task.Runner, index Indexer, cfg config.GenerationConfig) *Orchestrator {
	return &Orchestrator{
		store:     st,
		providers: providers,
		feeds:     feeds,
		registry:  registry,
		runner:    runner,
		index:     index,
		cfg:       cfg,
		logger:    log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		now:       time.Now,
	}
}

// EnsureContent serves the record for today's key when one exists, and
// otherwise acquires (or joins) a generation task and reports pending. The
// request goroutine never waits on providers or feeds.
func (o *Orchestrator) EnsureContent(ctx context.Context, contentType store.ContentType) (Resolution, error) {
	dateKey := DateKeyFor(contentType, o.now())

	rec, err := o.store.ServableRecord(ctx, contentType, dateKey)
	switch {
	case err == nil:
		if servable(rec) {
			return Resolution{State: StateReady, Record: rec}, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return Resolution{}, err
	}

	return o.schedule(contentType, dateKey, false)
}

// Status reports the task state for today's key, for polling clients.
func (o *Orchestrator) Status(contentType store.ContentType) (task.Task, bool) {
	key := task.Key{ContentType: string(contentType), DateKey: DateKeyFor(contentType, o.now())}
	return o.registry.Lookup(key)
}

// Regenerate forces a new generation task for the given date key, or
// today's when dateKey is empty. An in-flight task is joined instead of
// duplicated; curated precedence still applies when the result is served.
func (o *Orchestrator) Regenerate(contentType store.ContentType, dateKey string) (Resolution, error) {
	if dateKey == "" {
		dateKey = DateKeyFor(contentType, o.now())
	}
	return o.schedule(contentType, dateKey, true)
}

func (o *Orchestrator) schedule(contentType store.ContentType, dateKey string, forced bool) (Resolution, error) {
	key := task.Key{ContentType: string(contentType), DateKey: dateKey}
	var (
		t       task.Task
		created bool
	)
	if forced {
		t, created = o.registry.ForceAcquire(key)
	} else {
		t, created = o.registry.Acquire(key)
	}
	if !created {
		// A finished task means this key already had its run. Readers see
		// unavailable until eviction or a forced regenerate.
		if t.Status == task.StatusFailed || t.Status == task.StatusSucceeded {
			return Resolution{State: StateUnavailable, Task: &t}, nil
		}
		return Resolution{State: StatePending, Task: &t}, nil
	}

	taskID := t.ID
	if err := o.runner.Submit(func(ctx context.Context) {
		o.runGeneration(ctx, contentType, key, taskID)
	}); err != nil {
		o.registry.Fail(key, taskID, err)
		return Resolution{}, fmt.Errorf("schedule generation: %w", err)
	}
	if forced {
		o.logger.Printf("regeneration forced for %s %s (task %s)", contentType, dateKey, taskID)
	}
	return Resolution{State: StatePending, Task: &t}, nil
}

// runGeneration is the background job: it produces a payload within the
// generation window, falling back to the deterministic stand-in when the
// providers cannot deliver a confident document.
func (o *Orchestrator) runGeneration(ctx context.Context, contentType store.ContentType, key task.Key, taskID string) {
	o.registry.MarkRunning(key, taskID)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Window)
	defer cancel()

	rec, outcome := o.generate(ctx, contentType, key.DateKey)

	// Persisting must survive window expiry, or the key would be left with
	// neither a record nor a live task.
	persistCtx, persistCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer persistCancel()

	id, err := o.store.InsertRecord(persistCtx, rec)
	if err != nil {
		o.logger.Printf("persist %s %s failed: %v", contentType, key.DateKey, err)
		telemetry.GenerationOutcomes.WithLabelValues(string(contentType), "failed").Inc()
		o.registry.Fail(key, taskID, err)
		return
	}
	rec.ID = id
	if o.index != nil {
		if err := o.index.IndexRecord(rec); err != nil {
			o.logger.Printf("index record %d: %v", id, err)
		}
	}

	telemetry.GenerationOutcomes.WithLabelValues(string(contentType), outcome).Inc()
	if outcome == "expired" {
		o.registry.Fail(key, taskID, ErrWindowExpired)
		return
	}
	o.registry.Complete(key, taskID, id)
}

// generate produces the record to persist and names the outcome:
// succeeded, fallback or expired.
func (o *Orchestrator) generate(ctx context.Context, contentType store.ContentType, dateKey string) (store.ContentRecord, string) {
	switch contentType {
	case store.TypeEventOfDay:
		return o.generateEvent(ctx, dateKey)
	default:
		return o.generateDigest(ctx, dateKey)
	}
}

func (o *Orchestrator) generateEvent(ctx context.Context, dateKey string) (store.ContentRecord, string) {
	date, err := time.Parse("01-02", dateKey)
	if err != nil {
		date = o.now()
	}

	res, err := o.providers.Generate(ctx, "historical", provider.Prompt{
		System: eventSystemPrompt,
		User:   eventUserPrompt(date),
	})
	if err != nil {
		o.logger.Printf("event generation for %s failed: %v", dateKey, err)
		return o.eventFallback(dateKey), failureOutcome(ctx)
	}

	payload, confidence, err := ParseEvent(res.Data)
	if err != nil {
		o.logger.Printf("event payload for %s rejected: %v", dateKey, err)
		return o.eventFallback(dateKey), "fallback"
	}
	if confidence == store.ConfidenceLow {
		o.logger.Printf("event for %s rejected: low confidence", dateKey)
		return o.eventFallback(dateKey), "fallback"
	}

	data, _ := json.Marshal(payload)
	return store.ContentRecord{
		ContentType: store.TypeEventOfDay,
		DateKey:     dateKey,
		Origin:      store.OriginGenerated,
		Payload:     data,
		Confidence:  confidence,
		Provider:    res.Provider,
		Model:       res.Model,
	}, "succeeded"
}

func (o *Orchestrator) generateDigest(ctx context.Context, dateKey string) (store.ContentRecord, string) {
	candidates := o.feeds.Run(ctx)
	if len(candidates) == 0 {
		// Every source failing still completes the day with an empty digest.
		o.logger.Printf("digest for %s: no candidates collected", dateKey)
		return digestRecord(dateKey, FallbackDigest(dateKey), store.ContentRecord{Fallback: true}), "fallback"
	}

	res, err := o.providers.Generate(ctx, "digest", provider.Prompt{
		System: digestSystemPrompt,
		User:   digestUserPrompt(dateKey, candidates),
	})
	if err != nil {
		o.logger.Printf("digest generation for %s failed: %v", dateKey, err)
		return digestRecord(dateKey, DigestFromCandidates(dateKey, candidates), store.ContentRecord{Fallback: true}), failureOutcome(ctx)
	}

	payload, confidence, err := ParseDigest(res.Data, dateKey)
	if err != nil || confidence == store.ConfidenceLow || len(payload.Items) == 0 {
		if err != nil {
			o.logger.Printf("digest payload for %s rejected: %v", dateKey, err)
		}
		return digestRecord(dateKey, DigestFromCandidates(dateKey, candidates), store.ContentRecord{Fallback: true}), "fallback"
	}

	rec := digestRecord(dateKey, payload, store.ContentRecord{
		Confidence: confidence,
		Provider:   res.Provider,
		Model:      res.Model,
	})
	return rec, "succeeded"
}

func (o *Orchestrator) eventFallback(dateKey string) store.ContentRecord {
	payload := FallbackEvent()
	data, _ := json.Marshal(payload)
	return store.ContentRecord{
		ContentType: store.TypeEventOfDay,
		DateKey:     dateKey,
		Origin:      store.OriginGenerated,
		Payload:     data,
		Confidence:  store.ConfidenceLow,
		Fallback:    true,
	}
}

func digestRecord(dateKey string, payload DigestPayload, meta store.ContentRecord) store.ContentRecord {
	data, _ := json.Marshal(payload)
	confidence := meta.Confidence
	if confidence == "" {
		confidence = store.ConfidenceLow
	}
	return store.ContentRecord{
		ContentType: store.TypeDailyDigest,
		DateKey:     dateKey,
		Origin:      store.OriginGenerated,
		Payload:     data,
		Confidence:  confidence,
		Fallback:    meta.Fallback,
		Provider:    meta.Provider,
		Model:       meta.Model,
	}
}

// failureOutcome distinguishes a window expiry from an ordinary provider
// failure.
func failureOutcome(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "expired"
	}
	return "fallback"
}

// servable reports whether a stored record may be handed to readers. A
// low-confidence generated row is only served when it is the deterministic
// fallback.
func servable(rec *store.ContentRecord) bool {
	if rec.Origin == store.OriginCurated {
		return true
	}
	if rec.Confidence == store.ConfidenceLow && !rec.Fallback {
		return false
	}
	return true
}
