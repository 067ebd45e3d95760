// Package pipeline implements the submission pipeline: the ordered sequence
// of dependent operations that turns a raw image into a persisted,
// reviewable scan. Stages run strictly in order, each at most once per
// invocation, and every external call honors caller cancellation.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cattle-scans/backend/internal/artifact"
	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/events"
	"github.com/cattle-scans/backend/internal/geolocation"
	"github.com/cattle-scans/backend/internal/inference"
	"github.com/cattle-scans/backend/internal/logging"
	"github.com/cattle-scans/backend/internal/notification"
	"github.com/cattle-scans/backend/internal/observability"
)

// Stage names the external-call boundaries of a submission.
type Stage string

const (
	StageInference   Stage = "inference"
	StageUpload      Stage = "upload"
	StagePersistence Stage = "persistence"
)

// State is the observable state of a pipeline instance.
type State string

const (
	StateIdle       State = "idle"
	StateInferring  State = "inferring"
	StateUploading  State = "uploading"
	StatePersisting State = "persisting"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Classifier is the inference dependency of the pipeline.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]inference.Prediction, error)
}

// Deps are the external collaborators of one pipeline instance.
type Deps struct {
	Classifier Classifier
	Artifacts  artifact.Store
	Resolver   geolocation.Resolver   // nil disables location enrichment
	Records    datastore.Interface
	Notifier   *notification.Service  // nil disables notifications
	Publisher  events.Publisher       // nil disables event publishing
	Metrics    *observability.Metrics // nil disables metrics
	KeyPrefix  string
}

// Partial carries results of previously completed stages into a stage-aware
// re-entry, so a retry after a late failure reuses the already uploaded
// artifact instead of creating a duplicate object.
type Partial struct {
	Predictions []inference.Prediction // non-nil skips the inference stage
	ImageURL    string                 // non-empty skips the upload stage
}

// Result is the outcome of a completed submission.
type Result struct {
	ScanID   uint
	ImageURL string
	Headline inference.Prediction
}

// Pipeline orchestrates inference, upload and persistence for a single
// submission. Instances are cheap; create one per submission. The state
// machine is mutex-guarded so State and Reset are safe from other
// goroutines.
type Pipeline struct {
	deps Deps

	mu          sync.Mutex
	state       State
	failedStage Stage

	logger *slog.Logger
}

// New creates an idle pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		deps:   deps,
		state:  StateIdle,
		logger: logging.ForService("pipeline"),
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// FailedStage returns the stage that failed, valid only in StateFailed.
func (p *Pipeline) FailedStage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failedStage
}

// Reset unconditionally returns the pipeline to idle from any state,
// discarding in-flight results. It is the only transition that never fails.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateIdle
	p.failedStage = ""
}

// setState transitions the state machine.
func (p *Pipeline) setState(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	if state != StateFailed {
		p.failedStage = ""
	}
}

// Submit runs a full submission: inference, upload, best-effort location,
// persistence. On success the returned result carries the new scan id; on
// failure the error is tagged with the failing stage and the pipeline
// requires Reset before the next submission.
func (p *Pipeline) Submit(ctx context.Context, image []byte, submitterID string) (*Result, error) {
	return p.run(ctx, image, submitterID, Partial{})
}

// Resume is the stage-aware re-entry point. Stages whose results are present
// in partial are skipped; in particular a previously produced artifact URL
// is reused rather than re-uploaded.
func (p *Pipeline) Resume(ctx context.Context, image []byte, submitterID string, partial Partial) (*Result, error) {
	return p.run(ctx, image, submitterID, partial)
}

func (p *Pipeline) run(ctx context.Context, image []byte, submitterID string, partial Partial) (*Result, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return nil, errors.Newf("pipeline is %s, reset before submitting again", state).
			Category(errors.CategoryState).
			Component("pipeline").
			Build()
	}
	p.state = StateInferring
	p.mu.Unlock()

	// Stage 1: inference. Aborting here leaves no side effect anywhere.
	predictions := partial.Predictions
	if predictions == nil {
		var err error
		predictions, err = runStage(ctx, p, StageInference, func() ([]inference.Prediction, error) {
			return p.deps.Classifier.Classify(ctx, image)
		})
		if err != nil {
			return nil, p.fail(StageInference, err)
		}
	}

	predictions = normalizePredictions(predictions)
	if len(predictions) == 0 {
		return nil, p.fail(StageInference, errors.Newf("no predictions for submitted image").
			Category(errors.CategoryInference).
			Component("pipeline").
			Build())
	}

	// Stage 2: upload. A created object is durable even if persistence
	// later fails; that orphan is surfaced, never silently discarded.
	p.setState(StateUploading)
	imageURL := partial.ImageURL
	var objectKey string
	if imageURL == "" {
		objectKey = artifact.ScanKey(p.deps.KeyPrefix, time.Now())
		var err error
		imageURL, err = runStage(ctx, p, StageUpload, func() (string, error) {
			return p.deps.Artifacts.Upload(ctx, objectKey, image, "image/jpeg")
		})
		if err != nil {
			return nil, p.fail(StageUpload, err)
		}
	}

	// Location is best-effort enrichment, failure degrades to absent.
	coords := p.resolveLocation(ctx)

	// Stage 3: persistence. This is the step that must succeed for the
	// submission to be considered complete.
	p.setState(StatePersisting)
	scan := buildScan(imageURL, submitterID, coords)
	records := buildPredictionRecords(predictions)

	_, err := runStage(ctx, p, StagePersistence, func() (struct{}, error) {
		return struct{}{}, p.deps.Records.SaveScan(ctx, &scan, records)
	})
	if err != nil {
		p.reportOrphan(objectKey, imageURL, err)
		return nil, p.fail(StagePersistence, err)
	}

	p.setState(StateComplete)

	result := &Result{
		ScanID:   scan.ID,
		ImageURL: imageURL,
		Headline: predictions[0],
	}

	p.logger.Info("submission complete",
		"scan_id", result.ScanID,
		"headline", result.Headline.Label,
		"confidence", result.Headline.Confidence,
		"has_location", coords != nil)

	p.publishScan(ctx, &scan, result)

	return result, nil
}

// runStage executes one external call, treating caller cancellation before
// completion as a stage failure rather than success.
func runStage[T any](ctx context.Context, p *Pipeline, stage Stage, call func() (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, errors.Newf("%s cancelled: %w", stage, err).
			Category(stageCategory(stage)).
			Component("pipeline").
			Build()
	}

	start := time.Now()
	out, err := call()
	duration := time.Since(start)

	if err == nil && ctx.Err() != nil {
		err = errors.Newf("%s cancelled: %w", stage, ctx.Err()).
			Category(stageCategory(stage)).
			Component("pipeline").
			Build()
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.deps.Metrics.RecordStage(string(stage), outcome, duration)

	if err != nil {
		return zero, tagStage(stage, err)
	}
	return out, nil
}

// resolveLocation performs the best-effort coordinate lookup.
func (p *Pipeline) resolveLocation(ctx context.Context) *geolocation.Coordinates {
	if p.deps.Resolver == nil {
		return nil
	}

	coords, err := p.deps.Resolver.Resolve(ctx)
	if err != nil {
		// Not a pipeline failure, the scan is persisted without location.
		p.logger.Debug("location resolution failed, continuing without location", "error", err)
		return nil
	}
	return coords
}

// fail moves the state machine to Failed(stage) and surfaces the failure as
// a notification naming the stage, message preserved verbatim.
func (p *Pipeline) fail(stage Stage, err error) error {
	p.mu.Lock()
	p.state = StateFailed
	p.failedStage = stage
	p.mu.Unlock()

	p.logger.Error("submission failed",
		"stage", stage,
		"error", err)

	if p.deps.Notifier != nil {
		p.deps.Notifier.Notify(
			notification.NewNotification(notification.TypeError, notification.PriorityHigh,
				stageFailureTitle(stage), err.Error()).
				WithComponent("pipeline").
				WithMetadata("stage", string(stage)))
	}

	return err
}

// reportOrphan surfaces an uploaded object whose scan was never persisted.
// There is no automatic cleanup; an operator sweeps these by key.
func (p *Pipeline) reportOrphan(objectKey, imageURL string, cause error) {
	if objectKey == "" {
		// Resumed submission reusing an earlier upload, nothing new leaked.
		return
	}

	p.deps.Metrics.RecordOrphanedArtifact()

	p.logger.Warn("orphaned artifact: image stored but scan not persisted",
		"object_key", objectKey,
		"image_url", imageURL,
		"error", cause)

	if p.deps.Notifier != nil {
		p.deps.Notifier.Notify(
			notification.NewNotification(notification.TypeWarning, notification.PriorityMedium,
				"Orphaned scan image",
				"an image was uploaded but its scan could not be saved").
				WithComponent("pipeline").
				WithMetadata("object_key", objectKey).
				WithMetadata("image_url", imageURL))
	}
}

// publishScan emits the scan-created event, best-effort.
func (p *Pipeline) publishScan(ctx context.Context, scan *datastore.Scan, result *Result) {
	if p.deps.Publisher == nil {
		return
	}

	event := events.ScanEvent{
		ScanID:             result.ScanID,
		ImageURL:           result.ImageURL,
		HeadlineLabel:      result.Headline.Label,
		HeadlineConfidence: result.Headline.Confidence,
		SubmitterID:        scan.SubmitterID,
		CreatedAt:          scan.CreatedAt,
	}
	if err := p.deps.Publisher.PublishScan(ctx, event); err != nil {
		p.logger.Warn("scan event publish failed", "scan_id", result.ScanID, "error", err)
	}
}

// buildScan assembles the scan record persisted at the end of a run.
func buildScan(imageURL, submitterID string, coords *geolocation.Coordinates) datastore.Scan {
	scan := datastore.Scan{
		ImageURL:    imageURL,
		SubmitterID: submitterID,
	}
	if coords != nil {
		lat, lon, acc := coords.Latitude, coords.Longitude, coords.Accuracy
		scan.Latitude = &lat
		scan.Longitude = &lon
		scan.Accuracy = &acc
	}
	return scan
}

// normalizePredictions restores the canonical ordering invariant on re-entry
// paths: descending confidence, ties broken by ascending label, one entry
// per label keeping the highest confidence.
func normalizePredictions(predictions []inference.Prediction) []inference.Prediction {
	best := make(map[string]float64, len(predictions))
	for _, p := range predictions {
		if current, ok := best[p.Label]; !ok || p.Confidence > current {
			best[p.Label] = p.Confidence
		}
	}

	out := make([]inference.Prediction, 0, len(best))
	for label, confidence := range best {
		out = append(out, inference.Prediction{Label: label, Confidence: confidence})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// buildPredictionRecords maps ranked predictions onto datastore rows.
func buildPredictionRecords(predictions []inference.Prediction) []datastore.Prediction {
	records := make([]datastore.Prediction, len(predictions))
	for i, prediction := range predictions {
		records[i] = datastore.Prediction{
			Label:      prediction.Label,
			Confidence: prediction.Confidence,
			Rank:       i + 1,
		}
	}
	return records
}

// stageCategory maps a stage to its error category.
func stageCategory(stage Stage) errors.ErrorCategory {
	switch stage {
	case StageInference:
		return errors.CategoryInference
	case StageUpload:
		return errors.CategoryImageStore
	case StagePersistence:
		return errors.CategoryDatabase
	default:
		return errors.CategoryGeneric
	}
}

// tagStage ensures a stage failure carries its stage category, preserving
// the original message.
func tagStage(stage Stage, err error) error {
	if errors.IsCategory(err, stageCategory(stage)) {
		return err
	}
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) && enhanced.Category != errors.CategoryGeneric {
		// Adapter already categorized it (validation, cancellation); the
		// stage is still recoverable from the pipeline state.
		return err
	}
	return errors.New(err).
		Category(stageCategory(stage)).
		Component("pipeline").
		Build()
}

// stageFailureTitle is the user-facing headline of a stage failure.
func stageFailureTitle(stage Stage) string {
	switch stage {
	case StageInference:
		return "Scan failed"
	case StageUpload:
		return "Upload failed"
	case StagePersistence:
		return "Save failed"
	default:
		return "Submission failed"
	}
}

// StageOf extracts the failing stage from a submission error; empty when
// the error is not a stage failure.
func StageOf(err error) Stage {
	switch {
	case errors.IsCategory(err, errors.CategoryInference):
		return StageInference
	case errors.IsCategory(err, errors.CategoryImageStore):
		return StageUpload
	case errors.IsCategory(err, errors.CategoryDatabase):
		return StagePersistence
	default:
		return ""
	}
}
