// Package processor runs one uploaded video through the full pipeline:
// validate, probe, transform, re-probe, thumbnail. ProcessVideo always
// returns a well-formed Result and never panics to its caller.
package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/policy"
	"github.com/ai-teammate/mytube/moments/internal/probe"
	"github.com/ai-teammate/mytube/moments/internal/thumbnail"
	"github.com/ai-teammate/mytube/moments/internal/transcoder"
	"github.com/ai-teammate/mytube/moments/internal/transform"
)

// fallbackError is reported when a failure carries no message of its own.
const fallbackError = "video processing failed"

// Outcomes passed to Observer.Processed. The failure outcomes double as
// Result.ErrorKind.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation_error"
	OutcomeError      = "error"
)

// Invoker runs one external tool command; *transcoder.Runner implements it.
type Invoker interface {
	Invoke(ctx context.Context, cmd transcoder.Command, input []byte, inputExt string) ([]byte, error)
}

// Observer receives pipeline events, typically to record metrics.
type Observer interface {
	ProbeFallback()
	StageFallback(stage string)
	Retried()
	Processed(outcome string, elapsed time.Duration)
}

// FileMetadata describes the uploaded file.
type FileMetadata struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Request is one video to process.
type Request struct {
	ContentID string       `json:"contentId"`
	OwnerID   string       `json:"ownerId"`
	Data      []byte       `json:"-"`
	Metadata  FileMetadata `json:"metadata"`
}

// Result is the outcome of ProcessVideo. On failure every nested value is
// its zero value with non-nil empty buffers, and Error is set.
type Result struct {
	Success          bool                  `json:"success"`
	ContentID        string                `json:"contentId"`
	Thumbnail        media.Thumbnail       `json:"thumbnail"`
	VideoMetadata    media.Metadata        `json:"videoMetadata"`
	ProcessedVideo   media.TransformResult `json:"processedVideo"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
	Error            string                `json:"error,omitempty"`
	ErrorKind        string                `json:"errorKind,omitempty"`
}

// Retryable reports whether running the same request again could succeed.
func (r Result) Retryable() bool {
	return !r.Success && r.ErrorKind != OutcomeValidation
}

// Processor is safe for concurrent use.
type Processor struct {
	policy   policy.Policy
	prober   *probe.Prober
	pipeline *transform.Pipeline
	thumbs   *thumbnail.Extractor
	log      hclog.Logger
	obs      Observer
}

// New builds a Processor for pol. The policy is validated once here and
// never changes afterwards. logger and obs may be nil.
func New(inv Invoker, pol policy.Policy, logger hclog.Logger, obs Observer) (*Processor, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	pol = pol.Clone()
	pipeline, err := transform.New(inv, pol, logger)
	if err != nil {
		return nil, err
	}
	p := &Processor{
		policy:   pol,
		prober:   probe.NewProber(inv, pol.Processing.TargetResolution, logger),
		pipeline: pipeline,
		thumbs:   thumbnail.NewExtractor(inv, logger),
		log:      logger.Named("processor"),
		obs:      obs,
	}
	if obs != nil {
		p.prober.WithObserver(obs)
		p.pipeline.WithObserver(obs)
	}
	return p, nil
}

// Policy returns the policy the processor was built with.
func (p *Processor) Policy() policy.Policy {
	return p.policy.Clone()
}

// ProcessVideo runs req through the pipeline.
func (p *Processor) ProcessVideo(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	log := p.log.With("content_id", req.ContentID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing video", "panic", r, "stack", string(debug.Stack()))
			res = failure(req, start, fmt.Errorf("unexpected panic: %v", r))
		}
		p.finish(log, res, start)
	}()

	out, err := p.process(ctx, req, log)
	if err != nil {
		return failure(req, start, err)
	}
	out.ProcessingTimeMs = elapsedMs(start)
	return out
}

func (p *Processor) process(ctx context.Context, req Request, log hclog.Logger) (Result, error) {
	format, err := p.validateRequest(req)
	if err != nil {
		return Result{}, err
	}

	original, err := p.prober.ProbeExt(ctx, req.Data, policy.ExtForFormat(format))
	if err != nil {
		return Result{}, fmt.Errorf("probe: %w", err)
	}
	if err := p.validateMetadata(original); err != nil {
		return Result{}, err
	}

	tr, err := p.transform(ctx, req, original, log)
	if err != nil {
		return Result{}, err
	}

	final := original
	if tr.WasProcessed {
		final, err = p.prober.Probe(ctx, tr.OutputBytes)
		if err != nil {
			return Result{}, fmt.Errorf("re-probe: %w", err)
		}
		if final.Estimated {
			final = carryOver(original, final, tr)
		}
	}
	final = final.Canonical()

	// Every stage that ran produced mp4; otherwise the bytes are still in
	// the source container.
	container := format
	if tr.WasProcessed {
		container = media.FormatMP4
	}
	opts := thumbnail.OptionsFromPolicy(p.policy.Thumbnail)
	opts.InputExt = policy.ExtForFormat(container)
	thumb := p.thumbs.Extract(ctx, tr.OutputBytes, opts)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	return Result{
		Success:        true,
		ContentID:      req.ContentID,
		Thumbnail:      thumb,
		VideoMetadata:  final,
		ProcessedVideo: tr,
	}, nil
}

// carryOver rebuilds the output metadata when the re-probe fell back to the
// estimate. The stages never change duration, frame rate or audio, so real
// measurements from the original probe are kept; only the frame size, byte
// size and bitrate follow the output.
func carryOver(original, estimate media.Metadata, tr media.TransformResult) media.Metadata {
	m := estimate
	if !original.Estimated {
		m = original
		m.SizeBytes = int64(len(tr.OutputBytes))
		if m.DurationSeconds > 0 {
			m.BitrateBps = int64(math.Round(float64(m.SizeBytes) * 8 / m.DurationSeconds))
		}
	}
	if tr.OutputResolution != nil {
		m.Width = tr.OutputResolution.Width
		m.Height = tr.OutputResolution.Height
	}
	return m
}

// transform runs the pipeline, re-running it while a stage fell back and
// retries remain. The last attempt's result is kept.
func (p *Processor) transform(ctx context.Context, req Request, meta media.Metadata, log hclog.Logger) (media.TransformResult, error) {
	attempts := p.policy.Processing.RetryAttempts
	for attempt := 0; ; attempt++ {
		tr, err := p.pipeline.Transform(ctx, req.Data, meta, req.Metadata.MIMEType)
		if err != nil {
			return media.TransformResult{}, fmt.Errorf("transform: %w", err)
		}
		if !tr.Degraded() || attempt >= attempts {
			for _, f := range tr.Failures {
				log.Warn("stage fell back to pass-through", "stage", f.Stage, "error", f.Error)
			}
			return tr, nil
		}
		log.Info("retrying transform", "attempt", attempt+1, "of", attempts, "failed_stages", len(tr.Failures))
		if p.obs != nil {
			p.obs.Retried()
		}
	}
}

func (p *Processor) finish(log hclog.Logger, res Result, start time.Time) {
	elapsed := time.Since(start)
	outcome := OutcomeSuccess
	if !res.Success {
		outcome = res.ErrorKind
		log.Info("video processing failed", "outcome", outcome, "error", res.Error, "elapsed_ms", res.ProcessingTimeMs)
	} else {
		log.Info("video processed",
			"elapsed_ms", res.ProcessingTimeMs,
			"width", res.VideoMetadata.Width,
			"height", res.VideoMetadata.Height,
			"was_processed", res.ProcessedVideo.WasProcessed,
			"thumbnail_bytes", len(res.Thumbnail.Data),
		)
	}
	if p.obs != nil {
		p.obs.Processed(outcome, elapsed)
	}
}

// failure builds the canonical zero-value failure result.
func failure(req Request, start time.Time, err error) Result {
	msg := fallbackError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	kind := OutcomeError
	if IsValidation(err) {
		kind = OutcomeValidation
	}
	return Result{
		Success:          false,
		ContentID:        req.ContentID,
		Thumbnail:        media.Thumbnail{Data: []byte{}},
		VideoMetadata:    media.Metadata{},
		ProcessedVideo:   media.TransformResult{OutputBytes: []byte{}},
		ProcessingTimeMs: elapsedMs(start),
		Error:            msg,
		ErrorKind:        kind,
	}
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
