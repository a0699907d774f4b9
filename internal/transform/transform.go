// Package transform normalizes video bytes: an optional geometry stage (crop
// to the target box, or compress oversized input) followed by an optional
// container conversion to mp4. Each stage falls back to passing its input
// through when the external tool fails.
package transform

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/ai-teammate/mytube/moments/internal/geometry"
	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/policy"
	"github.com/ai-teammate/mytube/moments/internal/transcoder"
)

// Stage names, as recorded in media.StageFailure.
const (
	StageCrop     = "crop"
	StageCompress = "compress"
	StageConvert  = "convert"
)

// Invoker runs one external tool command; *transcoder.Runner implements it.
type Invoker interface {
	Invoke(ctx context.Context, cmd transcoder.Command, input []byte, inputExt string) ([]byte, error)
}

// StageObserver is notified whenever a stage falls back to pass-through.
type StageObserver interface {
	StageFallback(stage string)
}

// Pipeline applies the transform stages selected by its policy.
type Pipeline struct {
	inv      Invoker
	cfg      policy.Processing
	log      hclog.Logger
	observer StageObserver
}

// New returns a Pipeline for p. It rejects an invalid policy with an error
// wrapping policy.ErrInvalidPolicy.
func New(inv Invoker, p policy.Policy, logger hclog.Logger) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Pipeline{inv: inv, cfg: p.Processing, log: logger.Named("transform")}, nil
}

// WithObserver sets the fallback observer and returns p.
func (p *Pipeline) WithObserver(o StageObserver) *Pipeline {
	p.observer = o
	return p
}

// plan is one geometry stage decision.
type plan struct {
	stage string
	size  geometry.Size
}

// Plan reports which geometry stage would run for a video of size original,
// and the size it would produce. An empty stage means none.
func (p *Pipeline) Plan(original geometry.Size) (stage string, size geometry.Size) {
	pl := p.plan(original)
	if pl == nil {
		return "", geometry.Size{}
	}
	return pl.stage, pl.size
}

func (p *Pipeline) plan(original geometry.Size) *plan {
	if !p.cfg.AutoCompress || !original.Valid() {
		return nil
	}
	target := p.cfg.TargetResolution
	switch p.cfg.Mode {
	case policy.ModeNormalize:
		if original != target {
			return &plan{stage: StageCrop, size: target}
		}
	case policy.ModeThreshold:
		if original.Exceeds(target) {
			return &plan{stage: StageCompress, size: geometry.Even(geometry.Fit(original, target))}
		}
	}
	return nil
}

// Transform runs the enabled stages over data. meta describes data and
// mimeType names its source container. A stage that fails with a
// transcoder.Failure is recorded in the result and skipped; any other error
// aborts the run. When no stage changed the bytes, OutputBytes is data
// itself.
func (p *Pipeline) Transform(ctx context.Context, data []byte, meta media.Metadata, mimeType string) (media.TransformResult, error) {
	res := media.TransformResult{OutputBytes: data}

	sourceFormat := policy.FormatFromMIME(mimeType)
	if sourceFormat == "" {
		sourceFormat = media.FormatMP4
	}
	current := data
	currentFormat := sourceFormat

	original := meta.Size()
	if pl := p.plan(original); pl != nil {
		out, err := p.run(ctx, geometryCommand(pl, p.cfg), current, currentFormat, &res)
		if err != nil {
			return media.TransformResult{}, err
		}
		if out != nil {
			current = out
			res.WasProcessed = true
			res.WasCropped = pl.stage == StageCrop
			res.WasCompressed = pl.stage == StageCompress
			res.OriginalResolution = &original
			size := pl.size
			res.OutputResolution = &size
			if currentFormat != media.FormatMP4 {
				res.WasConverted = true
				res.OriginalFormat = sourceFormat
			}
			currentFormat = media.FormatMP4
		}
	}

	if p.cfg.AutoConvertToMP4 && currentFormat != media.FormatMP4 {
		out, err := p.run(ctx, convertCommand(p.cfg), current, currentFormat, &res)
		if err != nil {
			return media.TransformResult{}, err
		}
		if out != nil {
			current = out
			res.WasProcessed = true
			res.WasConverted = true
			res.OriginalFormat = sourceFormat
		}
	}

	if res.WasProcessed {
		res.OutputBytes = current
	}
	return res, nil
}

// run invokes one stage. It returns nil bytes and a nil error when the
// stage failed and was recorded as a pass-through.
func (p *Pipeline) run(ctx context.Context, cmd transcoder.Command, data []byte, format string, res *media.TransformResult) ([]byte, error) {
	out, err := p.inv.Invoke(ctx, cmd, data, policy.ExtForFormat(format))
	if err == nil {
		p.log.Debug("stage applied", "stage", cmd.Op, "in_bytes", len(data), "out_bytes", len(out))
		return out, nil
	}
	if !transcoder.IsFailure(err) {
		return nil, fmt.Errorf("%s stage: %w", cmd.Op, err)
	}
	p.log.Warn("stage failed, passing input through", "stage", cmd.Op, "error", err)
	res.Failures = append(res.Failures, media.StageFailure{Stage: cmd.Op, Error: err.Error()})
	if p.observer != nil {
		p.observer.StageFallback(cmd.Op)
	}
	return nil, nil
}

func geometryCommand(pl *plan, cfg policy.Processing) transcoder.Command {
	w, h := pl.size.Width, pl.size.Height
	filter := fmt.Sprintf("scale=%d:%d,setsar=1", w, h)
	crf := cfg.CompressQuality
	if pl.stage == StageCrop {
		filter = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", w, h, w, h)
		crf = cfg.CropQuality
	}
	return transcoder.Command{
		Op:        pl.stage,
		Tool:      transcoder.FFmpeg,
		OutputExt: ".mp4",
		Args: func(in, out string) []string {
			return encodeArgs(in, out, filter, crf, cfg)
		},
	}
}

func convertCommand(cfg policy.Processing) transcoder.Command {
	return transcoder.Command{
		Op:        StageConvert,
		Tool:      transcoder.FFmpeg,
		OutputExt: ".mp4",
		Args: func(in, out string) []string {
			return encodeArgs(in, out, "scale=trunc(iw/2)*2:trunc(ih/2)*2", cfg.ConvertQuality, cfg)
		},
	}
}

// encodeArgs builds an H.264/AAC mp4 encode with the policy knobs.
func encodeArgs(in, out, filter string, crf int, cfg policy.Processing) []string {
	maxrate := cfg.MaxBitrateKbps
	return []string{
		"-y",
		"-i", in,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(crf),
		"-maxrate", strconv.Itoa(maxrate) + "k",
		"-bufsize", strconv.Itoa(2*maxrate) + "k",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", strconv.Itoa(cfg.AudioBitrateKbps) + "k",
		"-movflags", "+faststart",
		"-f", "mp4",
		out,
	}
}
