// Package probe extracts video metadata with ffprobe, falling back to a
// size-based estimate when the tool fails or its output is unusable.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/ai-teammate/mytube/moments/internal/geometry"
	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/transcoder"
)

// DefaultFPS is used when the stream frame rate is missing or malformed.
const DefaultFPS = 30.0

// Invoker runs one external tool command; *transcoder.Runner implements it.
type Invoker interface {
	Invoke(ctx context.Context, cmd transcoder.Command, input []byte, inputExt string) ([]byte, error)
}

// FallbackObserver is notified whenever the estimate replaces real output.
type FallbackObserver interface {
	ProbeFallback()
}

// Prober reads metadata from raw video bytes.
type Prober struct {
	inv      Invoker
	target   geometry.Size
	log      hclog.Logger
	observer FallbackObserver
}

// NewProber returns a Prober. target is the canonical output resolution;
// estimates keep its aspect ratio.
func NewProber(inv Invoker, target geometry.Size, logger hclog.Logger) *Prober {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Prober{inv: inv, target: target, log: logger.Named("probe")}
}

// WithObserver sets the fallback observer and returns p.
func (p *Prober) WithObserver(o FallbackObserver) *Prober {
	p.observer = o
	return p
}

// Probe returns fully populated metadata for data. Format and codec are
// always the canonical mp4/h264 pair. Probe only returns an error when ctx
// is done; every other problem yields the estimate.
func (p *Prober) Probe(ctx context.Context, data []byte) (media.Metadata, error) {
	return p.ProbeExt(ctx, data, ".mp4")
}

// ProbeExt is Probe with an explicit temp file extension, which helps
// ffprobe pick a demuxer for non-mp4 input.
func (p *Prober) ProbeExt(ctx context.Context, data []byte, ext string) (media.Metadata, error) {
	meta, err := p.inspect(ctx, data, ext)
	if err == nil {
		return meta, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return media.Metadata{}, ctxErr
	}
	p.log.Warn("probe failed, using estimate", "size_bytes", len(data), "error", err)
	if p.observer != nil {
		p.observer.ProbeFallback()
	}
	return Estimate(int64(len(data)), p.target), nil
}

var inspectCommand = transcoder.Command{
	Op:   "probe",
	Tool: transcoder.FFprobe,
	Args: func(in, _ string) []string {
		return []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", in}
	},
}

func (p *Prober) inspect(ctx context.Context, data []byte, ext string) (media.Metadata, error) {
	out, err := p.inv.Invoke(ctx, inspectCommand, data, ext)
	if err != nil {
		return media.Metadata{}, err
	}
	return Parse(out, int64(len(data)))
}

// ffprobe -print_format json output, restricted to the fields we read.
type output struct {
	Streams []stream `json:"streams"`
	Format  format   `json:"format"`
}

type stream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
}

type format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

var errNoVideo = errors.New("no usable video stream")

// Parse converts ffprobe JSON into metadata. sizeBytes is the size of the
// probed data. It fails when there is no video stream with positive
// dimensions or no positive duration.
func Parse(raw []byte, sizeBytes int64) (media.Metadata, error) {
	var out output
	if err := json.Unmarshal(raw, &out); err != nil {
		return media.Metadata{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var video, audio *stream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch {
		case s.CodecType == "video" && video == nil:
			video = s
		case s.CodecType == "audio" && audio == nil:
			audio = s
		}
	}
	if video == nil || video.Width <= 0 || video.Height <= 0 {
		return media.Metadata{}, errNoVideo
	}

	duration := parseFloat(out.Format.Duration)
	if duration <= 0 {
		duration = parseFloat(video.Duration)
	}
	if duration <= 0 {
		return media.Metadata{}, fmt.Errorf("%w: missing duration", errNoVideo)
	}

	bitrate := parseInt(out.Format.BitRate)
	if bitrate <= 0 {
		bitrate = parseInt(video.BitRate)
	}
	if bitrate <= 0 {
		bitrate = int64(math.Round(float64(sizeBytes) * 8 / duration))
	}

	rate := video.RFrameRate
	if rate == "" || rate == "0/0" {
		rate = video.AvgFrameRate
	}

	return media.Metadata{
		DurationSeconds: duration,
		Width:           video.Width,
		Height:          video.Height,
		Format:          media.FormatMP4,
		Codec:           media.CodecH264,
		HasAudio:        audio != nil,
		SizeBytes:       sizeBytes,
		BitrateBps:      bitrate,
		FPS:             ParseRate(rate),
	}, nil
}

// ParseRate parses a frame rate written as "N/D" or as a plain number.
// Anything malformed, non-finite or non-positive yields DefaultFPS.
func ParseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultFPS
	}
	num, den, isRatio := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return DefaultFPS
	}
	v := n
	if isRatio {
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return DefaultFPS
		}
		v = n / d
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return DefaultFPS
	}
	return v
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
