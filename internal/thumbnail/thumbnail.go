// Package thumbnail extracts a single still frame from a video and sizes it
// to an exact box.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-hclog"

	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/policy"
	"github.com/ai-teammate/mytube/moments/internal/transcoder"
)

// ffmpeg's -q:v scale for mjpeg: 2 is best, 31 worst.
const (
	qScaleMin = 2
	qScaleMax = 31
)

// Invoker runs one external tool command; *transcoder.Runner implements it.
type Invoker interface {
	Invoke(ctx context.Context, cmd transcoder.Command, input []byte, inputExt string) ([]byte, error)
}

// Options describes the thumbnail to produce.
type Options struct {
	Width        int
	Height       int
	Quality      int // 1-100
	Format       string
	TimePosition float64 // seconds from the start
	// InputExt is the extension of the video container, ".mp4" when empty.
	InputExt string
}

// OptionsFromPolicy converts the thumbnail policy into Options.
func OptionsFromPolicy(t policy.Thumbnail) Options {
	return Options{
		Width:        t.Width,
		Height:       t.Height,
		Quality:      t.Quality,
		Format:       t.Format,
		TimePosition: t.TimePosition,
	}
}

// Extractor produces thumbnails.
type Extractor struct {
	inv Invoker
	log hclog.Logger
}

// NewExtractor returns an Extractor.
func NewExtractor(inv Invoker, logger hclog.Logger) *Extractor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Extractor{inv: inv, log: logger.Named("thumbnail")}
}

// Extract grabs one frame at opts.TimePosition, scaled to cover the box and
// cropped to exactly opts.Width x opts.Height. On any failure it returns a
// thumbnail with empty Data and the requested size and format.
func (e *Extractor) Extract(ctx context.Context, video []byte, opts Options) media.Thumbnail {
	format := normalizeFormat(opts.Format)
	placeholder := media.Thumbnail{Data: []byte{}, Width: opts.Width, Height: opts.Height, Format: format}

	if opts.Width <= 0 || opts.Height <= 0 {
		e.log.Warn("invalid thumbnail size", "width", opts.Width, "height", opts.Height)
		return placeholder
	}

	inputExt := opts.InputExt
	if inputExt == "" {
		inputExt = ".mp4"
	}
	out, err := e.inv.Invoke(ctx, command(opts, format), video, inputExt)
	if err != nil {
		e.log.Warn("thumbnail extraction failed", "error", err)
		return placeholder
	}

	data, err := enforceBox(out, opts, format)
	if err != nil {
		e.log.Warn("thumbnail post-processing failed", "error", err)
		return placeholder
	}
	return media.Thumbnail{Data: data, Width: opts.Width, Height: opts.Height, Format: format}
}

func command(opts Options, format string) transcoder.Command {
	return transcoder.Command{
		Op:        "thumbnail",
		Tool:      transcoder.FFmpeg,
		OutputExt: extension(format),
		Args: func(in, out string) []string {
			return Args(in, out, opts, format)
		},
	}
}

// Args builds the ffmpeg arguments for a single-frame extraction.
func Args(in, out string, opts Options, format string) []string {
	box := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		opts.Width, opts.Height, opts.Width, opts.Height)
	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(max(opts.TimePosition, 0), 'f', -1, 64),
		"-i", in,
		"-frames:v", "1",
		"-vf", box,
	}
	switch format {
	case "jpeg":
		args = append(args, "-q:v", strconv.Itoa(QScale(opts.Quality)))
	case "webp":
		args = append(args, "-c:v", "libwebp", "-quality", strconv.Itoa(clampQuality(opts.Quality)))
	}
	return append(args, out)
}

// QScale maps a 1-100 quality to ffmpeg's inverted 2-31 -q:v scale.
func QScale(quality int) int {
	q := clampQuality(quality)
	scale := qScaleMax - int(float64(q-1)*float64(qScaleMax-qScaleMin)/99)
	return min(max(scale, qScaleMin), qScaleMax)
}

// enforceBox re-crops the frame when the tool's output is not exactly the
// requested size. Formats the image package cannot decode are returned as is.
func enforceBox(data []byte, opts Options, format string) ([]byte, error) {
	if format == "webp" {
		return data, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if b := img.Bounds(); b.Dx() == opts.Width && b.Dy() == opts.Height {
		return data, nil
	}
	fitted := imaging.Fill(img, opts.Width, opts.Height, imaging.Center, imaging.Lanczos)
	return encode(fitted, opts, format)
}

func encode(img image.Image, opts Options, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if format == "png" {
		err = imaging.Encode(&buf, img, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(clampQuality(opts.Quality)))
	}
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "jpg", "jpeg":
		return "jpeg"
	default:
		return f
	}
}

func extension(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}

// Extension returns the file extension for a thumbnail format.
func Extension(format string) string {
	return extension(normalizeFormat(format))
}

func clampQuality(q int) int {
	return min(max(q, 1), 100)
}
