package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ai-teammate/mytube/moments/internal/geometry"
)

// Overrides is a partial policy. Nil fields keep the default value, so a
// file that only sets processing.timeout leaves every other knob alone.
type Overrides struct {
	Thumbnail  ThumbnailOverrides  `yaml:"thumbnail"`
	Validation ValidationOverrides `yaml:"validation"`
	Processing ProcessingOverrides `yaml:"processing"`
}

type ThumbnailOverrides struct {
	Width        *int     `yaml:"width"`
	Height       *int     `yaml:"height"`
	Quality      *int     `yaml:"quality"`
	Format       *string  `yaml:"format"`
	TimePosition *float64 `yaml:"timePosition"`
}

type ValidationOverrides struct {
	MaxFileSize    *int64         `yaml:"maxFileSize"`
	MinDuration    *float64       `yaml:"minDuration"`
	MaxDuration    *float64       `yaml:"maxDuration"`
	AllowedFormats []string       `yaml:"allowedFormats"`
	MinResolution  *geometry.Size `yaml:"minResolution"`
	MaxResolution  *geometry.Size `yaml:"maxResolution"`
}

type ProcessingOverrides struct {
	Timeout          *time.Duration `yaml:"timeout"`
	RetryAttempts    *int           `yaml:"retryAttempts"`
	AutoCompress     *bool          `yaml:"autoCompress"`
	AutoConvertToMP4 *bool          `yaml:"autoConvertToMp4"`
	TargetResolution *geometry.Size `yaml:"targetResolution"`
	Mode             *Mode          `yaml:"mode"`
	CropQuality      *int           `yaml:"cropQuality"`
	CompressQuality  *int           `yaml:"compressQuality"`
	ConvertQuality   *int           `yaml:"convertQuality"`
	Preset           *string        `yaml:"preset"`
	MaxBitrateKbps   *int           `yaml:"maxBitrateKbps"`
	AudioBitrateKbps *int           `yaml:"audioBitrateKbps"`
}

// Resolve merges o over the defaults field by field.
func Resolve(o Overrides) Policy {
	return Default().Apply(o)
}

// Apply returns a copy of p with every non-nil field of o applied.
func (p Policy) Apply(o Overrides) Policy {
	p = p.Clone()

	t := o.Thumbnail
	set(&p.Thumbnail.Width, t.Width)
	set(&p.Thumbnail.Height, t.Height)
	set(&p.Thumbnail.Quality, t.Quality)
	set(&p.Thumbnail.Format, t.Format)
	set(&p.Thumbnail.TimePosition, t.TimePosition)

	v := o.Validation
	set(&p.Validation.MaxFileSize, v.MaxFileSize)
	set(&p.Validation.MinDuration, v.MinDuration)
	set(&p.Validation.MaxDuration, v.MaxDuration)
	if v.AllowedFormats != nil {
		p.Validation.AllowedFormats = slices.Clone(v.AllowedFormats)
	}
	set(&p.Validation.MinResolution, v.MinResolution)
	set(&p.Validation.MaxResolution, v.MaxResolution)

	pr := o.Processing
	set(&p.Processing.Timeout, pr.Timeout)
	set(&p.Processing.RetryAttempts, pr.RetryAttempts)
	set(&p.Processing.AutoCompress, pr.AutoCompress)
	set(&p.Processing.AutoConvertToMP4, pr.AutoConvertToMP4)
	set(&p.Processing.TargetResolution, pr.TargetResolution)
	set(&p.Processing.Mode, pr.Mode)
	set(&p.Processing.CropQuality, pr.CropQuality)
	set(&p.Processing.CompressQuality, pr.CompressQuality)
	set(&p.Processing.ConvertQuality, pr.ConvertQuality)
	set(&p.Processing.Preset, pr.Preset)
	set(&p.Processing.MaxBitrateKbps, pr.MaxBitrateKbps)
	set(&p.Processing.AudioBitrateKbps, pr.AudioBitrateKbps)
	return p
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Parse decodes YAML overrides. Unknown keys are rejected.
func Parse(data []byte) (Overrides, error) {
	var o Overrides
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Overrides{}, fmt.Errorf("parse policy: %w", err)
	}
	return o, nil
}

// Load resolves the policy from an optional YAML overrides file and the
// MOMENTS_* environment variables, then validates it. An empty path means
// no file.
func Load(path string) (Policy, error) {
	var o Overrides
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Policy{}, fmt.Errorf("read policy file: %w", err)
		}
		if o, err = Parse(raw); err != nil {
			return Policy{}, err
		}
	}
	p, err := Resolve(o).ApplyEnv()
	if err != nil {
		return Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// ApplyEnv returns a copy of p with the MOMENTS_* environment overrides
// applied. Malformed values are reported as ErrInvalidPolicy.
func (p Policy) ApplyEnv() (Policy, error) {
	p = p.Clone()
	var errs []error

	if raw := os.Getenv("MOMENTS_MAX_FILE_SIZE"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, envError("MOMENTS_MAX_FILE_SIZE", raw))
		} else {
			p.Validation.MaxFileSize = v
		}
	}
	if raw := os.Getenv("MOMENTS_PROCESSING_TIMEOUT"); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, envError("MOMENTS_PROCESSING_TIMEOUT", raw))
		} else {
			p.Processing.Timeout = v
		}
	}
	if raw := os.Getenv("MOMENTS_RETRY_ATTEMPTS"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, envError("MOMENTS_RETRY_ATTEMPTS", raw))
		} else {
			p.Processing.RetryAttempts = v
		}
	}
	if raw := os.Getenv("MOMENTS_PROCESSING_MODE"); raw != "" {
		p.Processing.Mode = Mode(strings.ToLower(raw))
	}
	if raw := os.Getenv("MOMENTS_TARGET_RESOLUTION"); raw != "" {
		size, err := ParseSize(raw)
		if err != nil {
			errs = append(errs, envError("MOMENTS_TARGET_RESOLUTION", raw))
		} else {
			p.Processing.TargetResolution = size
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// ParseSize parses "WxH", e.g. "1080x1674".
func ParseSize(s string) (geometry.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return geometry.Size{}, fmt.Errorf("size %q: want WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("size %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("size %q: %w", s, err)
	}
	return geometry.Size{Width: width, Height: height}, nil
}

func envError(name, raw string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidPolicy, name, raw)
}
