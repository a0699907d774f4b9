package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

var thumbnailFormats = []string{"jpeg", "jpg", "png", "webp"}

const maxBitrateKbps = 100000

// Validate checks every knob and reports all violations at once. The
// returned error wraps ErrInvalidPolicy.
func (p Policy) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s %s", ErrInvalidPolicy, field, fmt.Sprintf(format, args...)))
	}

	t := p.Thumbnail
	if t.Width <= 0 || t.Height <= 0 {
		bad("thumbnail.width/height", "must be positive, got %dx%d", t.Width, t.Height)
	}
	if t.Quality < 1 || t.Quality > 100 {
		bad("thumbnail.quality", "must be in [1,100], got %d", t.Quality)
	}
	if !slices.Contains(thumbnailFormats, strings.ToLower(t.Format)) {
		bad("thumbnail.format", "must be one of %v, got %q", thumbnailFormats, t.Format)
	}
	if t.TimePosition < 0 {
		bad("thumbnail.timePosition", "must not be negative, got %g", t.TimePosition)
	}

	v := p.Validation
	if v.MaxFileSize <= 0 {
		bad("validation.maxFileSize", "must be positive, got %d", v.MaxFileSize)
	}
	if v.MinDuration < 0 || v.MinDuration > v.MaxDuration {
		bad("validation.minDuration/maxDuration", "must satisfy 0 <= min <= max, got %g and %g", v.MinDuration, v.MaxDuration)
	}
	if len(v.AllowedFormats) == 0 {
		bad("validation.allowedFormats", "must not be empty")
	}
	if v.MinResolution.Width < 0 || v.MinResolution.Height < 0 {
		bad("validation.minResolution", "must not be negative, got %s", v.MinResolution)
	}
	if !v.MaxResolution.Valid() {
		bad("validation.maxResolution", "must be positive, got %s", v.MaxResolution)
	} else if v.MinResolution.Exceeds(v.MaxResolution) {
		bad("validation.minResolution", "%s exceeds maxResolution %s", v.MinResolution, v.MaxResolution)
	}

	pr := p.Processing
	if pr.Timeout <= 0 {
		bad("processing.timeout", "must be positive, got %s", pr.Timeout)
	}
	if pr.RetryAttempts < 0 || pr.RetryAttempts > 10 {
		bad("processing.retryAttempts", "must be in [0,10], got %d", pr.RetryAttempts)
	}
	if !pr.TargetResolution.Valid() {
		bad("processing.targetResolution", "must be positive, got %s", pr.TargetResolution)
	} else if pr.TargetResolution.Width%2 != 0 || pr.TargetResolution.Height%2 != 0 {
		bad("processing.targetResolution", "must have even dimensions for yuv420p, got %s", pr.TargetResolution)
	}
	switch pr.Mode {
	case ModeNormalize, ModeThreshold, ModeDisabled:
	default:
		bad("processing.mode", "must be one of normalize, threshold, disabled, got %q", pr.Mode)
	}
	if pr.CropQuality < 0 || pr.CropQuality > 51 {
		bad("processing.cropQuality", "must be in [0,51], got %d", pr.CropQuality)
	}
	if pr.CompressQuality < 0 || pr.CompressQuality > 51 {
		bad("processing.compressQuality", "must be in [0,51], got %d", pr.CompressQuality)
	}
	if pr.ConvertQuality < 0 || pr.ConvertQuality > 51 {
		bad("processing.convertQuality", "must be in [0,51], got %d", pr.ConvertQuality)
	}
	if !slices.Contains(presets, pr.Preset) {
		bad("processing.preset", "unknown preset %q", pr.Preset)
	}
	if pr.MaxBitrateKbps <= 0 || pr.MaxBitrateKbps > maxBitrateKbps {
		bad("processing.maxBitrateKbps", "must be in (0,%d], got %d", maxBitrateKbps, pr.MaxBitrateKbps)
	}
	if pr.AudioBitrateKbps <= 0 || pr.AudioBitrateKbps > maxBitrateKbps {
		bad("processing.audioBitrateKbps", "must be in (0,%d], got %d", maxBitrateKbps, pr.AudioBitrateKbps)
	}

	return errors.Join(errs...)
}
