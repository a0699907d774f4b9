package processor

import (
	"errors"
	"fmt"

	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/policy"
)

// ErrValidation is wrapped by every error that rejects a request against
// the validation policy.
var ErrValidation = errors.New("validation failed")

// validateRequest checks size and format before any tool runs and returns
// the container format derived from the MIME type.
func (p *Processor) validateRequest(req Request) (string, error) {
	v := p.policy.Validation
	size := int64(len(req.Data))
	if size == 0 {
		return "", fmt.Errorf("%w: video data is empty", ErrValidation)
	}
	if size > v.MaxFileSize {
		return "", fmt.Errorf("%w: video file too large: %d bytes exceeds maximum of %d bytes", ErrValidation, size, v.MaxFileSize)
	}
	format := policy.FormatFromMIME(req.Metadata.MIMEType)
	if !v.Allows(format) {
		return "", fmt.Errorf("%w: unsupported video format %q (mime type %q), allowed: %v",
			ErrValidation, format, req.Metadata.MIMEType, v.AllowedFormats)
	}
	return format, nil
}

// validateMetadata applies the duration and resolution bounds. Estimated
// metadata carries no real measurements, so it is not checked.
func (p *Processor) validateMetadata(m media.Metadata) error {
	if m.Estimated {
		return nil
	}
	v := p.policy.Validation
	if m.DurationSeconds < v.MinDuration {
		return fmt.Errorf("%w: video too short: %.2fs is below minimum of %.2fs", ErrValidation, m.DurationSeconds, v.MinDuration)
	}
	if m.DurationSeconds > v.MaxDuration {
		return fmt.Errorf("%w: video too long: %.2fs exceeds maximum of %.2fs", ErrValidation, m.DurationSeconds, v.MaxDuration)
	}
	size := m.Size()
	if size.Width < v.MinResolution.Width || size.Height < v.MinResolution.Height {
		return fmt.Errorf("%w: resolution %s is below minimum of %s", ErrValidation, size, v.MinResolution)
	}
	if size.Exceeds(v.MaxResolution) {
		return fmt.Errorf("%w: resolution %s exceeds maximum of %s", ErrValidation, size, v.MaxResolution)
	}
	return nil
}
