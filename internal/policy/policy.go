// Package policy defines the read-only rules that drive the video pipeline:
// thumbnail shape, validation bounds and processing knobs. A Policy is
// resolved once when a pipeline is constructed and never changes afterwards.
package policy

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/ai-teammate/mytube/moments/internal/geometry"
)

// ErrInvalidPolicy is returned when a policy value is out of range.
var ErrInvalidPolicy = errors.New("invalid policy")

// Mode selects when the geometry stage of the transform pipeline runs.
type Mode string

const (
	// ModeNormalize crops every video to exactly the target resolution.
	ModeNormalize Mode = "normalize"
	// ModeThreshold compresses only videos larger than the target resolution,
	// keeping their aspect ratio.
	ModeThreshold Mode = "threshold"
	// ModeDisabled never touches geometry.
	ModeDisabled Mode = "disabled"
)

const mib = 1024 * 1024

// Policy is the full set of pipeline rules.
type Policy struct {
	Thumbnail  Thumbnail
	Validation Validation
	Processing Processing
}

// Thumbnail controls the still image extracted from every video.
type Thumbnail struct {
	Width        int
	Height       int
	Quality      int // 1-100
	Format       string
	TimePosition float64 // seconds
}

// Size returns the thumbnail box.
func (t Thumbnail) Size() geometry.Size {
	return geometry.Size{Width: t.Width, Height: t.Height}
}

// Validation bounds what the pipeline accepts.
type Validation struct {
	MaxFileSize    int64
	MinDuration    float64
	MaxDuration    float64
	AllowedFormats []string
	MinResolution  geometry.Size
	MaxResolution  geometry.Size
}

// Allows reports whether format is in the allowed list, ignoring case.
func (v Validation) Allows(format string) bool {
	return slices.ContainsFunc(v.AllowedFormats, func(f string) bool {
		return strings.EqualFold(f, format)
	})
}

// Processing holds the transform knobs.
type Processing struct {
	Timeout          time.Duration
	RetryAttempts    int
	AutoCompress     bool
	AutoConvertToMP4 bool
	TargetResolution geometry.Size
	Mode             Mode
	CropQuality      int // CRF used when cropping to the target box
	CompressQuality  int // CRF used when shrinking oversized videos
	ConvertQuality   int // CRF used when only the container changes
	Preset           string
	MaxBitrateKbps   int
	AudioBitrateKbps int
}

// Default returns the documented defaults.
func Default() Policy {
	return Policy{
		Thumbnail: Thumbnail{
			Width:        360,
			Height:       558,
			Quality:      85,
			Format:       "jpeg",
			TimePosition: 0,
		},
		Validation: Validation{
			MaxFileSize:    500 * mib,
			MinDuration:    1,
			MaxDuration:    60,
			AllowedFormats: []string{"mp4", "mov", "avi", "webm"},
			MinResolution:  geometry.Size{Width: 144, Height: 144},
			MaxResolution:  geometry.Size{Width: 4096, Height: 4096},
		},
		Processing: Processing{
			Timeout:          120 * time.Second,
			RetryAttempts:    2,
			AutoCompress:     true,
			AutoConvertToMP4: true,
			TargetResolution: geometry.Size{Width: 1080, Height: 1674},
			Mode:             ModeNormalize,
			CropQuality:      23,
			CompressQuality:  28,
			ConvertQuality:   23,
			Preset:           "fast",
			MaxBitrateKbps:   5000,
			AudioBitrateKbps: 128,
		},
	}
}

// Clone returns a deep copy of p.
func (p Policy) Clone() Policy {
	p.Validation.AllowedFormats = slices.Clone(p.Validation.AllowedFormats)
	return p
}
