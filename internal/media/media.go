// Package media holds the value types passed between the pipeline stages.
package media

import "github.com/ai-teammate/mytube/moments/internal/geometry"

// Canonical output container and codec.
const (
	FormatMP4 = "mp4"
	CodecH264 = "h264"
)

// Metadata describes a video as reported by the prober. Every field is set:
// either from real probe output or from the size-based estimate, in which
// case Estimated is true.
type Metadata struct {
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Format          string  `json:"format"`
	Codec           string  `json:"codec"`
	HasAudio        bool    `json:"hasAudio"`
	SizeBytes       int64   `json:"sizeBytes"`
	BitrateBps      int64   `json:"bitrateBps"`
	FPS             float64 `json:"fps"`
	Estimated       bool    `json:"estimated"`
}

// Size returns the frame size of the video.
func (m Metadata) Size() geometry.Size {
	return geometry.Size{Width: m.Width, Height: m.Height}
}

// Canonical returns a copy of m with the container and codec forced to the
// canonical output pair.
func (m Metadata) Canonical() Metadata {
	m.Format = FormatMP4
	m.Codec = CodecH264
	return m
}

// Thumbnail is a single still image. A zero-length Data means extraction
// failed; Width, Height and Format still carry the requested values.
type Thumbnail struct {
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Empty reports whether the thumbnail has no image data.
func (t Thumbnail) Empty() bool {
	return len(t.Data) == 0
}

// StageFailure records a transform stage that fell back to pass-through.
type StageFailure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// TransformResult tracks what the transform pipeline did to the bytes.
// When WasProcessed is false, OutputBytes is the input slice itself.
type TransformResult struct {
	OutputBytes        []byte         `json:"-"`
	WasProcessed       bool           `json:"wasProcessed"`
	WasCropped         bool           `json:"wasCropped"`
	WasCompressed      bool           `json:"wasCompressed"`
	WasConverted       bool           `json:"wasConverted"`
	OriginalResolution *geometry.Size `json:"originalResolution,omitempty"`
	OriginalFormat     string         `json:"originalFormat,omitempty"`
	OutputResolution   *geometry.Size `json:"outputResolution,omitempty"`
	Failures           []StageFailure `json:"failures,omitempty"`
}

// Degraded reports whether any stage fell back to pass-through.
func (r TransformResult) Degraded() bool {
	return len(r.Failures) > 0
}
