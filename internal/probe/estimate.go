package probe

import (
	"math"

	"github.com/ai-teammate/mytube/moments/internal/geometry"
	"github.com/ai-teammate/mytube/moments/internal/media"
)

const mib = 1024 * 1024

// breakpoint maps files smaller than maxBytes to an estimated width and
// duration. The last entry catches everything.
type breakpoint struct {
	maxBytes int64
	width    int
	duration float64
}

var breakpoints = []breakpoint{
	{maxBytes: 2 * mib, width: 480, duration: 10},
	{maxBytes: 10 * mib, width: 720, duration: 20},
	{maxBytes: 50 * mib, width: 1080, duration: 30},
	{maxBytes: math.MaxInt64, width: 1080, duration: 60},
}

// Estimate derives deterministic metadata from the byte size alone. The
// height follows the aspect ratio of target.
func Estimate(sizeBytes int64, target geometry.Size) media.Metadata {
	bp := breakpoints[len(breakpoints)-1]
	for _, b := range breakpoints {
		if sizeBytes < b.maxBytes {
			bp = b
			break
		}
	}

	height := geometry.HeightFor(bp.width, target)
	if height <= 0 {
		height = bp.width
	}

	return media.Metadata{
		DurationSeconds: bp.duration,
		Width:           bp.width,
		Height:          height,
		Format:          media.FormatMP4,
		Codec:           media.CodecH264,
		HasAudio:        true,
		SizeBytes:       sizeBytes,
		BitrateBps:      int64(math.Round(float64(sizeBytes) * 8 / bp.duration)),
		FPS:             DefaultFPS,
		Estimated:       true,
	}
}
