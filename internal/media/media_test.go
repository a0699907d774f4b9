package media_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ai-teammate/mytube/moments/internal/geometry"
	"github.com/ai-teammate/mytube/moments/internal/media"
)

func TestMetadata_Canonical(t *testing.T) {
	m := media.Metadata{Width: 640, Height: 480, Format: "mov", Codec: "prores"}
	got := m.Canonical()
	assert.Equal(t, media.FormatMP4, got.Format)
	assert.Equal(t, media.CodecH264, got.Codec)
	assert.Equal(t, "mov", m.Format, "receiver must not change")
	assert.Equal(t, geometry.Size{Width: 640, Height: 480}, got.Size())
}

func TestThumbnail_Empty(t *testing.T) {
	assert.True(t, media.Thumbnail{Data: []byte{}, Width: 360, Height: 558}.Empty())
	assert.False(t, media.Thumbnail{Data: []byte{1}}.Empty())
}

func TestTransformResult_Degraded(t *testing.T) {
	assert.False(t, media.TransformResult{}.Degraded())
	assert.True(t, media.TransformResult{Failures: []media.StageFailure{{Stage: "crop", Error: "boom"}}}.Degraded())
}
