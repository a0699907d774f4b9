package probe_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-teammate/mytube/moments/internal/geometry"
	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/probe"
	"github.com/ai-teammate/mytube/moments/internal/transcoder"
)

var target = geometry.Size{Width: 1080, Height: 1674}

type stubInvoker struct {
	out  []byte
	err  error
	cmds []transcoder.Command
	exts []string
}

func (s *stubInvoker) Invoke(_ context.Context, cmd transcoder.Command, _ []byte, ext string) ([]byte, error) {
	s.cmds = append(s.cmds, cmd)
	s.exts = append(s.exts, ext)
	return s.out, s.err
}

type countingObserver struct{ n int }

func (c *countingObserver) ProbeFallback() { c.n++ }

const probeJSON = `{
  "streams": [
    {"codec_type": "audio", "codec_name": "aac", "bit_rate": "128000"},
    {"codec_type": "video", "codec_name": "hevc", "width": 1920, "height": 1080,
     "r_frame_rate": "30000/1001", "duration": "12.5", "bit_rate": "4000000"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.512", "size": "6400000", "bit_rate": "4092000"}
}`

func TestProbe_ParsesFFprobeOutput(t *testing.T) {
	inv := &stubInvoker{out: []byte(probeJSON)}
	p := probe.NewProber(inv, target, nil)

	meta, err := p.Probe(context.Background(), []byte("video"))
	require.NoError(t, err)

	assert.InDelta(t, 12.512, meta.DurationSeconds, 1e-9)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
	assert.Equal(t, media.FormatMP4, meta.Format)
	assert.Equal(t, media.CodecH264, meta.Codec, "codec is always canonical")
	assert.True(t, meta.HasAudio)
	assert.Equal(t, int64(5), meta.SizeBytes)
	assert.Equal(t, int64(4092000), meta.BitrateBps)
	assert.InDelta(t, 29.97, meta.FPS, 0.01)
	assert.False(t, meta.Estimated)

	require.Len(t, inv.cmds, 1)
	assert.Equal(t, transcoder.FFprobe, inv.cmds[0].Tool)
	args := strings.Join(inv.cmds[0].Args("in.mp4", ""), " ")
	assert.Contains(t, args, "-print_format json")
	assert.Contains(t, args, "-show_streams")
	assert.Empty(t, inv.cmds[0].OutputExt, "probe reads stdout")
}

func TestProbeExt_PassesExtension(t *testing.T) {
	inv := &stubInvoker{out: []byte(probeJSON)}
	p := probe.NewProber(inv, target, nil)

	_, err := p.ProbeExt(context.Background(), []byte("video"), ".mov")
	require.NoError(t, err)
	assert.Equal(t, []string{".mov"}, inv.exts)
}

func TestProbe_ToolFailure_FallsBackToEstimate(t *testing.T) {
	inv := &stubInvoker{err: &transcoder.Failure{Op: "probe", Tool: transcoder.FFprobe, Err: transcoder.ErrToolNotFound}}
	obs := &countingObserver{}
	p := probe.NewProber(inv, target, nil).WithObserver(obs)

	data := make([]byte, 1024)
	meta, err := p.Probe(context.Background(), data)
	require.NoError(t, err)

	assert.True(t, meta.Estimated)
	assert.Equal(t, 480, meta.Width)
	assert.Equal(t, 744, meta.Height)
	assert.Equal(t, 10.0, meta.DurationSeconds)
	assert.Equal(t, media.FormatMP4, meta.Format)
	assert.Equal(t, media.CodecH264, meta.Codec)
	assert.True(t, meta.HasAudio)
	assert.Equal(t, int64(1024), meta.SizeBytes)
	assert.Equal(t, int64(1024*8/10), meta.BitrateBps)
	assert.Equal(t, probe.DefaultFPS, meta.FPS)
	assert.Equal(t, 1, obs.n)
}

func TestProbe_MalformedJSON_FallsBack(t *testing.T) {
	p := probe.NewProber(&stubInvoker{out: []byte("not json")}, target, nil)
	meta, err := p.Probe(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.True(t, meta.Estimated)
}

func TestProbe_NoVideoStream_FallsBack(t *testing.T) {
	out := `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`
	p := probe.NewProber(&stubInvoker{out: []byte(out)}, target, nil)
	meta, err := p.Probe(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.True(t, meta.Estimated)
}

func TestProbe_MissingDuration_FallsBack(t *testing.T) {
	out := `{"streams":[{"codec_type":"video","width":640,"height":480}],"format":{}}`
	p := probe.NewProber(&stubInvoker{out: []byte(out)}, target, nil)
	meta, err := p.Probe(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.True(t, meta.Estimated)
}

func TestProbe_CancelledContext_ReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := probe.NewProber(&stubInvoker{err: context.Canceled}, target, nil)
	_, err := p.Probe(ctx, []byte("x"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParse_FallbacksWithinRealOutput(t *testing.T) {
	out := `{"streams":[{"codec_type":"video","width":720,"height":1280,"r_frame_rate":"0/0","avg_frame_rate":"25/1","duration":"4"}],"format":{}}`
	meta, err := probe.Parse([]byte(out), 1000)
	require.NoError(t, err)
	assert.Equal(t, 4.0, meta.DurationSeconds)
	assert.Equal(t, int64(2000), meta.BitrateBps, "bitrate back-computed from size")
	assert.Equal(t, 25.0, meta.FPS)
	assert.False(t, meta.HasAudio)
}

func TestEstimate_Table(t *testing.T) {
	tests := []struct {
		size     int64
		width    int
		duration float64
	}{
		{0, 480, 10},
		{2*1024*1024 - 1, 480, 10},
		{2 * 1024 * 1024, 720, 20},
		{10*1024*1024 - 1, 720, 20},
		{10 * 1024 * 1024, 1080, 30},
		{50 * 1024 * 1024, 1080, 60},
		{400 * 1024 * 1024, 1080, 60},
	}
	for _, tt := range tests {
		meta := probe.Estimate(tt.size, target)
		assert.Equal(t, tt.width, meta.Width, "size %d", tt.size)
		assert.Equal(t, tt.duration, meta.DurationSeconds, "size %d", tt.size)
		assert.Equal(t, int(math.Round(float64(tt.width)*1674/1080)), meta.Height, "size %d", tt.size)
		assert.True(t, meta.Estimated)
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	assert.Equal(t, probe.Estimate(12345678, target), probe.Estimate(12345678, target))
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997},
		{"25", 25},
		{"0/0", 30},
		{"abc", 30},
		{"1/0", 30},
		{"", 30},
		{"-24/1", 30},
		{"NaN", 30},
		{"24/abc", 30},
		{"process.exit()", 30},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, probe.ParseRate(tt.in), 1e-6, tt.in)
	}
}
