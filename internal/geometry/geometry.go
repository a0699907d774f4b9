// Package geometry computes target frame sizes for the video pipeline.
package geometry

import (
	"fmt"
	"math"
)

// Size is a frame size in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// String formats the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// AspectRatio returns width/height, or 0 for an invalid size.
func (s Size) AspectRatio() float64 {
	if !s.Valid() {
		return 0
	}
	return float64(s.Width) / float64(s.Height)
}

// Exceeds reports whether s is wider or taller than bound.
func (s Size) Exceeds(bound Size) bool {
	return s.Width > bound.Width || s.Height > bound.Height
}

// Fit scales original so that it fits inside bound while keeping its aspect
// ratio. The limiting dimension is chosen by comparing aspect ratios: wider
// sources are constrained by width, taller ones by height. Dimensions are
// rounded to the nearest pixel and never drop below 1.
func Fit(original, bound Size) Size {
	if !original.Valid() || !bound.Valid() {
		return Size{}
	}
	if original.AspectRatio() > bound.AspectRatio() {
		h := round(float64(bound.Width) * float64(original.Height) / float64(original.Width))
		return Size{Width: bound.Width, Height: clamp(h, 1, bound.Height)}
	}
	w := round(float64(bound.Height) * float64(original.Width) / float64(original.Height))
	return Size{Width: clamp(w, 1, bound.Width), Height: bound.Height}
}

// Cover returns the smallest size with original's aspect ratio that fully
// covers target. Cropping the centre target-sized window out of it yields
// exactly target.
func Cover(original, target Size) Size {
	if !original.Valid() || !target.Valid() {
		return Size{}
	}
	if original.AspectRatio() > target.AspectRatio() {
		w := round(float64(target.Height) * float64(original.Width) / float64(original.Height))
		return Size{Width: max(w, target.Width), Height: target.Height}
	}
	h := round(float64(target.Width) * float64(original.Height) / float64(original.Width))
	return Size{Width: target.Width, Height: max(h, target.Height)}
}

// Even rounds both dimensions down to the nearest even number, which H.264
// with 4:2:0 chroma subsampling requires. Dimensions never drop below 2.
func Even(s Size) Size {
	return Size{Width: max(s.Width&^1, 2), Height: max(s.Height&^1, 2)}
}

// HeightFor returns the height matching width along the aspect ratio of ref.
func HeightFor(width int, ref Size) int {
	if !ref.Valid() || width <= 0 {
		return 0
	}
	return round(float64(width) * float64(ref.Height) / float64(ref.Width))
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
