// Package viewport implements the zoom and pan state of an image view.
//
// A Viewport is pure view state: it holds a scale factor and a pan offset,
// reacts to wheel, button and pointer input, and never touches the bitmap it
// displays. Coordinates are in view pixels relative to the top-left corner of
// the viewport.
package viewport

import (
	"fmt"
	"math"
)

// Limits and steps for zooming.
const (
	MinScale     = 0.5
	MaxScale     = 5.0
	DefaultScale = 1.0
	ZoomFactor   = 1.2
	WheelStep    = -0.01
)

// PrimaryButton is the button index that starts a pan.
const PrimaryButton = 0

// Point is a 2D position or offset in view pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// State is a read-only snapshot of a viewport.
type State struct {
	Identity   string  `json:"identity,omitempty"`
	Scale      float64 `json:"scale"`
	Offset     Point   `json:"offset"`
	Dragging   bool    `json:"dragging"`
	Percent    string  `json:"percent"`
	CanZoomIn  bool    `json:"can_zoom_in"`
	CanZoomOut bool    `json:"can_zoom_out"`
	CanReset   bool    `json:"can_reset"`
}

// Viewport holds the transform applied to a displayed bitmap.
//
// The zero value is not ready for use; call New. Viewport is not safe for
// concurrent use; its owner serializes access.
type Viewport struct {
	identity  string
	scale     float64
	offset    Point
	dragging  bool
	dragStart Point
}

// New returns a viewport at natural size with no offset.
func New() *Viewport {
	return &Viewport{scale: DefaultScale}
}

// Scale returns the current scale factor.
func (v *Viewport) Scale() float64 {
	return v.scale
}

// Offset returns the current pan offset.
func (v *Viewport) Offset() Point {
	return v.offset
}

// Dragging reports whether a pan is in progress.
func (v *Viewport) Dragging() bool {
	return v.dragging
}

// Show tells the viewport which bitmap it displays. When identity differs
// from the previous one the transform is reset, so zoom never carries across
// images.
func (v *Viewport) Show(identity string) {
	if identity == v.identity {
		return
	}
	v.identity = identity
	v.Reset()
}

// Identity returns the identity passed to the last Show call.
func (v *Viewport) Identity() string {
	return v.identity
}

// Wheel applies scroll input. The scale moves by WheelStep*deltaY and the
// offset is recomputed so the point under pointer stays put. Returns false
// when the clamped scale did not change.
func (v *Viewport) Wheel(deltaY float64, pointer Point) bool {
	newScale := clampScale(v.scale + deltaY*WheelStep)
	if newScale == v.scale {
		return false
	}

	// newOffset = pointer - (pointer - oldOffset) * (newScale / oldScale)
	offset := pointer.Sub(pointer.Sub(v.offset).Scale(newScale / v.scale))
	v.setScale(newScale, offset)
	return true
}

// ZoomIn multiplies the scale by ZoomFactor.
func (v *Viewport) ZoomIn() {
	v.setScale(clampScale(v.scale*ZoomFactor), v.offset)
}

// ZoomOut divides the scale by ZoomFactor.
func (v *Viewport) ZoomOut() {
	v.setScale(clampScale(v.scale/ZoomFactor), v.offset)
}

// setScale applies a scale and offset, dropping the offset at or below
// natural size.
func (v *Viewport) setScale(scale float64, offset Point) {
	v.scale = scale
	if scale <= DefaultScale {
		v.offset = Point{}
		v.dragging = false
		return
	}
	v.offset = offset
}

// PointerDown starts a pan when zoomed in and button is the primary button.
// It returns whether a drag started.
func (v *Viewport) PointerDown(button int, pos Point) bool {
	if v.scale <= DefaultScale || button != PrimaryButton {
		return false
	}
	v.dragging = true
	v.dragStart = pos.Sub(v.offset)
	return true
}

// PointerMove updates the offset while a pan is in progress.
func (v *Viewport) PointerMove(pos Point) bool {
	if !v.dragging || v.scale <= DefaultScale {
		return false
	}
	v.offset = pos.Sub(v.dragStart)
	return true
}

// PointerUp ends a pan.
func (v *Viewport) PointerUp() {
	v.dragging = false
}

// PointerLeave ends a pan when the pointer leaves the viewport.
func (v *Viewport) PointerLeave() {
	v.dragging = false
}

// Reset restores natural size and clears the offset.
func (v *Viewport) Reset() {
	v.scale = DefaultScale
	v.offset = Point{}
	v.dragging = false
}

// Percent is the zoom label shown on the reset control, e.g. "120%".
func (v *Viewport) Percent() string {
	return fmt.Sprintf("%d%%", int(math.Round(v.scale*100)))
}

// State returns a snapshot suitable for rendering controls.
func (v *Viewport) State() State {
	return State{
		Identity:   v.identity,
		Scale:      v.scale,
		Offset:     v.offset,
		Dragging:   v.dragging,
		Percent:    v.Percent(),
		CanZoomIn:  v.scale < MaxScale,
		CanZoomOut: v.scale > MinScale,
		CanReset:   v.scale != DefaultScale,
	}
}

func clampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}
