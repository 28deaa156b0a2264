package offstage

import "math"

// Rect is an axis-aligned rectangle in stage coordinates. The coordinate
// system has its origin at the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Union returns the minimal rectangle enclosing both r and other.
// An empty rectangle contributes nothing.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	x1 := math.Min(r.X, other.X)
	y1 := math.Min(r.Y, other.Y)
	x2 := math.Max(r.X+r.Width, other.X+other.Width)
	y2 := math.Max(r.Y+r.Height, other.Y+other.Height)
	return Rect{x1, y1, x2 - x1, y2 - y1}
}

// Inflate returns the rectangle grown by pad on every side.
func (r Rect) Inflate(pad float64) Rect {
	return Rect{r.X - pad, r.Y - pad, r.Width + 2*pad, r.Height + 2*pad}
}

// OuterClip returns the smallest integer rectangle covering r.
func (r Rect) OuterClip() ClipRect {
	x1 := int(math.Floor(r.X))
	y1 := int(math.Floor(r.Y))
	x2 := int(math.Ceil(r.X + r.Width))
	y2 := int(math.Ceil(r.Y + r.Height))
	return ClipRect{x1, y1, x2 - x1, y2 - y1}
}

// ClipRect is an axis-aligned rectangle in integer device pixels. Damage
// regions, scissors, and swap regions are tracked at pixel granularity.
type ClipRect struct {
	X, Y, Width, Height int
}

// IsEmpty reports whether the rectangle has no area.
func (c ClipRect) IsEmpty() bool {
	return c.Width <= 0 || c.Height <= 0
}

// Union returns the minimal rectangle enclosing both c and other.
// An empty rectangle contributes nothing.
func (c ClipRect) Union(other ClipRect) ClipRect {
	if c.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return c
	}
	x1 := min(c.X, other.X)
	y1 := min(c.Y, other.Y)
	x2 := max(c.X+c.Width, other.X+other.Width)
	y2 := max(c.Y+c.Height, other.Y+other.Height)
	return ClipRect{x1, y1, x2 - x1, y2 - y1}
}

// Intersect returns the overlap of c and other, empty when they are disjoint.
func (c ClipRect) Intersect(other ClipRect) ClipRect {
	x1 := max(c.X, other.X)
	y1 := max(c.Y, other.Y)
	x2 := min(c.X+c.Width, other.X+other.Width)
	y2 := min(c.Y+c.Height, other.Y+other.Height)
	if x2 <= x1 || y2 <= y1 {
		return ClipRect{}
	}
	return ClipRect{x1, y1, x2 - x1, y2 - y1}
}

// Rect converts c to floating-point stage coordinates.
func (c ClipRect) Rect() Rect {
	return Rect{float64(c.X), float64(c.Y), float64(c.Width), float64(c.Height)}
}

// Features is a bitmask of optional backend capabilities. A backend reports
// what the driver actually supports; everything degrades gracefully when a
// bit is absent.
type Features uint8

const (
	FeatureSwapRegion  Features = 1 << iota // present a sub-rectangle of the back buffer
	FeatureSwapDamage                       // swap honors a damage hint (EGL_KHR_swap_buffers_with_damage)
	FeatureSwapEvents                       // swap completion delivered asynchronously
	FeatureBufferAge                        // BufferAge reports meaningful values (EGL_EXT_buffer_age)
	FeatureShaders                          // programmable fragment pipelines available
)

// Has reports whether every bit in mask is set.
func (f Features) Has(mask Features) bool {
	return f&mask == mask
}

// PaintFlags carries per-paint hints from the actor system into effects.
type PaintFlags uint8

const (
	// PaintActorDirty signals that the actor's own content changed since the
	// last paint, so any cached capture of it is stale.
	PaintActorDirty PaintFlags = 1 << iota
)
