package offstage

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// panAnim holds active pan-to tweens for the viewport origin.
type panAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// zoomAnim tweens the viewport scale. The base size is captured when the
// zoom starts; the viewport recenters around its current middle each step.
type zoomAnim struct {
	tween *gween.Tween
	baseW float64
	baseH float64
}

// BasicCamera is the camera used by BasicStage: a viewport rectangle plus
// an age that increments whenever the view changes. Effects watch the age
// to decide when their cached captures for this camera went stale.
type BasicCamera struct {
	index    int
	age      int
	viewport Rect

	pan  *panAnim
	zoom *zoomAnim
}

func newBasicCamera(index int, viewport Rect) *BasicCamera {
	return &BasicCamera{index: index, viewport: viewport}
}

// Index implements Camera.
func (c *BasicCamera) Index() int {
	return c.index
}

// Age implements Camera.
func (c *BasicCamera) Age() int {
	return c.age
}

// Viewport implements Camera.
func (c *BasicCamera) Viewport() Rect {
	return c.viewport
}

// SetViewport moves the camera to a new region of the stage and cancels
// running animations. Captures made under the old view go stale.
func (c *BasicCamera) SetViewport(viewport Rect) {
	c.pan = nil
	c.zoom = nil
	if viewport == c.viewport {
		return
	}
	c.viewport = viewport
	c.age++
}

// PanTo animates the viewport origin to (x, y) over duration seconds.
func (c *BasicCamera) PanTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	c.pan = &panAnim{
		tweenX: gween.New(float32(c.viewport.X), float32(x), duration, easeFn),
		tweenY: gween.New(float32(c.viewport.Y), float32(y), duration, easeFn),
	}
}

// ZoomTo animates the viewport scale over duration seconds, relative to
// the size when the zoom starts. A scale above 1 narrows the viewport and
// zooms in.
func (c *BasicCamera) ZoomTo(scale float64, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	c.zoom = &zoomAnim{
		tween: gween.New(1, float32(scale), duration, easeFn),
		baseW: c.viewport.Width,
		baseH: c.viewport.Height,
	}
}

// Update advances active camera animations by dt seconds and reports
// whether the view changed. A changed view ages the camera, so effects
// repaint their captures on the next frame; callers queue a redraw for the
// affected region when Update returns true.
func (c *BasicCamera) Update(dt float32) bool {
	vp := c.viewport

	if c.pan != nil {
		if !c.pan.doneX {
			val, done := c.pan.tweenX.Update(dt)
			vp.X = float64(val)
			c.pan.doneX = done
		}
		if !c.pan.doneY {
			val, done := c.pan.tweenY.Update(dt)
			vp.Y = float64(val)
			c.pan.doneY = done
		}
		if c.pan.doneX && c.pan.doneY {
			c.pan = nil
		}
	}

	if c.zoom != nil {
		scale, done := c.zoom.tween.Update(dt)
		cx := vp.X + vp.Width/2
		cy := vp.Y + vp.Height/2
		w := c.zoom.baseW / float64(scale)
		h := c.zoom.baseH / float64(scale)
		vp = Rect{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
		if done {
			c.zoom = nil
		}
	}

	if vp == c.viewport {
		return false
	}
	c.viewport = vp
	c.age++
	return true
}
