package glbackend

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/phanxgames/offstage"
)

// Onscreen presents into the GLFW window the backend was built around.
// GLFW has no asynchronous swap notification, so completion is synthesized
// once SwapBuffers returns; that keeps FeatureSwapEvents honest enough for
// throttling without a second thread.
type Onscreen struct {
	drawTarget
	window  *glfw.Window
	handler func()
}

// CreateOnscreen implements offstage.Backend. The backend drives a single
// window, the one handed to New, so at most one onscreen target can be
// live at a time.
func (b *Backend) CreateOnscreen(width, height int) (offstage.Onscreen, error) {
	if b.window == nil {
		return nil, fmt.Errorf("%w: no window", offstage.ErrOnscreenAllocation)
	}
	if b.adopted {
		return nil, fmt.Errorf("%w: the window is already in use", offstage.ErrOnscreenAllocation)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", offstage.ErrOnscreenAllocation, width, height)
	}
	b.adopted = true
	b.window.SetSize(width, height)
	on := &Onscreen{window: b.window}
	on.init(b, 0, width, height, 1)
	return on, nil
}

// Show implements offstage.Onscreen.
func (o *Onscreen) Show() { o.window.Show() }

// Hide implements offstage.Onscreen.
func (o *Onscreen) Hide() { o.window.Hide() }

// Resize implements offstage.Onscreen.
func (o *Onscreen) Resize(width, height int) {
	o.window.SetSize(width, height)
	o.w = width
	o.h = height
	o.SetViewport(0, 0, float64(width), float64(height))
}

// SwapBuffers implements offstage.Onscreen.
func (o *Onscreen) SwapBuffers() {
	o.window.SwapBuffers()
	if o.handler != nil {
		o.handler()
	}
}

// SwapBuffersWithDamage implements offstage.Onscreen. GLFW cannot pass
// damage hints to the compositor, so this is a plain swap.
func (o *Onscreen) SwapBuffersWithDamage(damage offstage.ClipRect) {
	o.SwapBuffers()
}

// SwapRegion implements offstage.Onscreen.
func (o *Onscreen) SwapRegion(region offstage.ClipRect) {
	panic("offstage: swap region without FeatureSwapRegion")
}

// BufferAge implements offstage.Onscreen. GLFW cannot query EGL or GLX
// buffer age, so every frame reports an unknown back buffer.
func (o *Onscreen) BufferAge() int { return 0 }

// SetSwapCompleteHandler implements offstage.Onscreen.
func (o *Onscreen) SetSwapCompleteHandler(handler func()) {
	o.handler = handler
}

// SetSwapThrottled implements offstage.Onscreen.
func (o *Onscreen) SetSwapThrottled(throttled bool) {
	if throttled {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
}

// Delete implements offstage.Framebuffer. The window stays with the
// application, which created it.
func (o *Onscreen) Delete() {
	o.window.Hide()
	o.backend.adopted = false
}
