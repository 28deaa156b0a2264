package offstage

import "errors"

// Sentinel errors for errors.Is checks. Backends wrap these with driver
// detail via fmt.Errorf("%w: ...").
var (
	ErrTextureAllocation   = errors.New("offstage: texture allocation failed")
	ErrOffscreenAllocation = errors.New("offstage: offscreen framebuffer allocation failed")
	ErrOnscreenAllocation  = errors.New("offstage: onscreen framebuffer allocation failed")
	ErrShaderCompile       = errors.New("offstage: shader compilation failed")
)

// Backend abstracts the GPU driver surface this package needs: resource
// creation plus a draw-framebuffer stack. All calls happen on the render
// thread. Allocation failures are reported as errors and never fatal;
// callers degrade to direct, uneffected painting.
type Backend interface {
	// Features reports the optional capabilities of the driver.
	Features() Features

	// CreateTexture allocates a width x height RGBA texture, premultiplied
	// alpha. Failures wrap ErrTextureAllocation.
	CreateTexture(width, height int) (Texture, error)

	// CreateOffscreen wraps tex in a framebuffer that renders into it. The
	// framebuffer does not own the texture. Failures wrap
	// ErrOffscreenAllocation.
	CreateOffscreen(tex Texture) (Framebuffer, error)

	// CreateOnscreen allocates a window back buffer of the given pixel
	// size. Failures wrap ErrOnscreenAllocation.
	CreateOnscreen(width, height int) (Onscreen, error)

	// CreatePipeline returns a textured pipeline: layer 0 sampled with
	// nearest filtering, modulated by the pipeline color.
	CreatePipeline() Pipeline

	// CreateConvolutionPipeline returns a pipeline that runs a one
	// dimensional convolution of 2*radius+1 taps along the direction of its
	// "pixel_step" uniform, weighted by its "factors" uniform array.
	// Requires FeatureShaders; failures wrap ErrShaderCompile.
	CreateConvolutionPipeline(radius int) (Pipeline, error)

	// PushFramebuffer redirects subsequent drawing to fb.
	PushFramebuffer(fb Framebuffer)

	// PopFramebuffer restores the previous draw target. Panics when the
	// stack is empty.
	PopFramebuffer()

	// DrawFramebuffer is the framebuffer currently being drawn to, or nil
	// outside a frame.
	DrawFramebuffer() Framebuffer
}

// Texture is a GPU texture handle.
type Texture interface {
	Width() int
	Height() int

	// Delete releases the GPU resource. The handle is dead afterwards.
	Delete()
}

// Framebuffer is a render target with its own viewport, matrices, and clip
// stack. A freshly created framebuffer has an identity projection and
// modelview, so untransformed coordinates are normalized device
// coordinates.
type Framebuffer interface {
	Width() int
	Height() int

	// SetViewport maps normalized device coordinates onto the given
	// rectangle. Negative origins are allowed; they shift where the device
	// area lands, which is how off-target content is captured.
	SetViewport(x, y, width, height float64)
	Viewport() (x, y, width, height float64)

	SetProjection(Matrix4)
	Projection() Matrix4

	SetModelview(Matrix4)
	Modelview() Matrix4

	// Clear fills the target with transparent black and clears the depth
	// buffer.
	Clear()

	// PushClip restricts drawing to the given pixel rectangle until the
	// matching PopClip.
	PushClip(ClipRect)
	PopClip()

	// DrawRect draws the axis-aligned rectangle (x1,y1)-(x2,y2) under the
	// current projection and modelview, sampling pipeline layer 0 across
	// texture coordinates (0,0)-(1,1).
	DrawRect(p Pipeline, x1, y1, x2, y2 float64)

	// Delete releases the GPU resource. Backing textures outlive it.
	Delete()
}

// Onscreen is the window back buffer: a Framebuffer that can present.
type Onscreen interface {
	Framebuffer

	// Show maps the window; Hide unmaps it.
	Show()
	Hide()

	// Resize changes the back buffer size.
	Resize(width, height int)

	// SwapBuffers presents the whole back buffer.
	SwapBuffers()

	// SwapBuffersWithDamage presents the whole back buffer, hinting that
	// only damage changed. Falls back to a plain swap when FeatureSwapDamage
	// is absent.
	SwapBuffersWithDamage(damage ClipRect)

	// SwapRegion copies only region to the front buffer without a buffer
	// flip. Only valid when FeatureSwapRegion is set.
	SwapRegion(region ClipRect)

	// BufferAge reports how many frames ago the current back buffer was
	// last presented: 1 means last frame, 0 means unknown or undefined
	// content. Always 0 without FeatureBufferAge.
	BufferAge() int

	// SetSwapCompleteHandler registers fn to run when a swap finishes.
	// Only called when FeatureSwapEvents is set. Delivery may be late or
	// duplicated; receivers must tolerate both.
	SetSwapCompleteHandler(fn func())

	// SetSwapThrottled enables or disables vblank synchronization.
	SetSwapThrottled(bool)
}

// Pipeline is a GPU material: a fragment program, a texture layer, a color,
// and uniforms. Pipelines handed out by a Backend are cheap to copy;
// copies share immutable program state.
type Pipeline interface {
	// Copy returns an independently mutable clone.
	Copy() Pipeline

	// SetTexture binds tex as layer 0.
	SetTexture(Texture)

	// SetColor sets the modulation color as premultiplied bytes.
	SetColor(r, g, b, a uint8)

	// SetUniform1fv sets a float array uniform.
	SetUniform1fv(name string, values []float32)

	// SetUniform2f sets a vec2 uniform.
	SetUniform2f(name string, x, y float32)

	// DisableBlend draws this pipeline with blending off, overwriting the
	// destination. Lets intermediate targets skip their clear.
	DisableBlend()

	// Delete releases the GPU resource.
	Delete()
}
