package offstage

import "fmt"

// NullBackend is a Backend that allocates nothing and draws nothing. It
// records every call so tests and headless tools can script driver
// behavior (features, buffer ages, allocation failures, swap completion)
// and then assert on what the pipeline did.
type NullBackend struct {
	features Features

	// NextBufferAge is what onscreen back buffers report from BufferAge
	// while FeatureBufferAge is set.
	NextBufferAge int

	// FailTextures, FailOffscreens, FailOnscreens, and FailShaders make
	// the next n allocations of each kind fail.
	FailTextures   int
	FailOffscreens int
	FailOnscreens  int
	FailShaders    int

	// Allocation and release tallies.
	TexturesCreated   int
	TexturesDeleted   int
	OffscreensCreated int
	OffscreensDeleted int
	OnscreensCreated  int
	PipelinesCreated  int
	PipelinesDeleted  int
	ConvolutionsBuilt int

	stack []Framebuffer
}

// NewNullBackend creates a null backend advertising the given features.
func NewNullBackend(features Features) *NullBackend {
	return &NullBackend{features: features}
}

// SetFeatures changes the advertised driver capabilities.
func (b *NullBackend) SetFeatures(features Features) {
	b.features = features
}

// Features implements Backend.
func (b *NullBackend) Features() Features {
	return b.features
}

// CreateTexture implements Backend.
func (b *NullBackend) CreateTexture(width, height int) (Texture, error) {
	if b.FailTextures > 0 {
		b.FailTextures--
		return nil, fmt.Errorf("%w: %dx%d refused", ErrTextureAllocation, width, height)
	}
	b.TexturesCreated++
	return &NullTexture{backend: b, W: width, H: height}, nil
}

// CreateOffscreen implements Backend.
func (b *NullBackend) CreateOffscreen(tex Texture) (Framebuffer, error) {
	if b.FailOffscreens > 0 {
		b.FailOffscreens--
		return nil, fmt.Errorf("%w: refused", ErrOffscreenAllocation)
	}
	b.OffscreensCreated++
	fb := &NullFramebuffer{backend: b, Tex: tex}
	fb.reset(tex.Width(), tex.Height())
	return fb, nil
}

// CreateOnscreen implements Backend.
func (b *NullBackend) CreateOnscreen(width, height int) (Onscreen, error) {
	if b.FailOnscreens > 0 {
		b.FailOnscreens--
		return nil, fmt.Errorf("%w: refused", ErrOnscreenAllocation)
	}
	b.OnscreensCreated++
	on := &NullOnscreen{}
	on.backend = b
	on.reset(width, height)
	return on, nil
}

// CreatePipeline implements Backend.
func (b *NullBackend) CreatePipeline() Pipeline {
	b.PipelinesCreated++
	return &NullPipeline{
		backend:    b,
		Radius:     -1,
		Color:      [4]uint8{0xff, 0xff, 0xff, 0xff},
		Uniform1fv: map[string][]float32{},
		Uniform2f:  map[string][2]float32{},
	}
}

// CreateConvolutionPipeline implements Backend.
func (b *NullBackend) CreateConvolutionPipeline(radius int) (Pipeline, error) {
	if !b.features.Has(FeatureShaders) {
		return nil, fmt.Errorf("%w: no programmable shader support", ErrShaderCompile)
	}
	if b.FailShaders > 0 {
		b.FailShaders--
		return nil, fmt.Errorf("%w: refused", ErrShaderCompile)
	}
	b.PipelinesCreated++
	b.ConvolutionsBuilt++
	return &NullPipeline{
		backend:    b,
		Radius:     radius,
		Color:      [4]uint8{0xff, 0xff, 0xff, 0xff},
		Uniform1fv: map[string][]float32{},
		Uniform2f:  map[string][2]float32{},
	}, nil
}

// PushFramebuffer implements Backend.
func (b *NullBackend) PushFramebuffer(fb Framebuffer) {
	b.stack = append(b.stack, fb)
}

// PopFramebuffer implements Backend.
func (b *NullBackend) PopFramebuffer() {
	if len(b.stack) == 0 {
		panic("offstage: cannot pop an empty framebuffer stack")
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// DrawFramebuffer implements Backend.
func (b *NullBackend) DrawFramebuffer() Framebuffer {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// NullTexture is the Texture handed out by NullBackend.
type NullTexture struct {
	backend *NullBackend
	W, H    int
	Deleted bool
}

// Width implements Texture.
func (t *NullTexture) Width() int { return t.W }

// Height implements Texture.
func (t *NullTexture) Height() int { return t.H }

// Delete implements Texture.
func (t *NullTexture) Delete() {
	if t.Deleted {
		panic("offstage: texture deleted twice")
	}
	t.Deleted = true
	t.backend.TexturesDeleted++
}

// NullDraw records one DrawRect call: the pipeline, its color at call
// time, the rectangle, and the matrices it was drawn under.
type NullDraw struct {
	Pipeline       *NullPipeline
	Color          [4]uint8
	X1, Y1, X2, Y2 float64
	Projection     Matrix4
	Modelview      Matrix4
}

// NullFramebuffer is the Framebuffer handed out by NullBackend. Its state
// and call history are exported for assertions.
type NullFramebuffer struct {
	backend *NullBackend

	// Tex is the backing texture for offscreens, nil for onscreens.
	Tex Texture

	W, H int

	ViewportX, ViewportY          float64
	ViewportWidth, ViewportHeight float64

	projection Matrix4
	modelview  Matrix4

	Clears int
	Draws  []NullDraw

	clips     []ClipRect
	ClipsSeen []ClipRect
	Deleted   bool
}

// reset puts the framebuffer in the freshly created state: identity
// matrices and a full-surface viewport.
func (f *NullFramebuffer) reset(width, height int) {
	f.W = width
	f.H = height
	f.ViewportX = 0
	f.ViewportY = 0
	f.ViewportWidth = float64(width)
	f.ViewportHeight = float64(height)
	f.projection = Matrix4Identity()
	f.modelview = Matrix4Identity()
}

// Width implements Framebuffer.
func (f *NullFramebuffer) Width() int { return f.W }

// Height implements Framebuffer.
func (f *NullFramebuffer) Height() int { return f.H }

// SetViewport implements Framebuffer.
func (f *NullFramebuffer) SetViewport(x, y, width, height float64) {
	f.ViewportX = x
	f.ViewportY = y
	f.ViewportWidth = width
	f.ViewportHeight = height
}

// Viewport implements Framebuffer.
func (f *NullFramebuffer) Viewport() (x, y, width, height float64) {
	return f.ViewportX, f.ViewportY, f.ViewportWidth, f.ViewportHeight
}

// SetProjection implements Framebuffer.
func (f *NullFramebuffer) SetProjection(m Matrix4) { f.projection = m }

// Projection implements Framebuffer.
func (f *NullFramebuffer) Projection() Matrix4 { return f.projection }

// SetModelview implements Framebuffer.
func (f *NullFramebuffer) SetModelview(m Matrix4) { f.modelview = m }

// Modelview implements Framebuffer.
func (f *NullFramebuffer) Modelview() Matrix4 { return f.modelview }

// Clear implements Framebuffer.
func (f *NullFramebuffer) Clear() { f.Clears++ }

// PushClip implements Framebuffer.
func (f *NullFramebuffer) PushClip(c ClipRect) {
	f.clips = append(f.clips, c)
	f.ClipsSeen = append(f.ClipsSeen, c)
}

// PopClip implements Framebuffer.
func (f *NullFramebuffer) PopClip() {
	if len(f.clips) == 0 {
		panic("offstage: cannot pop an empty clip stack")
	}
	f.clips = f.clips[:len(f.clips)-1]
}

// ClipDepth is the number of clips currently pushed.
func (f *NullFramebuffer) ClipDepth() int {
	return len(f.clips)
}

// DrawRect implements Framebuffer.
func (f *NullFramebuffer) DrawRect(p Pipeline, x1, y1, x2, y2 float64) {
	np := p.(*NullPipeline)
	f.Draws = append(f.Draws, NullDraw{
		Pipeline:   np,
		Color:      np.Color,
		X1:         x1,
		Y1:         y1,
		X2:         x2,
		Y2:         y2,
		Projection: f.projection,
		Modelview:  f.modelview,
	})
}

// Delete implements Framebuffer.
func (f *NullFramebuffer) Delete() {
	if f.Deleted {
		panic("offstage: framebuffer deleted twice")
	}
	f.Deleted = true
	f.backend.OffscreensDeleted++
}

// NullOnscreen is the Onscreen handed out by NullBackend. Swaps are
// recorded; completion events fire only when CompleteSwap is called, so
// tests control when the driver answers.
type NullOnscreen struct {
	NullFramebuffer

	Shown     bool
	Throttled bool
	Resizes   int

	SwapCalls   int
	SwapDamage  []ClipRect
	SwapRegions []ClipRect

	handler func()
}

// Show implements Onscreen.
func (o *NullOnscreen) Show() { o.Shown = true }

// Hide implements Onscreen.
func (o *NullOnscreen) Hide() { o.Shown = false }

// Resize implements Onscreen.
func (o *NullOnscreen) Resize(width, height int) {
	o.Resizes++
	o.reset(width, height)
}

// SwapBuffers implements Onscreen.
func (o *NullOnscreen) SwapBuffers() {
	o.SwapCalls++
}

// SwapBuffersWithDamage implements Onscreen.
func (o *NullOnscreen) SwapBuffersWithDamage(damage ClipRect) {
	o.SwapCalls++
	o.SwapDamage = append(o.SwapDamage, damage)
}

// SwapRegion implements Onscreen.
func (o *NullOnscreen) SwapRegion(region ClipRect) {
	if !o.backend.features.Has(FeatureSwapRegion) {
		panic("offstage: swap region without FeatureSwapRegion")
	}
	o.SwapRegions = append(o.SwapRegions, region)
}

// BufferAge implements Onscreen.
func (o *NullOnscreen) BufferAge() int {
	if !o.backend.features.Has(FeatureBufferAge) {
		return 0
	}
	return o.backend.NextBufferAge
}

// SetSwapCompleteHandler implements Onscreen.
func (o *NullOnscreen) SetSwapCompleteHandler(fn func()) {
	o.handler = fn
}

// SetSwapThrottled implements Onscreen.
func (o *NullOnscreen) SetSwapThrottled(throttled bool) {
	o.Throttled = throttled
}

// CompleteSwap delivers one swap completion event, as the windowing system
// would after a presented frame reaches the screen.
func (o *NullOnscreen) CompleteSwap() {
	if o.handler != nil {
		o.handler()
	}
}

// Delete implements Framebuffer. Onscreens are not counted as offscreen
// releases.
func (o *NullOnscreen) Delete() {
	if o.Deleted {
		panic("offstage: framebuffer deleted twice")
	}
	o.Deleted = true
}

// NullPipeline is the Pipeline handed out by NullBackend. All mutations
// are exported for assertions.
type NullPipeline struct {
	backend *NullBackend

	// Radius is the convolution tap radius, or -1 for a plain textured
	// pipeline.
	Radius int

	Tex           Texture
	Color         [4]uint8
	Uniform1fv    map[string][]float32
	Uniform2f     map[string][2]float32
	BlendDisabled bool
	Deleted       bool
}

// Copy implements Pipeline.
func (p *NullPipeline) Copy() Pipeline {
	p.backend.PipelinesCreated++
	clone := &NullPipeline{
		backend:       p.backend,
		Radius:        p.Radius,
		Tex:           p.Tex,
		Color:         p.Color,
		Uniform1fv:    map[string][]float32{},
		Uniform2f:     map[string][2]float32{},
		BlendDisabled: p.BlendDisabled,
	}
	for name, values := range p.Uniform1fv {
		clone.Uniform1fv[name] = append([]float32(nil), values...)
	}
	for name, values := range p.Uniform2f {
		clone.Uniform2f[name] = values
	}
	return clone
}

// SetTexture implements Pipeline.
func (p *NullPipeline) SetTexture(tex Texture) {
	p.Tex = tex
}

// SetColor implements Pipeline.
func (p *NullPipeline) SetColor(r, g, b, a uint8) {
	p.Color = [4]uint8{r, g, b, a}
}

// SetUniform1fv implements Pipeline.
func (p *NullPipeline) SetUniform1fv(name string, values []float32) {
	p.Uniform1fv[name] = append([]float32(nil), values...)
}

// SetUniform2f implements Pipeline.
func (p *NullPipeline) SetUniform2f(name string, x, y float32) {
	p.Uniform2f[name] = [2]float32{x, y}
}

// DisableBlend implements Pipeline.
func (p *NullPipeline) DisableBlend() {
	p.BlendDisabled = true
}

// Delete implements Pipeline.
func (p *NullPipeline) Delete() {
	if p.Deleted {
		panic("offstage: pipeline deleted twice")
	}
	p.Deleted = true
	p.backend.PipelinesDeleted++
}
