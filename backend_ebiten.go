package offstage

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Texture pool ---

// texturePool manages reusable offscreen ebiten.Images keyed by exact
// dimensions. Captures are sized per actor and per camera and rarely
// change, so exact keys hit without over-allocating.
type texturePool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared image of exactly (w, h) pixels.
func (p *texturePool) Acquire(w, h int) *ebiten.Image {
	key := poolKey(w, h)

	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			img.Clear()
			return img
		}
	}

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, w, h),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// Release returns an image to the pool for reuse. The image is cleared on
// next Acquire, not here (avoids redundant GPU work if released then
// immediately re-acquired).
func (p *texturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())

	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// --- Convolution shader ---

// convolutionShaderSrc builds the Kage source for a one dimensional
// convolution of 2*radius+1 taps. Kage uniform arrays have a fixed length,
// so the tap count is baked into the program and one shader is compiled
// per radius. The pixel_step uniform is a normalized texel step; the
// shader scales it to pixels and clamps samples to the source edge.
func convolutionShaderSrc(radius int) string {
	taps := radius*2 + 1
	return fmt.Sprintf(`//kage:unit pixels
package main

var Factors [%d]float
var PixelStep vec2

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	step := PixelStep * imageSrc0Size()
	edge := imageSrc0Size() - 0.5
	var sum vec4
	for i := 0; i < %d; i++ {
		p := src + step*float(i-%d)
		p = clamp(p, vec2(0.5), edge)
		sum += imageSrc0At(p) * Factors[i]
	}
	return sum * color
}
`, taps, taps, radius)
}

// kageUniformName converts a lower_snake uniform name to the exported form
// Kage requires, e.g. "pixel_step" to "PixelStep".
func kageUniformName(name string) string {
	parts := strings.Split(name, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}

// quadIndices triangulates one rectangle.
var quadIndices = []uint16{0, 1, 2, 0, 2, 3}

// --- Backend ---

// EbitenBackend runs the pipeline on Ebitengine. Offscreen targets are
// real GPU images; the onscreen target is a persistent back buffer the
// application composites in its Draw callback via EbitenOnscreen.Present.
//
// Ebitengine exposes no buffer age, swap regions, or swap events, so the
// backend advertises FeatureShaders only and stage windows repaint in
// full each frame.
type EbitenBackend struct {
	pool    texturePool
	shaders map[int]*ebiten.Shader
	stack   []Framebuffer
	white   *ebiten.Image
}

// NewEbitenBackend creates an Ebitengine backend.
func NewEbitenBackend() *EbitenBackend {
	return &EbitenBackend{}
}

// Features implements Backend.
func (b *EbitenBackend) Features() Features {
	return FeatureShaders
}

// CreateTexture implements Backend. Textures come from a pool keyed by
// size, so steady-state effect painting allocates nothing.
func (b *EbitenBackend) CreateTexture(width, height int) (Texture, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrTextureAllocation, width, height)
	}
	return &ebitenTexture{backend: b, img: b.pool.Acquire(width, height)}, nil
}

// CreateOffscreen implements Backend.
func (b *EbitenBackend) CreateOffscreen(tex Texture) (Framebuffer, error) {
	et, ok := tex.(*ebitenTexture)
	if !ok || et.img == nil {
		return nil, fmt.Errorf("%w: texture is not usable here", ErrOffscreenAllocation)
	}
	fb := &ebitenFramebuffer{}
	fb.attach(b, et.img)
	return fb, nil
}

// CreateOnscreen implements Backend.
func (b *EbitenBackend) CreateOnscreen(width, height int) (Onscreen, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrOnscreenAllocation, width, height)
	}
	on := &EbitenOnscreen{}
	on.attach(b, ebiten.NewImage(width, height))
	on.presentOp.Filter = ebiten.FilterNearest
	return on, nil
}

// CreatePipeline implements Backend.
func (b *EbitenBackend) CreatePipeline() Pipeline {
	return &ebitenPipeline{
		backend: b,
		radius:  -1,
		color:   [4]float32{1, 1, 1, 1},
	}
}

// CreateConvolutionPipeline implements Backend. Compiled shaders are kept
// per radius; pipelines are cheap handles over them.
func (b *EbitenBackend) CreateConvolutionPipeline(radius int) (Pipeline, error) {
	if radius < 0 {
		radius = 0
	}
	shader, err := b.convolutionShader(radius)
	if err != nil {
		return nil, err
	}
	return &ebitenPipeline{
		backend: b,
		shader:  shader,
		radius:  radius,
		color:   [4]float32{1, 1, 1, 1},
	}, nil
}

func (b *EbitenBackend) convolutionShader(radius int) (*ebiten.Shader, error) {
	if s, ok := b.shaders[radius]; ok {
		return s, nil
	}
	s, err := ebiten.NewShader([]byte(convolutionShaderSrc(radius)))
	if err != nil {
		return nil, fmt.Errorf("%w: radius %d: %v", ErrShaderCompile, radius, err)
	}
	if b.shaders == nil {
		b.shaders = make(map[int]*ebiten.Shader)
	}
	b.shaders[radius] = s
	return s, nil
}

// PushFramebuffer implements Backend.
func (b *EbitenBackend) PushFramebuffer(fb Framebuffer) {
	b.stack = append(b.stack, fb)
}

// PopFramebuffer implements Backend.
func (b *EbitenBackend) PopFramebuffer() {
	if len(b.stack) == 0 {
		panic("offstage: cannot pop an empty framebuffer stack")
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// DrawFramebuffer implements Backend.
func (b *EbitenBackend) DrawFramebuffer() Framebuffer {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// whiteTexture is the 1x1 white source used by untextured pipelines, so a
// plain colored rectangle is still one textured draw.
func (b *EbitenBackend) whiteTexture() *ebiten.Image {
	if b.white == nil {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		b.white = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	}
	return b.white
}

// --- Texture ---

// ebitenTexture is the Texture handed out by EbitenBackend.
type ebitenTexture struct {
	backend *EbitenBackend
	img     *ebiten.Image
}

// Width implements Texture.
func (t *ebitenTexture) Width() int { return t.img.Bounds().Dx() }

// Height implements Texture.
func (t *ebitenTexture) Height() int { return t.img.Bounds().Dy() }

// Delete implements Texture, returning the image to the pool.
func (t *ebitenTexture) Delete() {
	if t.img == nil {
		return
	}
	t.backend.pool.Release(t.img)
	t.img = nil
}

// --- Framebuffer ---

// ebitenFramebuffer renders into an ebiten.Image. DrawRect projects
// corners through the framebuffer matrices to normalized device
// coordinates, then maps them onto the viewport rectangle, top-left
// origin. Clips are image subregions.
type ebitenFramebuffer struct {
	backend *EbitenBackend
	base    *ebiten.Image
	target  *ebiten.Image

	viewportX, viewportY          float64
	viewportWidth, viewportHeight float64

	projection Matrix4
	modelview  Matrix4

	clips []image.Rectangle

	verts    [4]ebiten.Vertex
	trisOp   ebiten.DrawTrianglesOptions
	shaderOp ebiten.DrawTrianglesShaderOptions
}

// attach puts the framebuffer in the freshly created state over img.
func (f *ebitenFramebuffer) attach(b *EbitenBackend, img *ebiten.Image) {
	f.backend = b
	f.base = img
	f.target = img
	f.clips = f.clips[:0]
	f.viewportX = 0
	f.viewportY = 0
	f.viewportWidth = float64(img.Bounds().Dx())
	f.viewportHeight = float64(img.Bounds().Dy())
	f.projection = Matrix4Identity()
	f.modelview = Matrix4Identity()
}

// Width implements Framebuffer.
func (f *ebitenFramebuffer) Width() int { return f.base.Bounds().Dx() }

// Height implements Framebuffer.
func (f *ebitenFramebuffer) Height() int { return f.base.Bounds().Dy() }

// SetViewport implements Framebuffer.
func (f *ebitenFramebuffer) SetViewport(x, y, width, height float64) {
	f.viewportX = x
	f.viewportY = y
	f.viewportWidth = width
	f.viewportHeight = height
}

// Viewport implements Framebuffer.
func (f *ebitenFramebuffer) Viewport() (x, y, width, height float64) {
	return f.viewportX, f.viewportY, f.viewportWidth, f.viewportHeight
}

// SetProjection implements Framebuffer.
func (f *ebitenFramebuffer) SetProjection(m Matrix4) { f.projection = m }

// Projection implements Framebuffer.
func (f *ebitenFramebuffer) Projection() Matrix4 { return f.projection }

// SetModelview implements Framebuffer.
func (f *ebitenFramebuffer) SetModelview(m Matrix4) { f.modelview = m }

// Modelview implements Framebuffer.
func (f *ebitenFramebuffer) Modelview() Matrix4 { return f.modelview }

// Clear implements Framebuffer. Ebitengine has no depth buffer and the
// clear ignores the clip stack; both are fine for how captures are used.
func (f *ebitenFramebuffer) Clear() {
	f.base.Clear()
}

// PushClip implements Framebuffer.
func (f *ebitenFramebuffer) PushClip(c ClipRect) {
	f.clips = append(f.clips, image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height))
	f.retarget()
}

// PopClip implements Framebuffer.
func (f *ebitenFramebuffer) PopClip() {
	if len(f.clips) == 0 {
		panic("offstage: cannot pop an empty clip stack")
	}
	f.clips = f.clips[:len(f.clips)-1]
	f.retarget()
}

// retarget recomputes the draw target from the clip stack.
func (f *ebitenFramebuffer) retarget() {
	r := f.base.Bounds()
	for _, c := range f.clips {
		r = r.Intersect(c)
	}
	if r == f.base.Bounds() {
		f.target = f.base
		return
	}
	f.target = f.base.SubImage(r).(*ebiten.Image)
}

// DrawRect implements Framebuffer.
func (f *ebitenFramebuffer) DrawRect(p Pipeline, x1, y1, x2, y2 float64) {
	ep := p.(*ebitenPipeline)

	src := f.backend.whiteTexture()
	if ep.tex != nil && ep.tex.img != nil {
		src = ep.tex.img
	}
	sb := src.Bounds()

	combined := f.projection.Mul(f.modelview)
	corners := [4][2]float64{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
	uvs := [4][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for i, c := range corners {
		nx, ny := combined.TransformPoint(c[0], c[1])
		f.verts[i] = ebiten.Vertex{
			DstX:   float32(f.viewportX + (nx+1)/2*f.viewportWidth),
			DstY:   float32(f.viewportY + (1-ny)/2*f.viewportHeight),
			SrcX:   float32(float64(sb.Min.X) + uvs[i][0]*float64(sb.Dx())),
			SrcY:   float32(float64(sb.Min.Y) + uvs[i][1]*float64(sb.Dy())),
			ColorR: ep.color[0],
			ColorG: ep.color[1],
			ColorB: ep.color[2],
			ColorA: ep.color[3],
		}
	}

	if ep.shader != nil {
		op := &f.shaderOp
		op.Images[0] = src
		op.Uniforms = ep.uniforms
		op.Blend = ebiten.BlendSourceOver
		if ep.blendDisabled {
			op.Blend = ebiten.BlendCopy
		}
		f.target.DrawTrianglesShader(f.verts[:], quadIndices, ep.shader, op)
		return
	}

	op := &f.trisOp
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	op.Filter = ebiten.FilterNearest
	op.Blend = ebiten.BlendSourceOver
	if ep.blendDisabled {
		op.Blend = ebiten.BlendCopy
	}
	f.target.DrawTriangles(f.verts[:], quadIndices, src, op)
}

// Delete implements Framebuffer. The backing texture outlives it.
func (f *ebitenFramebuffer) Delete() {
	f.base = nil
	f.target = nil
	f.clips = nil
}

// --- Onscreen ---

// EbitenOnscreen is the Onscreen handed out by EbitenBackend: a persistent
// back buffer image. Ebitengine applications call Present from their Draw
// callback to composite it onto the real screen.
type EbitenOnscreen struct {
	ebitenFramebuffer

	presentOp ebiten.DrawImageOptions
}

// Present composites the back buffer onto screen. The buffer persists
// between frames, which is what makes partial repaints of it valid.
func (o *EbitenOnscreen) Present(screen *ebiten.Image) {
	if o.base == nil {
		return
	}
	o.presentOp.GeoM.Reset()
	screen.DrawImage(o.base, &o.presentOp)
}

// Show implements Onscreen.
func (o *EbitenOnscreen) Show() {
	ebiten.RestoreWindow()
}

// Hide implements Onscreen.
func (o *EbitenOnscreen) Hide() {
	ebiten.MinimizeWindow()
}

// Resize implements Onscreen.
func (o *EbitenOnscreen) Resize(width, height int) {
	if width < 1 || height < 1 {
		return
	}
	old := o.base
	o.attach(o.backend, ebiten.NewImage(width, height))
	if old != nil {
		old.Deallocate()
	}
}

// SwapBuffers implements Onscreen. Presentation happens in the
// application's Draw callback, so there is nothing to flip here.
func (o *EbitenOnscreen) SwapBuffers() {}

// SwapBuffersWithDamage implements Onscreen.
func (o *EbitenOnscreen) SwapBuffersWithDamage(damage ClipRect) {}

// SwapRegion implements Onscreen.
func (o *EbitenOnscreen) SwapRegion(region ClipRect) {
	panic("offstage: swap region without FeatureSwapRegion")
}

// BufferAge implements Onscreen. Always 0: FeatureBufferAge is unset and
// the buffer's history is not tracked across device loss.
func (o *EbitenOnscreen) BufferAge() int { return 0 }

// SetSwapCompleteHandler implements Onscreen. Never called, matching the
// absence of FeatureSwapEvents.
func (o *EbitenOnscreen) SetSwapCompleteHandler(fn func()) {}

// SetSwapThrottled implements Onscreen, driving Ebitengine's global vsync.
func (o *EbitenOnscreen) SetSwapThrottled(throttled bool) {
	ebiten.SetVsyncEnabled(throttled)
}

// Delete implements Framebuffer.
func (o *EbitenOnscreen) Delete() {
	if o.base != nil {
		o.base.Deallocate()
	}
	o.ebitenFramebuffer.Delete()
}

// --- Pipeline ---

// ebitenPipeline is the Pipeline handed out by EbitenBackend. Convolution
// pipelines hold a compiled per-radius shader; plain pipelines draw
// textured triangles. Compiled shaders are shared and owned by the
// backend, so deleting a pipeline is just dropping references.
type ebitenPipeline struct {
	backend       *EbitenBackend
	shader        *ebiten.Shader
	radius        int
	tex           *ebitenTexture
	color         [4]float32
	uniforms      map[string]any
	blendDisabled bool
}

// Copy implements Pipeline.
func (p *ebitenPipeline) Copy() Pipeline {
	clone := &ebitenPipeline{
		backend:       p.backend,
		shader:        p.shader,
		radius:        p.radius,
		tex:           p.tex,
		color:         p.color,
		blendDisabled: p.blendDisabled,
	}
	if p.uniforms != nil {
		clone.uniforms = make(map[string]any, len(p.uniforms))
		for name, value := range p.uniforms {
			clone.uniforms[name] = value
		}
	}
	return clone
}

// SetTexture implements Pipeline.
func (p *ebitenPipeline) SetTexture(tex Texture) {
	if tex == nil {
		p.tex = nil
		return
	}
	p.tex = tex.(*ebitenTexture)
}

// SetColor implements Pipeline.
func (p *ebitenPipeline) SetColor(r, g, b, a uint8) {
	p.color = [4]float32{
		float32(r) / 0xff,
		float32(g) / 0xff,
		float32(b) / 0xff,
		float32(a) / 0xff,
	}
}

// SetUniform1fv implements Pipeline.
func (p *ebitenPipeline) SetUniform1fv(name string, values []float32) {
	p.setUniform(kageUniformName(name), append([]float32(nil), values...))
}

// SetUniform2f implements Pipeline.
func (p *ebitenPipeline) SetUniform2f(name string, x, y float32) {
	p.setUniform(kageUniformName(name), []float32{x, y})
}

func (p *ebitenPipeline) setUniform(name string, value any) {
	if p.uniforms == nil {
		p.uniforms = make(map[string]any, 2)
	}
	p.uniforms[name] = value
}

// DisableBlend implements Pipeline.
func (p *ebitenPipeline) DisableBlend() {
	p.blendDisabled = true
}

// Delete implements Pipeline.
func (p *ebitenPipeline) Delete() {
	p.tex = nil
	p.uniforms = nil
}
