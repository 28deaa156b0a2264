package offstage

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// BlurPadding is how far, in pixels, a blurred actor's paint spills past
// its own paint box on each side.
const BlurPadding = 2

// defaultBlurSigma gives a gentle blur with a 3 pixel kernel radius.
const defaultBlurSigma = 0.84089642

// blurPipelineKey identifies one shared convolution base pipeline.
type blurPipelineKey struct {
	backend Backend
	radius  int
}

type blurPipelineEntry struct {
	pipeline Pipeline
	refs     int
}

// blurPipelines shares the per-radius convolution base pipelines between
// every blur effect on a backend. Entries are reference counted; the last
// effect to release a radius deletes the pipeline.
var blurPipelines = map[blurPipelineKey]*blurPipelineEntry{}

func acquireBlurPipeline(backend Backend, radius int) (Pipeline, error) {
	key := blurPipelineKey{backend: backend, radius: radius}
	if e, ok := blurPipelines[key]; ok {
		e.refs++
		return e.pipeline, nil
	}
	p, err := backend.CreateConvolutionPipeline(radius)
	if err != nil {
		return nil, err
	}
	blurPipelines[key] = &blurPipelineEntry{pipeline: p, refs: 1}
	return p, nil
}

func releaseBlurPipeline(backend Backend, radius int) {
	key := blurPipelineKey{backend: backend, radius: radius}
	e, ok := blurPipelines[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		e.pipeline.Delete()
		delete(blurPipelines, key)
	}
}

// BlurEffect paints an actor through a separable gaussian blur. The capture
// is convolved horizontally into an intermediate texture, then vertically
// onto the destination, so a kernel of 2r+1 taps costs two linear passes
// instead of one quadratic pass.
//
// The intermediate texture is only re-convolved when the capture or the
// kernel changed; cached composites reuse it as is.
type BlurEffect struct {
	*OffscreenEffect

	sigma  float64
	radius int

	// Instance copies of the shared base pipeline for this radius. Both
	// are nil until a radius is configured, and always nil or set
	// together.
	horizontal Pipeline
	vertical   Pipeline

	// horizontalTexture is the capture texture; the effect does not own
	// it. verticalTexture and verticalFBO hold the intermediate pass and
	// are owned.
	horizontalTexture Texture
	verticalTexture   Texture
	verticalFBO       Framebuffer

	texWidth  int
	texHeight int

	// verticalTextureDirty is set whenever the capture repainted or the
	// kernel changed, and cleared once the horizontal pass ran.
	verticalTextureDirty bool

	sigmaTween *gween.Tween
}

// NewBlurEffect creates a blur effect on backend for actors on stage, with
// a default sigma of 0.84.
func NewBlurEffect(backend Backend, stage Stage) *BlurEffect {
	b := &BlurEffect{OffscreenEffect: NewOffscreenEffect(backend, stage)}
	b.SetPhases(b)
	b.setSigma(defaultBlurSigma)
	return b
}

// Sigma returns the gaussian standard deviation.
func (b *BlurEffect) Sigma() float64 {
	return b.sigma
}

// SetSigma sets the gaussian standard deviation and cancels any running
// sigma transition. The blur updates on the next paint; callers queue a
// redraw clip covering the actor to show it.
func (b *BlurEffect) SetSigma(sigma float64) {
	b.sigmaTween = nil
	b.setSigma(sigma)
}

// TransitionSigmaTo animates sigma toward target over duration seconds.
// Update advances the transition each frame.
func (b *BlurEffect) TransitionSigmaTo(target float64, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	b.sigmaTween = gween.New(float32(b.sigma), float32(target), duration, easeFn)
}

// Update advances the sigma transition by dt seconds and reports whether
// sigma changed, in which case the caller queues a redraw for the actor.
func (b *BlurEffect) Update(dt float32) bool {
	if b.sigmaTween == nil {
		return false
	}
	value, finished := b.sigmaTween.Update(dt)
	if finished {
		b.sigmaTween = nil
	}
	before := b.sigma
	b.setSigma(float64(value))
	return b.sigma != before
}

// setSigma rebuilds the convolution state for a new sigma. Changing sigma
// within the same kernel radius only re-uploads the tap weights; changing
// the radius swaps the underlying pipelines, since the tap count is baked
// into the shader.
func (b *BlurEffect) setSigma(sigma float64) {
	if b.sigma == sigma {
		return
	}

	// A kernel spanning ceil(6 sigma) samples covers practically all of
	// the gaussian's mass.
	radius := int(math.Floor(math.Ceil(6*sigma) / 2))

	if b.horizontal != nil && radius != b.radius {
		b.horizontal.Delete()
		b.horizontal = nil
		b.vertical.Delete()
		b.vertical = nil
		releaseBlurPipeline(b.Backend(), b.radius)
	}

	if b.horizontal == nil {
		base, err := acquireBlurPipeline(b.Backend(), radius)
		if err != nil {
			log.WithError(err).Warn("offstage: unable to build blur pipelines")
			b.sigma = sigma
			b.radius = radius
			return
		}
		b.horizontal = base.Copy()
		b.vertical = base.Copy()

		// The horizontal pass overwrites every texel of the intermediate
		// target, so it must not blend with stale contents.
		b.horizontal.DisableBlend()

		b.updateHorizontalPass()
		b.updateVerticalPass()
	}

	factors := gaussianFactors(sigma, radius)
	b.horizontal.SetUniform1fv("factors", factors)
	b.vertical.SetUniform1fv("factors", factors)

	b.sigma = sigma
	b.radius = radius
	b.verticalTextureDirty = true
}

// gaussianFactors returns the normalized 2*radius+1 tap weights for sigma.
// A zero radius passes the image through untouched.
func gaussianFactors(sigma float64, radius int) []float32 {
	factors := make([]float32, radius*2+1)
	if radius == 0 {
		factors[0] = 1
		return factors
	}
	weights := make([]float64, radius*2+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i)/(2*sigma*sigma)) / math.Sqrt(2*math.Pi*sigma*sigma)
		weights[i+radius] = w
		sum += w
	}
	for i, w := range weights {
		factors[i] = float32(w / sum)
	}
	return factors
}

func (b *BlurEffect) updateHorizontalPass() {
	if b.horizontal == nil || b.horizontalTexture == nil {
		return
	}
	b.horizontal.SetTexture(b.horizontalTexture)
	b.horizontal.SetUniform2f("pixel_step", 1/float32(b.texWidth), 0)
}

func (b *BlurEffect) updateVerticalPass() {
	if b.vertical == nil || b.verticalTexture == nil {
		return
	}
	b.vertical.SetTexture(b.verticalTexture)
	b.vertical.SetUniform2f("pixel_step", 0, 1/float32(b.texHeight))
}

// rebuildVerticalTarget sizes the intermediate texture and framebuffer to
// the current capture.
func (b *BlurEffect) rebuildVerticalTarget() {
	if b.verticalFBO != nil {
		b.verticalFBO.Delete()
		b.verticalFBO = nil
	}
	if b.verticalTexture != nil {
		b.verticalTexture.Delete()
		b.verticalTexture = nil
	}

	tex, err := b.Backend().CreateTexture(b.texWidth, b.texHeight)
	if err != nil {
		log.WithError(err).Warn("offstage: unable to allocate the blur intermediate texture")
		return
	}
	fbo, err := b.Backend().CreateOffscreen(tex)
	if err != nil {
		log.WithError(err).Warn("offstage: unable to allocate the blur intermediate buffer")
		tex.Delete()
		return
	}
	b.verticalTexture = tex
	b.verticalFBO = fbo
	b.updateVerticalPass()
}

// ModifyPaintBox pads the capture so blurred edges have room to spill.
func (b *BlurEffect) ModifyPaintBox(box Rect) Rect {
	return box.Inflate(BlurPadding)
}

// PrePaint implements EffectPhases. Without programmable shaders the
// effect disables itself and the actor paints unfiltered.
func (b *BlurEffect) PrePaint() bool {
	if !b.Enabled() || b.Actor() == nil {
		return false
	}

	if !b.Backend().Features().Has(FeatureShaders) {
		log.Warn("offstage: cannot blur: the driver has no programmable shader support")
		b.SetEnabled(false)
		return false
	}

	return b.OffscreenEffect.PrePaint()
}

// PostPaint implements EffectPhases. The capture texture may have been
// reallocated, so re-point the horizontal pass at it and keep the
// intermediate target the same size, then mark the intermediate stale.
func (b *BlurEffect) PostPaint() {
	if tex := b.Texture(); tex != nil && tex != b.horizontalTexture {
		b.horizontalTexture = tex
		b.texWidth = tex.Width()
		b.texHeight = tex.Height()
		b.updateHorizontalPass()

		if b.verticalTexture == nil ||
			b.verticalTexture.Width() != b.texWidth ||
			b.verticalTexture.Height() != b.texHeight {
			b.rebuildVerticalTarget()
		}
	}

	// The actor just repainted into the capture, so the intermediate is
	// stale even when the texture stayed put.
	b.verticalTextureDirty = true

	b.OffscreenEffect.PostPaint()
}

// PaintTarget implements EffectPhases: run the horizontal pass into the
// intermediate target if the capture made it stale, then composite the
// vertically convolved result where the plain capture would have gone.
func (b *BlurEffect) PaintTarget() {
	if b.vertical == nil || b.verticalFBO == nil {
		// No usable pipelines; show the plain capture.
		b.OffscreenEffect.PaintTarget()
		return
	}

	if b.verticalTextureDirty {
		// The intermediate framebuffer keeps its identity matrices, so the
		// quad is addressed in normalized device coordinates.
		b.verticalFBO.DrawRect(b.horizontal, -1, 1, 1, -1)
		b.verticalTextureDirty = false
	}

	opacity := b.Actor().PaintOpacity()
	b.vertical.SetColor(opacity, opacity, opacity, opacity)

	b.Backend().DrawFramebuffer().DrawRect(b.vertical,
		0, 0, float64(b.texWidth), float64(b.texHeight))
}

// Dispose releases the blur passes, the intermediate target, the shared
// base pipeline reference, and the capture cache. The effect cannot be
// used afterwards.
func (b *BlurEffect) Dispose() {
	if b.horizontal != nil {
		b.horizontal.Delete()
		b.horizontal = nil
		b.vertical.Delete()
		b.vertical = nil
		releaseBlurPipeline(b.Backend(), b.radius)
	}
	b.horizontalTexture = nil
	if b.verticalFBO != nil {
		b.verticalFBO.Delete()
		b.verticalFBO = nil
	}
	if b.verticalTexture != nil {
		b.verticalTexture.Delete()
		b.verticalTexture = nil
	}
	b.sigmaTween = nil
	b.OffscreenEffect.Dispose()
}
