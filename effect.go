package offstage

// Effect is the hook an actor system runs in place of painting an actor
// directly.
type Effect interface {
	// SetActor attaches the effect to an actor, or detaches it with nil.
	SetActor(Actor)

	// Paint draws the attached actor through the effect.
	Paint(flags PaintFlags)

	// Dispose releases the effect's GPU resources.
	Dispose()
}

// EffectPhases is the customization surface of the offscreen pipeline: the
// capture setup, the capture teardown, and the composite draw.
// OffscreenEffect implements all three; derived effects embed
// *OffscreenEffect, shadow any phase, and register themselves with
// SetPhases so the paint driver reaches the overrides. Overridden phases
// chain up through the embedded effect.
type EffectPhases interface {
	PrePaint() bool
	PostPaint()
	PaintTarget()
}

// PaintBoxModifier is implemented by phases whose output spills past the
// actor's own paint box, so the capture must cover more than the actor
// reports.
type PaintBoxModifier interface {
	ModifyPaintBox(Rect) Rect
}

// OffscreenEffect redirects an actor's painting into a per-camera cached
// framebuffer and composites the capture back as a textured quad in stage
// coordinates. While the actor, its transform, and its camera stay
// unchanged, repeated paints reuse the capture without repainting the
// actor.
type OffscreenEffect struct {
	backend Backend
	stage   Stage
	actor   Actor
	enabled bool

	table  cameraStateTable
	phases EffectPhases
	stats  CacheStats

	oldOpacityOverride int

	// CreateTexture, when set, replaces backing texture allocation for
	// captures. It may return a texture larger than requested; compositing
	// uses the real texture size.
	CreateTexture func(width, height int) (Texture, error)
}

// NewOffscreenEffect creates an effect painting through backend onto stage.
// The effect starts enabled and detached.
func NewOffscreenEffect(backend Backend, stage Stage) *OffscreenEffect {
	if backend == nil {
		panic("offstage: cannot create an effect with a nil backend")
	}
	if stage == nil {
		panic("offstage: cannot create an effect with a nil stage")
	}
	e := &OffscreenEffect{
		backend: backend,
		stage:   stage,
		enabled: true,
		table:   newCameraStateTable(),
	}
	e.phases = e
	return e
}

// SetPhases routes the overridable pipeline phases through p. Passing nil
// restores the defaults.
func (e *OffscreenEffect) SetPhases(p EffectPhases) {
	if p == nil {
		e.phases = e
		return
	}
	e.phases = p
}

// SetActor implements Effect. Captures of the previous actor are released.
func (e *OffscreenEffect) SetActor(actor Actor) {
	e.releaseTargets()
	e.actor = actor
}

// Actor returns the attached actor, or nil.
func (e *OffscreenEffect) Actor() Actor {
	return e.actor
}

// Backend returns the backend the effect paints through.
func (e *OffscreenEffect) Backend() Backend {
	return e.backend
}

// Stage returns the stage the effect paints onto.
func (e *OffscreenEffect) Stage() Stage {
	return e.stage
}

// Enabled reports whether the effect modifies painting.
func (e *OffscreenEffect) Enabled() bool {
	return e.enabled
}

// SetEnabled turns the effect on or off. A disabled effect paints its
// actor unmodified. Disabling releases the cached captures; they would be
// stale by the time the effect is enabled again.
func (e *OffscreenEffect) SetEnabled(enabled bool) {
	if e.enabled == enabled {
		return
	}
	e.enabled = enabled
	if !enabled {
		e.releaseTargets()
	}
}

// Stats returns the cache counters accumulated so far.
func (e *OffscreenEffect) Stats() CacheStats {
	return e.stats
}

// PrePaint redirects painting into the current camera's capture target,
// reporting whether the redirection is in place. On false the caller must
// not run PostPaint; the actor then paints unredirected.
func (e *OffscreenEffect) PrePaint() bool {
	if !e.enabled || e.actor == nil {
		return false
	}

	cam := e.stage.CurrentCamera()
	st := e.stateForCamera(cam)
	vp := cam.Viewport()

	// The paint box is the actor's bounds projected to screen coordinates.
	// Its size is the capture size; its origin becomes a viewport offset
	// relative to the camera viewport, which may not sit at the stage
	// origin.
	var requestW, requestH float64
	if box, ok := e.actor.PaintBox(); ok {
		if m, ok := e.phases.(PaintBoxModifier); ok {
			box = m.ModifyPaintBox(box)
		}
		requestW = box.Width
		requestH = box.Height
		st.viewportOffsetX = box.X - vp.X
		st.viewportOffsetY = box.Y - vp.Y
	} else {
		// No usable bounds: capture the whole camera viewport.
		requestW = vp.Width
		requestH = vp.Height
		st.viewportOffsetX = 0
		st.viewportOffsetY = 0
	}

	w, h := requestSize(requestW, requestH)
	if !e.ensureTarget(st, w, h) {
		return false
	}

	texW := float64(st.texture.Width())
	texH := float64(st.texture.Height())

	parent := e.backend.DrawFramebuffer()
	if parent == nil {
		panic("offstage: pre-paint outside a frame")
	}

	// The modelview the actor would have painted under; kept so a later
	// paint under the same transform can reuse the capture untouched.
	st.lastModelview = parent.Modelview()

	e.backend.PushFramebuffer(st.offscreen)
	st.offscreen.SetModelview(st.lastModelview)

	// Expand the viewport when the actor pokes out of the camera viewport,
	// otherwise the capture is clipped at the viewport edge.
	xexpand := 0.0
	if st.viewportOffsetX < 0 {
		xexpand = -st.viewportOffsetX
	}
	if over := st.viewportOffsetX + texW - vp.Width; over > xexpand {
		xexpand = over
	}
	yexpand := 0.0
	if st.viewportOffsetY < 0 {
		yexpand = -st.viewportOffsetY
	}
	if over := st.viewportOffsetY + texH - vp.Height; over > yexpand {
		yexpand = over
	}

	st.offscreen.SetViewport(
		-(st.viewportOffsetX + xexpand),
		-(st.viewportOffsetY + yexpand),
		vp.Width+2*xexpand,
		vp.Height+2*yexpand,
	)

	// The stage projection was built for the unexpanded viewport; rescale
	// it so stage coordinates keep landing on the same pixels.
	projection := e.stage.ProjectionMatrix()
	if xexpand > 0 || yexpand > 0 {
		newW := vp.Width + 2*xexpand
		newH := vp.Height + 2*yexpand
		projection = projection.Scaled(vp.Width/newW, vp.Height/newH, 1)
	}
	st.offscreen.SetProjection(projection)

	st.offscreen.Clear()

	// Capture at full opacity. The real opacity is applied when the
	// capture is composited; applying it in both places would square it.
	e.oldOpacityOverride = e.actor.OpacityOverride()
	e.actor.SetOpacityOverride(0xff)

	return true
}

// PostPaint ends the redirection started by a successful PrePaint and
// composites the capture onto the framebuffer the actor would have painted
// to. A no-op when no redirection is in place.
func (e *OffscreenEffect) PostPaint() {
	st := e.stateForCamera(e.stage.CurrentCamera())
	if st.offscreen == nil || st.pipeline == nil || e.actor == nil {
		return
	}

	e.actor.SetOpacityOverride(e.oldOpacityOverride)

	e.backend.PopFramebuffer()

	e.paintTexture()
}

// Paint implements Effect. While a valid capture exists for the current
// camera only the composite is drawn; otherwise the actor is repainted
// through the full capture cycle.
func (e *OffscreenEffect) Paint(flags PaintFlags) {
	if e.actor == nil {
		panic("offstage: cannot paint a detached effect")
	}
	target := e.backend.DrawFramebuffer()
	if target == nil {
		panic("offstage: cannot paint outside a frame")
	}

	if !e.enabled {
		e.actor.Paint()
		return
	}

	cam := e.stage.CurrentCamera()
	st := e.stateForCamera(cam)

	// The capture is reusable when it exists, the actor has not changed
	// content, it was drawn under the same transform, and the camera has
	// not moved.
	if st.offscreen == nil ||
		flags&PaintActorDirty != 0 ||
		!target.Modelview().Equal(st.lastModelview) ||
		st.validForAge != st.camera.Age() {
		redirected := e.phases.PrePaint()
		e.actor.Paint()
		if redirected {
			e.phases.PostPaint()
		}
		st.validForAge = st.camera.Age()
	} else {
		e.stats.Skips++
		e.paintTexture()
	}
}

// paintTexture composites the current camera's capture as a textured quad
// in plain orthographic stage coordinates, deliberately bypassing any
// camera view transform on the target framebuffer.
func (e *OffscreenEffect) paintTexture() {
	cam := e.stage.CurrentCamera()
	st := e.stateForCamera(cam)
	target := e.backend.DrawFramebuffer()

	savedProjection := target.Projection()
	savedModelview := target.Modelview()

	stageW, stageH := e.stage.Size()
	target.SetProjection(Matrix4Ortho(0, stageW, stageH, 0, -1, 100))

	// The viewport offset is in screen coordinates relative to the camera
	// viewport; the quad is positioned in stage coordinates.
	vp := cam.Viewport()
	scaleX := stageW / vp.Width
	scaleY := stageH / vp.Height
	stageX := st.viewportOffsetX * scaleX
	stageY := st.viewportOffsetY * scaleY

	target.SetModelview(Matrix4Identity().
		Translated(stageX, stageY, 0).
		Scaled(scaleX, scaleY, 1))

	e.phases.PaintTarget()

	target.SetModelview(savedModelview)
	target.SetProjection(savedProjection)
}

// PaintTarget draws the capture with the cached composite pipeline. The
// quad spans the live texture size at the origin: under paintTexture's
// transform that overlays exactly where the actor would have painted.
func (e *OffscreenEffect) PaintTarget() {
	st := e.stateForCamera(e.stage.CurrentCamera())

	opacity := e.actor.PaintOpacity()
	st.pipeline.SetColor(opacity, opacity, opacity, opacity)

	e.backend.DrawFramebuffer().DrawRect(st.pipeline,
		0, 0, float64(st.texture.Width()), float64(st.texture.Height()))
}

// Texture returns the capture texture for the camera being painted, or nil
// before the first capture. The texture can be replaced by the capture
// phase, so effects must refresh any held reference after chaining up
// PostPaint. Only valid during painting.
func (e *OffscreenEffect) Texture() Texture {
	return e.stateForCamera(e.stage.CurrentCamera()).texture
}

// Target returns the composite pipeline for the camera being painted, or
// nil before the first capture. Only valid during painting.
func (e *OffscreenEffect) Target() Pipeline {
	return e.stateForCamera(e.stage.CurrentCamera()).pipeline
}

// TargetSize reports the capture texture size for the camera being
// painted; ok is false before the first capture. Only valid during
// painting.
func (e *OffscreenEffect) TargetSize() (width, height int, ok bool) {
	st := e.stateForCamera(e.stage.CurrentCamera())
	if st.texture == nil {
		return 0, 0, false
	}
	return st.texture.Width(), st.texture.Height(), true
}

// releaseTargets releases every cached render target.
func (e *OffscreenEffect) releaseTargets() {
	for i := range e.table.states {
		if e.table.states[i].hasResources() {
			e.stats.Invalidations++
			e.table.states[i].invalidate()
		}
	}
}

// Dispose implements Effect. The effect stays usable; the next paint
// rebuilds its targets lazily.
func (e *OffscreenEffect) Dispose() {
	e.releaseTargets()
}
