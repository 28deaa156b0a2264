package offstage

import "math"

// renderTargetState caches one camera's offscreen capture of an actor: the
// backing texture, the framebuffer rendering into it, and the composite
// pipeline, plus the coordinates the capture was made under.
//
// The three GPU resources are either all present or all absent. Failed
// allocations tear the whole entry down so a half-built target can never
// be painted.
type renderTargetState struct {
	camera      Camera
	validForAge int

	// requestWidth/Height is the size the target was last requested at.
	// Tracked separately from the texture size because a CreateTexture hook
	// may round the real allocation up.
	requestWidth  int
	requestHeight int

	texture   Texture
	offscreen Framebuffer
	pipeline  Pipeline

	// viewportOffset is the capture's paint box origin relative to the
	// camera viewport origin, in screen coordinates.
	viewportOffsetX float64
	viewportOffsetY float64

	// lastModelview is the full transform the capture was drawn under. The
	// whole matrix is kept because ancestor transform changes do not queue
	// redraws on descendants, so offsets alone cannot prove a capture is
	// still valid.
	lastModelview Matrix4
}

// invalidate releases the entry's GPU resources. The offscreen goes before
// the texture it renders into.
func (st *renderTargetState) invalidate() {
	if st.pipeline != nil {
		st.pipeline.Delete()
		st.pipeline = nil
	}
	if st.offscreen != nil {
		st.offscreen.Delete()
		st.offscreen = nil
	}
	if st.texture != nil {
		st.texture.Delete()
		st.texture = nil
	}
}

func (st *renderTargetState) hasResources() bool {
	return st.pipeline != nil || st.offscreen != nil || st.texture != nil
}

// cameraStateTable holds one renderTargetState per stage camera, indexed by
// camera index. camerasAge starts at -1 so the first lookup always builds
// the table.
type cameraStateTable struct {
	camerasAge int
	states     []renderTargetState
}

func newCameraStateTable() cameraStateTable {
	return cameraStateTable{camerasAge: -1}
}

// stateForCamera returns cam's cache slot. When the stage's camera set
// changed since the last lookup the whole table is released and rebuilt;
// when cam itself changed view, its slot is released. Either way the slot
// comes back stamped for cam's current age, with lazily rebuilt resources.
func (e *OffscreenEffect) stateForCamera(cam Camera) *renderTargetState {
	if age := e.stage.CamerasAge(); age != e.table.camerasAge {
		for i := range e.table.states {
			if e.table.states[i].hasResources() {
				e.stats.Invalidations++
			}
			e.table.states[i].invalidate()
		}

		// Size for every stage camera up front: each one is likely painted
		// every frame.
		n := e.stage.CameraCount()
		e.table.states = make([]renderTargetState, n)
		for i := 0; i < n; i++ {
			e.table.states[i].camera = e.stage.Camera(i)
		}
		e.table.camerasAge = age
	}

	st := &e.table.states[cam.Index()]
	if st.validForAge != st.camera.Age() {
		if st.hasResources() {
			e.stats.Invalidations++
		}
		st.invalidate()
		st.validForAge = st.camera.Age()
	}
	return st
}

// ensureTarget makes st's offscreen target usable at the requested size,
// reusing it untouched when nothing changed. Reports whether a capture
// target exists; on failure the entry is fully released and the caller
// falls back to direct painting.
func (e *OffscreenEffect) ensureTarget(st *renderTargetState, width, height int) bool {
	if st.requestWidth == width && st.requestHeight == height &&
		st.offscreen != nil {
		e.stats.Hits++
		return true
	}
	e.stats.Misses++

	if st.pipeline == nil {
		// The capture is always composited at a 1:1 texel:pixel ratio, so
		// nearest filtering hides rounding in the geometry math.
		st.pipeline = e.backend.CreatePipeline()
	}

	if st.texture != nil {
		st.texture.Delete()
		st.texture = nil
	}

	tex, err := e.newTexture(width, height)
	if err != nil {
		log.WithError(err).Warn("offstage: unable to allocate effect texture")
		st.invalidate()
		st.requestWidth = 0
		st.requestHeight = 0
		return false
	}
	st.texture = tex
	st.pipeline.SetTexture(tex)
	st.requestWidth = width
	st.requestHeight = height

	if st.offscreen != nil {
		st.offscreen.Delete()
		st.offscreen = nil
	}
	offscreen, err := e.backend.CreateOffscreen(tex)
	if err != nil {
		log.WithError(err).Warn("offstage: unable to allocate offscreen buffer")
		st.invalidate()
		st.requestWidth = 0
		st.requestHeight = 0
		return false
	}
	st.offscreen = offscreen
	return true
}

// newTexture runs the CreateTexture hook, or allocates a plain texture of
// at least 1x1.
func (e *OffscreenEffect) newTexture(width, height int) (Texture, error) {
	if e.CreateTexture != nil {
		return e.CreateTexture(width, height)
	}
	return e.backend.CreateTexture(max(width, 1), max(height, 1))
}

// requestSize converts a floating point paint box size to texture pixels,
// rounding up so fractional boxes never lose an edge pixel.
func requestSize(w, h float64) (int, int) {
	return int(math.Ceil(w)), int(math.Ceil(h))
}
