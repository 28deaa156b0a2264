package offstage

import "github.com/sirupsen/logrus"

// Default window size used before the back buffer exists.
const (
	defaultStageWidth  = 800
	defaultStageHeight = 600
)

// StageWindow drives a stage's presentation loop. It collects redraw
// clips, decides per frame between a clipped and a full repaint by
// reconciling the damage history with the back buffer's age, presents with
// the cheapest operation the backend supports, and tracks in-flight swaps.
//
// Everything runs on the render thread. The only asynchronous input is
// swap completion, which is queued by the handler and drained by
// ProcessCompletions.
type StageWindow struct {
	backend Backend
	stage   Stage
	cfg     Config

	onscreen Onscreen
	tracker  DamageTracker

	pendingSwaps   int
	completedSwaps int
	frameCount     int
	stats          RedrawStats

	outline Pipeline
}

// NewStageWindow creates an unrealized window presenting stage through
// backend.
func NewStageWindow(backend Backend, stage Stage, cfg Config) *StageWindow {
	if backend == nil {
		panic("offstage: cannot create a stage window with a nil backend")
	}
	if stage == nil {
		panic("offstage: cannot create a stage window with a nil stage")
	}
	return &StageWindow{backend: backend, stage: stage, cfg: cfg}
}

// Realize allocates the window's back buffer sized to the stage, applies
// the swap throttle, and hooks swap completion when the backend delivers
// events. Failure is non-fatal: the window stays unrealized and Redraw
// skips.
func (w *StageWindow) Realize() error {
	w.tracker.resetHistory()

	if w.onscreen == nil {
		width, height := defaultStageWidth, defaultStageHeight
		if sw, sh := w.stage.Size(); sw > 0 && sh > 0 {
			width, height = requestSize(sw, sh)
		}

		onscreen, err := w.backend.CreateOnscreen(width, height)
		if err != nil {
			log.WithError(err).Warn("offstage: failed to allocate the stage window")
			return err
		}
		w.onscreen = onscreen

		// A brand new back buffer restarts the warm-up suppression.
		w.frameCount = 0
	}

	w.onscreen.SetSwapThrottled(w.cfg.SyncToVBlank)

	if w.backend.Features().Has(FeatureSwapEvents) {
		w.onscreen.SetSwapCompleteHandler(w.queueSwapComplete)
	}
	return nil
}

// Unrealize releases the back buffer. Queued clips survive; history does
// not.
func (w *StageWindow) Unrealize() {
	if w.outline != nil {
		w.outline.Delete()
		w.outline = nil
	}
	if w.onscreen != nil {
		w.onscreen.Delete()
		w.onscreen = nil
	}
}

// Show maps the window.
func (w *StageWindow) Show() {
	if w.onscreen != nil {
		w.onscreen.Show()
	}
}

// Hide unmaps the window.
func (w *StageWindow) Hide() {
	if w.onscreen != nil {
		w.onscreen.Hide()
	}
}

// Resize changes the back buffer size. The old contents are gone, so the
// damage history is dropped and a full redraw is latched.
func (w *StageWindow) Resize(width, height int) {
	if w.onscreen != nil {
		w.onscreen.Resize(width, height)
	}
	w.tracker.resetHistory()
	w.tracker.AddRedrawClip(nil)
}

// Geometry is the window rectangle in pixels.
func (w *StageWindow) Geometry() ClipRect {
	if w.onscreen != nil {
		return ClipRect{0, 0, w.onscreen.Width(), w.onscreen.Height()}
	}
	return ClipRect{0, 0, defaultStageWidth, defaultStageHeight}
}

// Onscreen exposes the window's back buffer, or nil while unrealized.
// Backends with application-driven presentation hand out onscreen types
// with extra methods; callers type-assert for those.
func (w *StageWindow) Onscreen() Onscreen {
	return w.onscreen
}

// AddRedrawClip queues clip for the next redraw; nil latches a full-stage
// redraw.
func (w *StageWindow) AddRedrawClip(clip *ClipRect) {
	w.tracker.AddRedrawClip(clip)
}

// HasRedrawClips reports whether the next redraw is constrained by clips.
func (w *StageWindow) HasRedrawClips() bool {
	return w.tracker.HasRedrawClips()
}

// IgnoringRedrawClips reports whether a full-stage redraw has been latched.
func (w *StageWindow) IgnoringRedrawClips() bool {
	return w.tracker.IgnoringRedrawClips()
}

// RedrawClipBounds returns the resolved region the in-progress paint is
// limited to; ok is false when everything is being repainted.
func (w *StageWindow) RedrawClipBounds() (ClipRect, bool) {
	return w.tracker.RedrawClipBounds()
}

// DirtyBackBuffer tells the window the back buffer was drawn to outside
// its control. The damage history is invalidated and a full repaint is
// latched: the foreign pixels sit on the buffer about to be painted, and
// no repair region accounts for them.
func (w *StageWindow) DirtyBackBuffer() {
	w.tracker.resetHistory()
	w.tracker.AddRedrawClip(nil)
}

// PendingSwaps is the number of swaps issued but not yet completed.
func (w *StageWindow) PendingSwaps() int {
	return w.pendingSwaps
}

// Stats returns the redraw counters accumulated so far.
func (w *StageWindow) Stats() RedrawStats {
	return w.stats
}

// queueSwapComplete runs when the backend reports a finished swap. It only
// enqueues: acting on the event is deferred to ProcessCompletions on the
// render thread, so delivery timing cannot interleave with a paint.
func (w *StageWindow) queueSwapComplete() {
	w.completedSwaps++
}

// ProcessCompletions drains queued swap completions, retiring one pending
// swap per event. Surplus events are dropped: some drivers deliver
// completions that were never requested.
func (w *StageWindow) ProcessCompletions() {
	for ; w.completedSwaps > 0; w.completedSwaps-- {
		if w.pendingSwaps > 0 {
			w.pendingSwaps--
		}
	}
}

// Redraw runs one frame. The damage decision is resolved first, then paint
// runs with the resolved clip (nil when everything must be repainted), and
// the frame is presented with the cheapest operation available. The clip
// accumulator resets afterwards; a redraw on an unrealized window is a
// no-op.
func (w *StageWindow) Redraw(paint func(clip *ClipRect)) {
	if w.onscreen == nil {
		return
	}

	var (
		finalClip ClipRect
		haveFinal bool
		mustBlit  bool
	)

	// A clipped redraw needs a bounded clip, and drivers tend to produce
	// junk frames while starting up, so the first few frames stay full.
	mayUseClipped := w.tracker.initialized &&
		w.tracker.bounding.Width != 0 &&
		w.frameCount > w.cfg.WarmupFrames

	if !mayUseClipped {
		w.tracker.resetHistory()
	} else {
		w.tracker.recordFrame()

		age := w.onscreen.BufferAge()
		if region, ok := w.tracker.repairRegion(age); ok {
			// The back buffer is missing exactly the damage of the last
			// age frames; repairing that region makes it current.
			finalClip = region
			haveFinal = true
			mustBlit = false
		} else if age > 0 {
			log.WithFields(logrus.Fields{
				"age":     age,
				"history": w.tracker.historyLen,
			}).Debug("offstage: not enough damage history to repair the back buffer")
		} else {
			log.Debug("offstage: unknown back buffer contents, repaint and flip")
		}

		if !haveFinal && w.backend.Features().Has(FeatureSwapRegion) {
			// No usable history, but the frame's own damage can be blitted
			// straight to the front buffer.
			finalClip = w.tracker.bounding
			haveFinal = true
			mustBlit = true
		}
	}

	useClipped := haveFinal && !w.cfg.DisableClippedRedraws

	w.backend.PushFramebuffer(w.onscreen)
	if useClipped {
		log.WithFields(logrus.Fields{
			"x": finalClip.X, "y": finalClip.Y,
			"width": finalClip.Width, "height": finalClip.Height,
		}).Debug("offstage: clipped stage paint")
		w.stats.ClippedRedraws++

		w.tracker.beginClippedPaint(finalClip)
		w.onscreen.PushClip(finalClip)
		paint(&finalClip)
		w.onscreen.PopClip()
		w.tracker.endClippedPaint()
	} else {
		log.Debug("offstage: unclipped stage paint")
		w.stats.FullRedraws++

		// With clipping disabled for debugging, the resolved clip still
		// passes through so decisions stay visible in the paint.
		if w.cfg.DisableClippedRedraws && haveFinal {
			paint(&finalClip)
		} else {
			paint(nil)
		}
	}
	w.backend.PopFramebuffer()

	if haveFinal && w.cfg.ShowRedrawHints {
		w.drawRedrawHint(finalClip)
	}

	if useClipped && mustBlit {
		w.stats.SwapRegions++
		w.onscreen.SwapRegion(finalClip)
	} else {
		// Swaps return immediately when completion events are delivered;
		// record that one is in flight.
		if w.backend.Features().Has(FeatureSwapEvents) {
			w.pendingSwaps++
		}
		if haveFinal {
			w.stats.DamageSwaps++
			w.onscreen.SwapBuffersWithDamage(finalClip)
		} else {
			w.stats.FullSwaps++
			w.onscreen.SwapBuffers()
		}
	}

	w.tracker.resetFrame()
	w.frameCount++
}

// drawRedrawHint outlines the resolved clip in red, for eyeballing what
// the tracker decided to repaint.
func (w *StageWindow) drawRedrawHint(clip ClipRect) {
	if w.outline == nil {
		w.outline = w.backend.CreatePipeline()
		w.outline.SetColor(0xff, 0x00, 0x00, 0xff)
	}

	savedProjection := w.onscreen.Projection()
	savedModelview := w.onscreen.Modelview()
	stageW, stageH := w.stage.Size()
	w.onscreen.SetProjection(Matrix4Ortho(0, stageW, stageH, 0, -1, 100))
	w.onscreen.SetModelview(Matrix4Identity())

	x1, y1 := float64(clip.X), float64(clip.Y)
	x2, y2 := float64(clip.X+clip.Width), float64(clip.Y+clip.Height)
	w.onscreen.DrawRect(w.outline, x1, y1, x2, y1+1)
	w.onscreen.DrawRect(w.outline, x1, y2-1, x2, y2)
	w.onscreen.DrawRect(w.outline, x1, y1, x1+1, y2)
	w.onscreen.DrawRect(w.outline, x2-1, y1, x2, y2)

	w.onscreen.SetModelview(savedModelview)
	w.onscreen.SetProjection(savedProjection)
}
