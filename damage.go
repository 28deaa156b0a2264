package offstage

// redrawClipHistoryLength is how many past frames' damage regions are kept
// for buffer age repair. A back buffer older than this forces a full
// repaint.
const redrawClipHistoryLength = 16

// DamageTracker accumulates the bounding box of everything queued for
// redraw this frame and keeps a short history of past frames' damage so a
// stale back buffer can be repaired instead of fully repainted.
//
// A redraw clip is the stage-coordinate bounding box of something that
// needs redrawing. Queueing a nil clip latches a full-stage redraw for the
// frame; once latched, nothing can grow it. All clips are discarded after
// the next redraw.
type DamageTracker struct {
	// bounding is the union of this frame's clips. A zero width with
	// initialized set is the full-stage sentinel, distinct from nothing
	// having been queued at all.
	bounding    ClipRect
	initialized bool

	// history holds past frames' damage, newest first.
	history    [redrawClipHistoryLength]ClipRect
	historyLen int

	// usingClippedRedraw is set while a clipped paint runs; currentClip is
	// the resolved region that paint is limited to.
	usingClippedRedraw bool
	currentClip        ClipRect
}

// AddRedrawClip queues clip for the next redraw. nil latches a full-stage
// redraw. Degenerate clips are ignored.
func (t *DamageTracker) AddRedrawClip(clip *ClipRect) {
	// Already forced to a full redraw; bail early.
	if t.IgnoringRedrawClips() {
		return
	}

	if clip == nil {
		t.bounding.Width = 0
		t.initialized = true
		return
	}

	if clip.Width == 0 || clip.Height == 0 {
		return
	}

	if !t.initialized {
		t.bounding = *clip
	} else if t.bounding.Width > 0 {
		t.bounding = t.bounding.Union(*clip)
	}
	t.initialized = true
}

// HasRedrawClips reports whether the next redraw is constrained by clips.
// At the start of a frame there is an implied clip covering nothing, so
// the uninitialized state reports true; a latched full-stage redraw
// reports false.
func (t *DamageTracker) HasRedrawClips() bool {
	return !t.initialized || t.bounding.Width != 0
}

// IgnoringRedrawClips reports whether a full-stage redraw has been
// latched, making any further clips irrelevant.
func (t *DamageTracker) IgnoringRedrawClips() bool {
	return t.initialized && t.bounding.Width == 0
}

// RedrawClipBounds returns the resolved region the in-progress paint is
// limited to. ok is false outside a clipped paint, meaning everything is
// being repainted.
func (t *DamageTracker) RedrawClipBounds() (ClipRect, bool) {
	if t.usingClippedRedraw {
		return t.currentClip, true
	}
	return ClipRect{}, false
}

// recordFrame pushes this frame's bounding clip onto the history ring.
func (t *DamageTracker) recordFrame() {
	for i := len(t.history) - 1; i > 0; i-- {
		t.history[i] = t.history[i-1]
	}
	t.history[0] = t.bounding
	if t.historyLen < len(t.history) {
		t.historyLen++
	}
}

// repairRegion resolves what must repaint to repair a back buffer last
// presented age frames ago: the union of every frame's damage since,
// including the current frame's. ok is false when the buffer contents are
// unknown (age 0) or older than the retained history.
func (t *DamageTracker) repairRegion(age int) (ClipRect, bool) {
	if age < 1 || age > t.historyLen {
		return ClipRect{}, false
	}
	region := t.history[0]
	for i := 1; i < age; i++ {
		region = region.Union(t.history[i])
	}
	return region, true
}

// resetFrame discards the frame's accumulated clips.
func (t *DamageTracker) resetFrame() {
	t.initialized = false
}

// resetHistory discards the damage history. Required whenever the back
// buffer is touched behind the tracker's back.
func (t *DamageTracker) resetHistory() {
	t.historyLen = 0
}

func (t *DamageTracker) beginClippedPaint(clip ClipRect) {
	t.usingClippedRedraw = true
	t.currentClip = clip
}

func (t *DamageTracker) endClippedPaint() {
	t.usingClippedRedraw = false
}
