package offstage

import (
	"errors"
	"testing"
)

// --- Test scaffolding ---

func newWindowRig(t testing.TB, features Features) (*NullBackend, *StageWindow, *NullOnscreen) {
	t.Helper()
	backend := NewNullBackend(features)
	stage := NewBasicStage(320, 240)
	stage.NewCamera(Rect{0, 0, 320, 240})

	cfg := DefaultConfig()
	cfg.SyncToVBlank = false
	cfg.WarmupFrames = 0

	win := NewStageWindow(backend, stage, cfg)
	if err := win.Realize(); err != nil {
		t.Fatalf("Realize() = %v", err)
	}
	return backend, win, win.Onscreen().(*NullOnscreen)
}

// paintClip runs one redraw and reports the clip the paint received.
func paintClip(win *StageWindow) (ClipRect, bool) {
	var (
		clip ClipRect
		ok   bool
	)
	win.Redraw(func(c *ClipRect) {
		if c != nil {
			clip = *c
			ok = true
		}
	})
	return clip, ok
}

// --- Realize ---

func TestRealizeSizesBackBufferToStage(t *testing.T) {
	backend, win, on := newWindowRig(t, 0)

	if on.W != 320 || on.H != 240 {
		t.Errorf("back buffer = %dx%d, want the stage's 320x240", on.W, on.H)
	}
	if got := win.Geometry(); got != (ClipRect{0, 0, 320, 240}) {
		t.Errorf("Geometry = %+v, want {0 0 320 240}", got)
	}

	// Realizing again reuses the buffer.
	if err := win.Realize(); err != nil {
		t.Fatalf("second Realize() = %v", err)
	}
	if backend.OnscreensCreated != 1 {
		t.Errorf("OnscreensCreated = %d, want 1", backend.OnscreensCreated)
	}
}

func TestRealizeFailureIsNonFatal(t *testing.T) {
	backend := NewNullBackend(0)
	backend.FailOnscreens = 1
	win := NewStageWindow(backend, NewBasicStage(320, 240), DefaultConfig())

	err := win.Realize()
	if !errors.Is(err, ErrOnscreenAllocation) {
		t.Fatalf("Realize() = %v, want ErrOnscreenAllocation", err)
	}

	painted := false
	win.Redraw(func(*ClipRect) { painted = true })
	if painted {
		t.Error("an unrealized window must not paint")
	}
	if got := win.Geometry(); got != (ClipRect{0, 0, 800, 600}) {
		t.Errorf("Geometry = %+v, want the default size", got)
	}

	if err := win.Realize(); err != nil {
		t.Errorf("Realize() after recovery = %v, want nil", err)
	}
}

func TestSwapThrottleFollowsConfig(t *testing.T) {
	backend := NewNullBackend(0)
	win := NewStageWindow(backend, NewBasicStage(320, 240), DefaultConfig())
	if err := win.Realize(); err != nil {
		t.Fatalf("Realize() = %v", err)
	}
	if on := win.Onscreen().(*NullOnscreen); !on.Throttled {
		t.Error("SyncToVBlank must throttle swaps")
	}
}

// --- Redraw decisions ---

func TestFirstFrameIsFull(t *testing.T) {
	_, win, on := newWindowRig(t, FeatureBufferAge)
	clip := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&clip)

	if _, clipped := paintClip(win); clipped {
		t.Error("the first frame must repaint everything")
	}
	st := win.Stats()
	if st.FullRedraws != 1 || st.FullSwaps != 1 {
		t.Errorf("stats = %+v, want one full redraw and one full swap", st)
	}
	if on.SwapCalls != 1 {
		t.Errorf("SwapCalls = %d, want 1", on.SwapCalls)
	}
}

func TestWarmupFramesSuppressClipping(t *testing.T) {
	backend := NewNullBackend(FeatureBufferAge)
	cfg := DefaultConfig()
	cfg.SyncToVBlank = false
	cfg.WarmupFrames = 2
	win := NewStageWindow(backend, NewBasicStage(320, 240), cfg)
	if err := win.Realize(); err != nil {
		t.Fatalf("Realize() = %v", err)
	}
	backend.NextBufferAge = 1

	a := ClipRect{40, 40, 60, 60}
	for frame := 0; frame < 3; frame++ {
		win.AddRedrawClip(&a)
		if _, clipped := paintClip(win); clipped {
			t.Fatalf("frame %d clipped during warm-up", frame)
		}
	}

	win.AddRedrawClip(&a)
	if _, clipped := paintClip(win); !clipped {
		t.Error("clipping must start once the warm-up frames have painted")
	}
}

func TestBufferAgeRepairUnionsHistory(t *testing.T) {
	backend, win, on := newWindowRig(t, FeatureBufferAge)
	win.Redraw(func(*ClipRect) {})

	// Age 1: the buffer misses only this frame's damage.
	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	backend.NextBufferAge = 1
	clip, clipped := paintClip(win)
	if !clipped || clip != a {
		t.Fatalf("age 1 clip = %+v, %v, want %+v", clip, clipped, a)
	}
	if len(on.ClipsSeen) != 1 || on.ClipsSeen[0] != a {
		t.Errorf("scissors = %+v, want [%+v]", on.ClipsSeen, a)
	}
	if len(on.SwapDamage) != 1 || on.SwapDamage[0] != a {
		t.Errorf("SwapDamage = %+v, want [%+v]", on.SwapDamage, a)
	}

	// Age 2: the buffer additionally misses the previous frame's damage.
	b := ClipRect{150, 100, 50, 40}
	win.AddRedrawClip(&b)
	backend.NextBufferAge = 2
	clip, clipped = paintClip(win)
	if want := a.Union(b); !clipped || clip != want {
		t.Errorf("age 2 clip = %+v, %v, want %+v", clip, clipped, want)
	}

	st := win.Stats()
	if st.ClippedRedraws != 2 || st.DamageSwaps != 2 || st.FullRedraws != 1 {
		t.Errorf("stats = %+v, want 2 clipped redraws over 1 full", st)
	}
}

func TestAgeBeyondHistoryFallsBackToFull(t *testing.T) {
	backend, win, _ := newWindowRig(t, FeatureBufferAge)
	win.Redraw(func(*ClipRect) {})

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	backend.NextBufferAge = 5
	if _, clipped := paintClip(win); clipped {
		t.Error("a buffer older than the history must repaint in full")
	}
	if st := win.Stats(); st.FullRedraws != 2 || st.FullSwaps != 2 {
		t.Errorf("stats = %+v, want 2 full redraws and swaps", st)
	}
}

func TestUnknownAgeBlitsRegion(t *testing.T) {
	_, win, on := newWindowRig(t, FeatureSwapRegion|FeatureSwapEvents)
	win.Redraw(func(*ClipRect) {})
	on.CompleteSwap()
	win.ProcessCompletions()

	// No buffer age support, but the frame's own damage can be blitted
	// straight to the front buffer.
	a := ClipRect{10, 10, 30, 30}
	win.AddRedrawClip(&a)
	clip, clipped := paintClip(win)
	if !clipped || clip != a {
		t.Fatalf("clip = %+v, %v, want the frame's own damage", clip, clipped)
	}
	if len(on.SwapRegions) != 1 || on.SwapRegions[0] != a {
		t.Errorf("SwapRegions = %+v, want [%+v]", on.SwapRegions, a)
	}
	if on.SwapCalls != 1 {
		t.Errorf("SwapCalls = %d, want only the first frame's swap", on.SwapCalls)
	}
	// Region blits complete synchronously; nothing is left in flight.
	if win.PendingSwaps() != 0 {
		t.Errorf("PendingSwaps = %d, want 0", win.PendingSwaps())
	}
	if st := win.Stats(); st.SwapRegions != 1 {
		t.Errorf("SwapRegions stat = %d, want 1", st.SwapRegions)
	}
}

func TestNoFeaturesMeansFullSwaps(t *testing.T) {
	_, win, on := newWindowRig(t, 0)
	win.Redraw(func(*ClipRect) {})

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	if _, clipped := paintClip(win); clipped {
		t.Error("without driver support every frame repaints in full")
	}
	if on.SwapCalls != 2 {
		t.Errorf("SwapCalls = %d, want 2", on.SwapCalls)
	}
	if st := win.Stats(); st.FullSwaps != 2 {
		t.Errorf("FullSwaps = %d, want 2", st.FullSwaps)
	}
}

// --- Swap completion ---

func TestPendingSwapLifecycle(t *testing.T) {
	_, win, on := newWindowRig(t, FeatureSwapEvents)
	win.Redraw(func(*ClipRect) {})
	if win.PendingSwaps() != 1 {
		t.Fatalf("PendingSwaps = %d, want 1 after a swap", win.PendingSwaps())
	}

	on.CompleteSwap()
	if win.PendingSwaps() != 1 {
		t.Error("completions act only when ProcessCompletions drains them")
	}
	win.ProcessCompletions()
	if win.PendingSwaps() != 0 {
		t.Errorf("PendingSwaps = %d, want 0 after draining", win.PendingSwaps())
	}

	// Some drivers deliver completions nobody asked for.
	on.CompleteSwap()
	win.ProcessCompletions()
	if win.PendingSwaps() != 0 {
		t.Errorf("PendingSwaps = %d, want surplus completions dropped", win.PendingSwaps())
	}
}

// --- Invalidation ---

func TestResizeLatchesFullRedraw(t *testing.T) {
	backend, win, on := newWindowRig(t, FeatureBufferAge)
	win.Redraw(func(*ClipRect) {})

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	win.Resize(400, 300)

	if !win.IgnoringRedrawClips() {
		t.Error("a resize must latch a full redraw")
	}
	backend.NextBufferAge = 1
	if _, clipped := paintClip(win); clipped {
		t.Error("the frame after a resize must repaint everything")
	}
	if on.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", on.Resizes)
	}
	if got := win.Geometry(); got != (ClipRect{0, 0, 400, 300}) {
		t.Errorf("Geometry = %+v, want {0 0 400 300}", got)
	}
}

func TestDirtyBackBufferForcesFullRedraw(t *testing.T) {
	backend, win, _ := newWindowRig(t, FeatureBufferAge)
	win.Redraw(func(*ClipRect) {})

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	win.DirtyBackBuffer()
	backend.NextBufferAge = 1
	if _, clipped := paintClip(win); clipped {
		t.Error("foreign pixels on the back buffer must force a full repaint")
	}
}

func TestRealizeAfterUnrealizeRestartsWarmup(t *testing.T) {
	backend, win, _ := newWindowRig(t, FeatureBufferAge)
	win.Redraw(func(*ClipRect) {})

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	backend.NextBufferAge = 1
	if _, clipped := paintClip(win); !clipped {
		t.Fatal("expected a clipped frame before unrealizing")
	}

	win.Unrealize()
	if win.Onscreen() != nil {
		t.Fatal("Unrealize must drop the back buffer")
	}
	if err := win.Realize(); err != nil {
		t.Fatalf("Realize() = %v", err)
	}

	win.AddRedrawClip(&a)
	if _, clipped := paintClip(win); clipped {
		t.Error("a fresh back buffer must repaint in full before clipping again")
	}
}

// --- Debug config ---

func TestDisableClippedRedrawsKeepsDecisionVisible(t *testing.T) {
	backend := NewNullBackend(FeatureBufferAge)
	cfg := DefaultConfig()
	cfg.SyncToVBlank = false
	cfg.WarmupFrames = 0
	cfg.DisableClippedRedraws = true
	win := NewStageWindow(backend, NewBasicStage(320, 240), cfg)
	if err := win.Realize(); err != nil {
		t.Fatalf("Realize() = %v", err)
	}
	on := win.Onscreen().(*NullOnscreen)
	win.Redraw(func(*ClipRect) {})

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	backend.NextBufferAge = 1
	clip, clipped := paintClip(win)
	if !clipped || clip != a {
		t.Errorf("resolved clip = %+v, %v, want %+v passed through", clip, clipped, a)
	}
	if st := win.Stats(); st.ClippedRedraws != 0 || st.FullRedraws != 2 {
		t.Errorf("stats = %+v, want every paint full", st)
	}
	if len(on.ClipsSeen) != 0 {
		t.Error("no scissor may be pushed while clipping is disabled")
	}
	// The presentation still carries the damage hint.
	if len(on.SwapDamage) != 1 || on.SwapDamage[0] != a {
		t.Errorf("SwapDamage = %+v, want [%+v]", on.SwapDamage, a)
	}
}

func TestShowRedrawHintsOutlinesClip(t *testing.T) {
	backend := NewNullBackend(FeatureBufferAge)
	cfg := DefaultConfig()
	cfg.SyncToVBlank = false
	cfg.WarmupFrames = 0
	cfg.ShowRedrawHints = true
	win := NewStageWindow(backend, NewBasicStage(320, 240), cfg)
	if err := win.Realize(); err != nil {
		t.Fatalf("Realize() = %v", err)
	}
	on := win.Onscreen().(*NullOnscreen)

	win.Redraw(func(*ClipRect) {})
	if len(on.Draws) != 0 {
		t.Fatal("a full frame resolves no clip, so there is nothing to outline")
	}

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	backend.NextBufferAge = 1
	win.Redraw(func(*ClipRect) {})

	if len(on.Draws) != 4 {
		t.Fatalf("hint draws = %d, want the 4 outline edges", len(on.Draws))
	}
	for i, d := range on.Draws {
		if d.Color != [4]uint8{0xff, 0x00, 0x00, 0xff} {
			t.Errorf("draw %d color = %v, want opaque red", i, d.Color)
		}
	}
	top := on.Draws[0]
	if top.X1 != 40 || top.Y1 != 40 || top.X2 != 100 || top.Y2 != 41 {
		t.Errorf("top edge = (%v,%v)-(%v,%v), want (40,40)-(100,41)", top.X1, top.Y1, top.X2, top.Y2)
	}
	if !on.Projection().Equal(Matrix4Identity()) {
		t.Error("the hint must restore the back buffer's matrices")
	}

	win.Unrealize()
	if backend.PipelinesDeleted != backend.PipelinesCreated {
		t.Error("Unrealize must release the hint pipeline")
	}
}

// --- Paint introspection ---

func TestRedrawClipBoundsOnlyDuringClippedPaint(t *testing.T) {
	backend, win, _ := newWindowRig(t, FeatureBufferAge)
	if _, ok := win.RedrawClipBounds(); ok {
		t.Error("no clip may be reported outside a paint")
	}
	win.Redraw(func(*ClipRect) {
		if _, ok := win.RedrawClipBounds(); ok {
			t.Error("a full paint must report no clip bounds")
		}
	})

	a := ClipRect{40, 40, 60, 60}
	win.AddRedrawClip(&a)
	backend.NextBufferAge = 1
	win.Redraw(func(*ClipRect) {
		got, ok := win.RedrawClipBounds()
		if !ok || got != a {
			t.Errorf("RedrawClipBounds = %+v, %v, want %+v", got, ok, a)
		}
	})
	if _, ok := win.RedrawClipBounds(); ok {
		t.Error("clip bounds must clear when the paint ends")
	}
}
