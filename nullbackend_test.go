package offstage

import (
	"errors"
	"testing"
)

// --- Allocation failures ---

func TestFailCountersExpire(t *testing.T) {
	b := NewNullBackend(0)
	b.FailTextures = 2

	for i := 0; i < 2; i++ {
		if _, err := b.CreateTexture(8, 8); !errors.Is(err, ErrTextureAllocation) {
			t.Fatalf("attempt %d: err = %v, want ErrTextureAllocation", i, err)
		}
	}
	if _, err := b.CreateTexture(8, 8); err != nil {
		t.Fatalf("err = %v, want success once the counter expires", err)
	}
	if b.TexturesCreated != 1 {
		t.Errorf("TexturesCreated = %d, want failures uncounted", b.TexturesCreated)
	}
}

func TestOffscreenFailure(t *testing.T) {
	b := NewNullBackend(0)
	tex, _ := b.CreateTexture(8, 8)
	b.FailOffscreens = 1
	if _, err := b.CreateOffscreen(tex); !errors.Is(err, ErrOffscreenAllocation) {
		t.Errorf("err = %v, want ErrOffscreenAllocation", err)
	}
}

// --- Feature gates ---

func TestConvolutionRequiresShaders(t *testing.T) {
	b := NewNullBackend(0)
	if _, err := b.CreateConvolutionPipeline(3); !errors.Is(err, ErrShaderCompile) {
		t.Errorf("err = %v, want ErrShaderCompile", err)
	}

	b.SetFeatures(FeatureShaders)
	if _, err := b.CreateConvolutionPipeline(3); err != nil {
		t.Errorf("err = %v, want success with FeatureShaders", err)
	}
}

func TestSwapRegionRequiresFeature(t *testing.T) {
	b := NewNullBackend(0)
	onscreen, err := b.CreateOnscreen(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("SwapRegion without FeatureSwapRegion should panic")
		}
	}()
	onscreen.SwapRegion(ClipRect{0, 0, 10, 10})
}

func TestBufferAgeRequiresFeature(t *testing.T) {
	b := NewNullBackend(0)
	onscreen, _ := b.CreateOnscreen(100, 100)
	b.NextBufferAge = 3
	if got := onscreen.BufferAge(); got != 0 {
		t.Errorf("BufferAge = %d, want 0 without the feature", got)
	}
	b.SetFeatures(FeatureBufferAge)
	if got := onscreen.BufferAge(); got != 3 {
		t.Errorf("BufferAge = %d, want the scripted 3", got)
	}
}

// --- Double frees ---

func TestDoubleDeletePanics(t *testing.T) {
	b := NewNullBackend(0)
	tex, _ := b.CreateTexture(8, 8)
	fb, _ := b.CreateOffscreen(tex)
	p := b.CreatePipeline()

	tests := []struct {
		name   string
		delete func()
	}{
		{"texture", tex.Delete},
		{"framebuffer", fb.Delete},
		{"pipeline", p.Delete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.delete()
			defer func() {
				if recover() == nil {
					t.Errorf("a second %s delete should panic", tt.name)
				}
			}()
			tt.delete()
		})
	}
}

// --- State recording ---

func TestFramebufferRecordsState(t *testing.T) {
	b := NewNullBackend(0)
	tex, _ := b.CreateTexture(64, 32)
	fb, _ := b.CreateOffscreen(tex)

	if fb.Width() != 64 || fb.Height() != 32 {
		t.Errorf("size = %dx%d, want the texture's 64x32", fb.Width(), fb.Height())
	}
	if x, y, w, h := fb.Viewport(); x != 0 || y != 0 || w != 64 || h != 32 {
		t.Errorf("fresh viewport = (%v,%v,%v,%v), want the full surface", x, y, w, h)
	}

	fb.SetViewport(-10, -20, 100, 200)
	if x, y, w, h := fb.Viewport(); x != -10 || y != -20 || w != 100 || h != 200 {
		t.Errorf("viewport = (%v,%v,%v,%v) after SetViewport", x, y, w, h)
	}

	if !fb.Projection().Equal(Matrix4Identity()) || !fb.Modelview().Equal(Matrix4Identity()) {
		t.Error("fresh framebuffers start with identity matrices")
	}

	fb.Clear()
	fb.Clear()
	if fb.(*NullFramebuffer).Clears != 2 {
		t.Errorf("Clears = %d, want 2", fb.(*NullFramebuffer).Clears)
	}
}

func TestClipStack(t *testing.T) {
	b := NewNullBackend(0)
	tex, _ := b.CreateTexture(64, 64)
	fb, _ := b.CreateOffscreen(tex)
	nfb := fb.(*NullFramebuffer)

	fb.PushClip(ClipRect{0, 0, 10, 10})
	fb.PushClip(ClipRect{2, 2, 4, 4})
	if nfb.ClipDepth() != 2 {
		t.Errorf("ClipDepth = %d, want 2", nfb.ClipDepth())
	}
	fb.PopClip()
	fb.PopClip()
	if nfb.ClipDepth() != 0 {
		t.Errorf("ClipDepth = %d, want 0", nfb.ClipDepth())
	}
	if len(nfb.ClipsSeen) != 2 {
		t.Errorf("ClipsSeen = %d entries, want the full history", len(nfb.ClipsSeen))
	}

	defer func() {
		if recover() == nil {
			t.Error("popping an empty clip stack should panic")
		}
	}()
	fb.PopClip()
}

func TestPipelineCopyIsIndependent(t *testing.T) {
	b := NewNullBackend(FeatureShaders)
	base, err := b.CreateConvolutionPipeline(2)
	if err != nil {
		t.Fatal(err)
	}
	base.SetUniform1fv("factors", []float32{1, 2, 3, 4, 5})
	base.SetColor(1, 2, 3, 4)

	clone := base.Copy().(*NullPipeline)
	if clone.Radius != 2 || clone.Color != [4]uint8{1, 2, 3, 4} {
		t.Error("a copy starts from the original's state")
	}

	clone.SetUniform1fv("factors", []float32{9})
	clone.SetColor(9, 9, 9, 9)
	orig := base.(*NullPipeline)
	if len(orig.Uniform1fv["factors"]) != 5 || orig.Color != [4]uint8{1, 2, 3, 4} {
		t.Error("mutating a copy must not touch the original")
	}
	if b.PipelinesCreated != 2 {
		t.Errorf("PipelinesCreated = %d, want the copy counted", b.PipelinesCreated)
	}
}

func TestCompleteSwapWithoutHandler(t *testing.T) {
	b := NewNullBackend(0)
	onscreen, _ := b.CreateOnscreen(100, 100)
	// Must not panic when nothing is hooked.
	onscreen.(*NullOnscreen).CompleteSwap()
}
