package glbackend

import (
	"strings"
	"testing"
)

// The GL calls need a live context, so tests cover the context-free parts:
// shader source generation and pipeline state handling.

// --- Shader sources ---

func TestConvolutionShaderSourceTaps(t *testing.T) {
	tests := []struct {
		radius int
		wants  []string
	}{
		{0, []string{"float factors[1]", "i < 1", "float(i - 0)"}},
		{3, []string{"float factors[7]", "i < 7", "float(i - 3)"}},
		{12, []string{"float factors[25]", "i < 25", "float(i - 12)"}},
	}
	for _, tt := range tests {
		src := convolutionShaderSource(tt.radius)
		if !strings.Contains(src, "#version 410 core") {
			t.Errorf("radius %d: missing the version header", tt.radius)
		}
		for _, want := range tt.wants {
			if !strings.Contains(src, want) {
				t.Errorf("radius %d source missing %q", tt.radius, want)
			}
		}
	}
}

func TestShaderSourcesDeclareExpectedUniforms(t *testing.T) {
	for _, want := range []string{"uniform mat4 mvp", "uniform float flip_y"} {
		if !strings.Contains(vertexShaderSource, want) {
			t.Errorf("vertex shader missing %q", want)
		}
	}
	for _, want := range []string{"uniform sampler2D tex", "uniform bool use_texture", "uniform vec4 color"} {
		if !strings.Contains(texturedShaderSource, want) {
			t.Errorf("textured shader missing %q", want)
		}
	}
	for _, want := range []string{"uniform sampler2D tex", "uniform vec2 pixel_step", "uniform vec4 color"} {
		if !strings.Contains(convolutionShaderSource(2), want) {
			t.Errorf("convolution shader missing %q", want)
		}
	}
}

// --- Pipeline state ---

func TestPipelineCopyIsIndependent(t *testing.T) {
	p := &glPipeline{radius: 2, color: [4]float32{1, 1, 1, 1}}
	p.SetUniform1fv("factors", []float32{1, 2, 3, 4, 5})
	p.SetUniform2f("pixel_step", 0.5, 0)

	clone := p.Copy().(*glPipeline)
	if clone.radius != 2 || clone.uniform2f["pixel_step"] != [2]float32{0.5, 0} {
		t.Error("a copy starts from the original's state")
	}

	clone.SetUniform1fv("factors", []float32{9})
	clone.SetColor(0x80, 0x80, 0x80, 0x80)
	if len(p.uniform1fv["factors"]) != 5 {
		t.Error("mutating a copy must not touch the original's uniforms")
	}
	if p.color != [4]float32{1, 1, 1, 1} {
		t.Error("mutating a copy must not touch the original's color")
	}
}

func TestPipelineSetColorNormalizes(t *testing.T) {
	p := &glPipeline{}
	p.SetColor(0xff, 0x00, 0x80, 0xff)
	want := [4]float32{1, 0, float32(0x80) / 0xff, 1}
	if p.color != want {
		t.Errorf("color = %v, want %v", p.color, want)
	}
}

func TestPipelineSetTextureNilUnbinds(t *testing.T) {
	p := &glPipeline{}
	p.SetTexture(&glTexture{id: 7, w: 4, h: 4})
	if p.tex == nil {
		t.Fatal("SetTexture did not bind")
	}
	p.SetTexture(nil)
	if p.tex != nil {
		t.Error("SetTexture(nil) must unbind")
	}
}
