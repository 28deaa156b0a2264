package glbackend

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/phanxgames/offstage"
)

// drawTarget is the render-target state shared by offscreen framebuffers
// and the window: viewport, matrices, and a scissor-backed clip stack.
// Viewport and clip coordinates are top-left origin. Rendering into a
// texture flips Y so texture row zero is the top row, which keeps sampled
// captures upright without per-draw adjustment.
type drawTarget struct {
	backend *Backend
	fbo     uint32
	w, h    int

	// flip is -1 when rendering into a texture, 1 for the window.
	flip float32

	viewportX, viewportY          float64
	viewportWidth, viewportHeight float64

	projection offstage.Matrix4
	modelview  offstage.Matrix4

	clips []offstage.ClipRect
}

// init puts the target in the freshly created state.
func (t *drawTarget) init(b *Backend, fbo uint32, w, h int, flip float32) {
	t.backend = b
	t.fbo = fbo
	t.w = w
	t.h = h
	t.flip = flip
	t.clips = t.clips[:0]
	t.viewportX = 0
	t.viewportY = 0
	t.viewportWidth = float64(w)
	t.viewportHeight = float64(h)
	t.projection = offstage.Matrix4Identity()
	t.modelview = offstage.Matrix4Identity()
}

// Width implements offstage.Framebuffer.
func (t *drawTarget) Width() int { return t.w }

// Height implements offstage.Framebuffer.
func (t *drawTarget) Height() int { return t.h }

// SetViewport implements offstage.Framebuffer.
func (t *drawTarget) SetViewport(x, y, width, height float64) {
	t.viewportX = x
	t.viewportY = y
	t.viewportWidth = width
	t.viewportHeight = height
}

// Viewport implements offstage.Framebuffer.
func (t *drawTarget) Viewport() (x, y, width, height float64) {
	return t.viewportX, t.viewportY, t.viewportWidth, t.viewportHeight
}

// SetProjection implements offstage.Framebuffer.
func (t *drawTarget) SetProjection(m offstage.Matrix4) { t.projection = m }

// Projection implements offstage.Framebuffer.
func (t *drawTarget) Projection() offstage.Matrix4 { return t.projection }

// SetModelview implements offstage.Framebuffer.
func (t *drawTarget) SetModelview(m offstage.Matrix4) { t.modelview = m }

// Modelview implements offstage.Framebuffer.
func (t *drawTarget) Modelview() offstage.Matrix4 { return t.modelview }

// Clear implements offstage.Framebuffer, ignoring the clip stack.
func (t *drawTarget) Clear() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.Disable(gl.SCISSOR_TEST)
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// PushClip implements offstage.Framebuffer.
func (t *drawTarget) PushClip(c offstage.ClipRect) {
	t.clips = append(t.clips, c)
}

// PopClip implements offstage.Framebuffer.
func (t *drawTarget) PopClip() {
	if len(t.clips) == 0 {
		panic("offstage: cannot pop an empty clip stack")
	}
	t.clips = t.clips[:len(t.clips)-1]
}

// bind makes this target current: framebuffer, viewport, scissor.
func (t *drawTarget) bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)

	vx := int32(t.viewportX)
	vy := int32(t.viewportY)
	vw := int32(t.viewportWidth)
	vh := int32(t.viewportHeight)
	if t.flip > 0 {
		vy = int32(t.h) - vy - vh
	}
	gl.Viewport(vx, vy, vw, vh)

	if len(t.clips) == 0 {
		gl.Disable(gl.SCISSOR_TEST)
		return
	}
	clip := t.clips[0]
	for _, c := range t.clips[1:] {
		clip = clip.Intersect(c)
	}
	sy := int32(clip.Y)
	if t.flip > 0 {
		sy = int32(t.h - clip.Y - clip.Height)
	}
	gl.Enable(gl.SCISSOR_TEST)
	gl.Scissor(int32(clip.X), sy, int32(clip.Width), int32(clip.Height))
}

// DrawRect implements offstage.Framebuffer.
func (t *drawTarget) DrawRect(p offstage.Pipeline, x1, y1, x2, y2 float64) {
	gp := p.(*glPipeline)
	b := t.backend

	if err := b.ensureDrawState(); err != nil {
		offstage.Logger().WithError(err).Warn("glbackend: unable to build the textured program")
		return
	}

	var prog *program
	if gp.radius >= 0 {
		prog = b.convPrograms[gp.radius]
	} else {
		prog = b.texProgram
	}
	if prog == nil {
		return
	}

	t.bind()
	gl.UseProgram(prog.id)

	mvp := t.projection.Mul(t.modelview).Float32()
	gl.UniformMatrix4fv(prog.loc("mvp"), 1, false, &mvp[0])
	gl.Uniform1f(prog.loc("flip_y"), t.flip)
	gl.Uniform4f(prog.loc("color"), gp.color[0], gp.color[1], gp.color[2], gp.color[3])

	gl.ActiveTexture(gl.TEXTURE0)
	gl.Uniform1i(prog.loc("tex"), 0)
	textured := gp.tex != nil && gp.tex.id != 0
	if textured {
		gl.BindTexture(gl.TEXTURE_2D, gp.tex.id)
	} else {
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}

	if gp.radius >= 0 {
		if step, ok := gp.uniform2f["pixel_step"]; ok {
			gl.Uniform2f(prog.loc("pixel_step"), step[0], step[1])
		}
		if factors, ok := gp.uniform1fv["factors"]; ok && len(factors) > 0 {
			gl.Uniform1fv(prog.loc("factors"), int32(len(factors)), &factors[0])
		}
	} else {
		useTex := int32(0)
		if textured {
			useTex = 1
		}
		gl.Uniform1i(prog.loc("use_texture"), useTex)
	}

	// Colors are premultiplied throughout.
	if gp.blendDisabled {
		gl.Disable(gl.BLEND)
	} else {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.ONE, gl.ONE_MINUS_SRC_ALPHA)
	}
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)

	verts := [16]float32{
		float32(x1), float32(y1), 0, 0,
		float32(x2), float32(y1), 1, 0,
		float32(x2), float32(y2), 1, 1,
		float32(x1), float32(y2), 0, 1,
	}
	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts[:]), gl.STREAM_DRAW)
	gl.DrawElementsWithOffset(gl.TRIANGLES, 6, gl.UNSIGNED_SHORT, 0)
	gl.BindVertexArray(0)
}

// glFramebuffer is an offscreen render target over an FBO.
type glFramebuffer struct {
	drawTarget
}

// Delete implements offstage.Framebuffer. The attached texture outlives it.
func (f *glFramebuffer) Delete() {
	if f.fbo != 0 {
		gl.DeleteFramebuffers(1, &f.fbo)
		f.fbo = 0
	}
}

// glPipeline is the offstage.Pipeline handed out by Backend. Programs are
// shared per kind and owned by the backend; the pipeline carries the
// values uploaded at draw time.
type glPipeline struct {
	backend *Backend

	// radius is the convolution tap radius, or -1 for a plain textured
	// pipeline.
	radius int

	tex           *glTexture
	color         [4]float32
	uniform1fv    map[string][]float32
	uniform2f     map[string][2]float32
	blendDisabled bool
}

// Copy implements offstage.Pipeline.
func (p *glPipeline) Copy() offstage.Pipeline {
	clone := &glPipeline{
		backend:       p.backend,
		radius:        p.radius,
		tex:           p.tex,
		color:         p.color,
		blendDisabled: p.blendDisabled,
	}
	if p.uniform1fv != nil {
		clone.uniform1fv = make(map[string][]float32, len(p.uniform1fv))
		for name, values := range p.uniform1fv {
			clone.uniform1fv[name] = append([]float32(nil), values...)
		}
	}
	if p.uniform2f != nil {
		clone.uniform2f = make(map[string][2]float32, len(p.uniform2f))
		for name, value := range p.uniform2f {
			clone.uniform2f[name] = value
		}
	}
	return clone
}

// SetTexture implements offstage.Pipeline.
func (p *glPipeline) SetTexture(tex offstage.Texture) {
	if tex == nil {
		p.tex = nil
		return
	}
	p.tex = tex.(*glTexture)
}

// SetColor implements offstage.Pipeline.
func (p *glPipeline) SetColor(r, g, b, a uint8) {
	p.color = [4]float32{
		float32(r) / 0xff,
		float32(g) / 0xff,
		float32(b) / 0xff,
		float32(a) / 0xff,
	}
}

// SetUniform1fv implements offstage.Pipeline.
func (p *glPipeline) SetUniform1fv(name string, values []float32) {
	if p.uniform1fv == nil {
		p.uniform1fv = make(map[string][]float32, 1)
	}
	p.uniform1fv[name] = append([]float32(nil), values...)
}

// SetUniform2f implements offstage.Pipeline.
func (p *glPipeline) SetUniform2f(name string, x, y float32) {
	if p.uniform2f == nil {
		p.uniform2f = make(map[string][2]float32, 1)
	}
	p.uniform2f[name] = [2]float32{x, y}
}

// DisableBlend implements offstage.Pipeline.
func (p *glPipeline) DisableBlend() {
	p.blendDisabled = true
}

// Delete implements offstage.Pipeline.
func (p *glPipeline) Delete() {
	p.tex = nil
	p.uniform1fv = nil
	p.uniform2f = nil
}
