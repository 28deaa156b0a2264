// Package glbackend provides an OpenGL 4.1 backend for the offstage
// pipeline, windowed through GLFW.
//
// The application creates the GLFW window and hands it to New, which makes
// the context current and initializes OpenGL. CreateOnscreen adopts the
// window's default framebuffer. GLFW exposes no buffer age or partial
// presentation, so the backend advertises shaders and swap events only;
// swap completion is synthesized after the blocking buffer swap returns.
package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/phanxgames/offstage"
)

// Backend implements offstage.Backend on OpenGL 4.1.
type Backend struct {
	window  *glfw.Window
	adopted bool

	texProgram   *program
	convPrograms map[int]*program

	vao, vbo, ebo uint32
	drawReady     bool

	stack []offstage.Framebuffer
}

// New makes window's context current, initializes OpenGL, and returns a
// backend rendering through it.
func New(window *glfw.Window) (*Backend, error) {
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("glbackend: initializing OpenGL: %w", err)
	}
	return &Backend{window: window}, nil
}

// Features implements offstage.Backend.
func (b *Backend) Features() offstage.Features {
	return offstage.FeatureShaders | offstage.FeatureSwapEvents
}

// CreateTexture implements offstage.Backend.
func (b *Backend) CreateTexture(width, height int) (offstage.Texture, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", offstage.ErrTextureAllocation, width, height)
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return nil, fmt.Errorf("%w: %dx%d: GL error 0x%04x",
			offstage.ErrTextureAllocation, width, height, glErr)
	}
	return &glTexture{id: id, w: width, h: height}, nil
}

// CreateOffscreen implements offstage.Backend.
func (b *Backend) CreateOffscreen(tex offstage.Texture) (offstage.Framebuffer, error) {
	gt, ok := tex.(*glTexture)
	if !ok || gt.id == 0 {
		return nil, fmt.Errorf("%w: texture is not usable here", offstage.ErrOffscreenAllocation)
	}

	var id uint32
	gl.GenFramebuffers(1, &id)
	gl.BindFramebuffer(gl.FRAMEBUFFER, id)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, gt.id, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &id)
		return nil, fmt.Errorf("%w: status 0x%04x", offstage.ErrOffscreenAllocation, status)
	}

	fb := &glFramebuffer{}
	fb.init(b, id, gt.w, gt.h, -1)
	return fb, nil
}

// CreatePipeline implements offstage.Backend.
func (b *Backend) CreatePipeline() offstage.Pipeline {
	return &glPipeline{
		backend: b,
		radius:  -1,
		color:   [4]float32{1, 1, 1, 1},
	}
}

// CreateConvolutionPipeline implements offstage.Backend. One program is
// compiled per radius and shared by every pipeline of that radius.
func (b *Backend) CreateConvolutionPipeline(radius int) (offstage.Pipeline, error) {
	if radius < 0 {
		radius = 0
	}
	if _, err := b.convolutionProgram(radius); err != nil {
		return nil, err
	}
	return &glPipeline{
		backend: b,
		radius:  radius,
		color:   [4]float32{1, 1, 1, 1},
	}, nil
}

func (b *Backend) convolutionProgram(radius int) (*program, error) {
	if p, ok := b.convPrograms[radius]; ok {
		return p, nil
	}
	id, err := createShaderProgram(vertexShaderSource, convolutionShaderSource(radius))
	if err != nil {
		return nil, fmt.Errorf("%w: radius %d: %v", offstage.ErrShaderCompile, radius, err)
	}
	p := &program{id: id}
	if b.convPrograms == nil {
		b.convPrograms = make(map[int]*program)
	}
	b.convPrograms[radius] = p
	return p, nil
}

// PushFramebuffer implements offstage.Backend.
func (b *Backend) PushFramebuffer(fb offstage.Framebuffer) {
	b.stack = append(b.stack, fb)
}

// PopFramebuffer implements offstage.Backend.
func (b *Backend) PopFramebuffer() {
	if len(b.stack) == 0 {
		panic("offstage: cannot pop an empty framebuffer stack")
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// DrawFramebuffer implements offstage.Backend.
func (b *Backend) DrawFramebuffer() offstage.Framebuffer {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// ensureDrawState lazily builds the shared quad buffers and the textured
// program. Requires the context to be current.
func (b *Backend) ensureDrawState() error {
	if b.drawReady {
		return nil
	}

	id, err := createShaderProgram(vertexShaderSource, texturedShaderSource)
	if err != nil {
		return fmt.Errorf("%w: %v", offstage.ErrShaderCompile, err)
	}
	b.texProgram = &program{id: id}

	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)

	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)

	gl.GenBuffers(1, &b.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	indices := []uint16{0, 1, 2, 0, 2, 3}
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*2, gl.Ptr(indices), gl.STATIC_DRAW)

	// Vertex layout: position (2 floats) + texcoord (2 floats).
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 16, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 16, 8)
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)

	b.drawReady = true
	return nil
}

// --- Shaders ---

const vertexShaderSource = `
#version 410 core
layout (location = 0) in vec2 a_pos;
layout (location = 1) in vec2 a_tex_coord;

uniform mat4 mvp;
uniform float flip_y;

out vec2 tex_coord;

void main() {
    vec4 pos = mvp * vec4(a_pos, 0.0, 1.0);
    pos.y *= flip_y;
    gl_Position = pos;
    tex_coord = a_tex_coord;
}
`

const texturedShaderSource = `
#version 410 core
in vec2 tex_coord;

uniform sampler2D tex;
uniform bool use_texture;
uniform vec4 color;

out vec4 frag_color;

void main() {
    vec4 s = vec4(1.0);
    if (use_texture) {
        s = texture(tex, tex_coord);
    }
    frag_color = s * color;
}
`

// convolutionShaderSource builds a fragment shader running a one
// dimensional convolution of 2*radius+1 taps along pixel_step. The tap
// count is baked in because GLSL uniform arrays have a fixed length.
func convolutionShaderSource(radius int) string {
	taps := radius*2 + 1
	return fmt.Sprintf(`
#version 410 core
in vec2 tex_coord;

uniform sampler2D tex;
uniform vec2 pixel_step;
uniform float factors[%d];
uniform vec4 color;

out vec4 frag_color;

void main() {
    vec4 sum = vec4(0.0);
    for (int i = 0; i < %d; i++) {
        sum += texture(tex, tex_coord + pixel_step * float(i - %d)) * factors[i];
    }
    frag_color = sum * color;
}
`, taps, taps, radius)
}

// program is a linked shader program with cached uniform locations.
type program struct {
	id        uint32
	locations map[string]int32
}

func (p *program) loc(name string) int32 {
	if l, ok := p.locations[name]; ok {
		return l
	}
	l := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	if p.locations == nil {
		p.locations = make(map[string]int32)
	}
	p.locations[name] = l
	return l
}

// createShaderProgram compiles and links a shader program.
func createShaderProgram(vertexSource, fragmentSource string) (uint32, error) {
	vertexShader, err := compileShader(gl.VERTEX_SHADER, vertexSource)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %v", err)
	}
	fragmentShader, err := compileShader(gl.FRAGMENT_SHADER, fragmentSource)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, fmt.Errorf("fragment shader: %v", err)
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vertexShader)
	gl.AttachShader(prog, fragmentShader)
	gl.LinkProgram(prog)

	// Shaders are linked into the program now.
	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		defer gl.DeleteProgram(prog)
		var logLength int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := make([]byte, logLength+1)
		gl.GetProgramInfoLog(prog, logLength, nil, &infoLog[0])
		return 0, fmt.Errorf("linking failed: %s", string(infoLog))
	}
	return prog, nil
}

func compileShader(kind uint32, source string) (uint32, error) {
	shader := gl.CreateShader(kind)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		defer gl.DeleteShader(shader)
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := make([]byte, logLength+1)
		gl.GetShaderInfoLog(shader, logLength, nil, &infoLog[0])
		return 0, fmt.Errorf("compilation failed: %s", string(infoLog))
	}
	return shader, nil
}

// --- Texture ---

// glTexture is the offstage.Texture handed out by Backend.
type glTexture struct {
	id   uint32
	w, h int
}

// Width implements offstage.Texture.
func (t *glTexture) Width() int { return t.w }

// Height implements offstage.Texture.
func (t *glTexture) Height() int { return t.h }

// Delete implements offstage.Texture.
func (t *glTexture) Delete() {
	if t.id == 0 {
		return
	}
	gl.DeleteTextures(1, &t.id)
	t.id = 0
}
