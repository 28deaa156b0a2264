package offstage

// Actor is the paintable collaborator an effect attaches to. The scene-graph
// object model lives outside this package; effects only see its paint
// surface.
type Actor interface {
	// PaintBox returns the actor's paint bounds in stage coordinates and
	// whether the bounds are known. Unknown bounds make effects capture the
	// full camera viewport instead.
	PaintBox() (Rect, bool)

	// PaintOpacity is the actor's composited opacity at paint time.
	PaintOpacity() uint8

	// OpacityOverride returns the current paint opacity override, or -1 when
	// none is set.
	OpacityOverride() int

	// SetOpacityOverride forces PaintOpacity to the given value. Pass -1 to
	// clear. Effects use this to capture actors at full opacity and apply
	// the real opacity when compositing the capture.
	SetOpacityOverride(int)

	// Paint draws the actor to the backend's current draw framebuffer.
	Paint()
}

// Camera is one view onto the stage. Effects key their cached render
// targets by camera, so a camera must report a stable index and bump its
// age whenever its view changes.
type Camera interface {
	// Index is the camera's position in the stage's camera list.
	Index() int

	// Age increments every time the camera's view changes. Cached captures
	// made under an older age are stale.
	Age() int

	// Viewport is the region of the stage this camera shows, in stage
	// coordinates.
	Viewport() Rect
}

// Stage is the root of the view hierarchy as effects and the stage window
// see it: a size, a projection, and a set of cameras.
type Stage interface {
	// CurrentCamera is the camera being painted right now. Only valid
	// during a paint.
	CurrentCamera() Camera

	// Camera returns the camera at the given index.
	Camera(index int) Camera

	// CameraCount is the number of active cameras.
	CameraCount() int

	// CamerasAge increments whenever a camera is added or removed. Cached
	// state tables built under an older age are invalid wholesale.
	CamerasAge() int

	// ProjectionMatrix is the stage's base projection.
	ProjectionMatrix() Matrix4

	// Size is the stage size in stage coordinates.
	Size() (width, height float64)
}

// BasicStage is a ready-made Stage for applications that do not bring their
// own scene graph. It keeps a camera list, bumps the cameras age on
// add/remove, and exposes an orthographic projection over its size.
type BasicStage struct {
	width, height float64
	projection    Matrix4
	cameras       []*BasicCamera
	camerasAge    int
	current       *BasicCamera
}

// NewBasicStage creates a stage of the given size with a Y-down
// orthographic projection and no cameras.
func NewBasicStage(width, height float64) *BasicStage {
	return &BasicStage{
		width:      width,
		height:     height,
		projection: Matrix4Ortho(0, width, height, 0, -1, 100),
	}
}

// NewCamera creates a camera over the given viewport, appends it to the
// stage, and returns it. The camera set change invalidates every effect's
// cached state table.
func (s *BasicStage) NewCamera(viewport Rect) *BasicCamera {
	cam := newBasicCamera(len(s.cameras), viewport)
	s.cameras = append(s.cameras, cam)
	s.camerasAge++
	if s.current == nil {
		s.current = cam
	}
	return cam
}

// RemoveCamera detaches cam from the stage. Remaining cameras are
// reindexed. Panics if cam does not belong to this stage.
func (s *BasicStage) RemoveCamera(cam *BasicCamera) {
	for i, c := range s.cameras {
		if c == cam {
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			for j := i; j < len(s.cameras); j++ {
				s.cameras[j].index = j
			}
			s.camerasAge++
			if s.current == cam {
				s.current = nil
				if len(s.cameras) > 0 {
					s.current = s.cameras[0]
				}
			}
			return
		}
	}
	panic("offstage: cannot remove camera that is not on this stage")
}

// SetCurrentCamera marks cam as the one being painted. Paint loops call
// this once per camera pass before painting actors.
func (s *BasicStage) SetCurrentCamera(cam *BasicCamera) {
	s.current = cam
}

// CurrentCamera implements Stage.
func (s *BasicStage) CurrentCamera() Camera {
	if s.current == nil {
		return nil
	}
	return s.current
}

// Camera implements Stage.
func (s *BasicStage) Camera(index int) Camera {
	return s.cameras[index]
}

// CameraCount implements Stage.
func (s *BasicStage) CameraCount() int {
	return len(s.cameras)
}

// CamerasAge implements Stage.
func (s *BasicStage) CamerasAge() int {
	return s.camerasAge
}

// ProjectionMatrix implements Stage.
func (s *BasicStage) ProjectionMatrix() Matrix4 {
	return s.projection
}

// SetProjectionMatrix replaces the stage projection.
func (s *BasicStage) SetProjectionMatrix(m Matrix4) {
	s.projection = m
}

// Size implements Stage.
func (s *BasicStage) Size() (width, height float64) {
	return s.width, s.height
}

// Resize sets the stage size and rebuilds the default projection.
func (s *BasicStage) Resize(width, height float64) {
	s.width = width
	s.height = height
	s.projection = Matrix4Ortho(0, width, height, 0, -1, 100)
}
