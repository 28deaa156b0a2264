package offstage

import "testing"

// --- Camera management ---

func TestNewCameraAssignsIndexAndAge(t *testing.T) {
	s := NewBasicStage(640, 480)
	if s.CamerasAge() != 0 {
		t.Errorf("fresh stage CamerasAge = %d, want 0", s.CamerasAge())
	}

	a := s.NewCamera(Rect{0, 0, 640, 480})
	b := s.NewCamera(Rect{0, 0, 320, 240})

	if a.Index() != 0 || b.Index() != 1 {
		t.Errorf("indexes = %d, %d, want 0, 1", a.Index(), b.Index())
	}
	if s.CameraCount() != 2 {
		t.Errorf("CameraCount = %d, want 2", s.CameraCount())
	}
	if s.CamerasAge() != 2 {
		t.Errorf("CamerasAge = %d, want 2 after two additions", s.CamerasAge())
	}
}

func TestFirstCameraBecomesCurrent(t *testing.T) {
	s := NewBasicStage(640, 480)
	if s.CurrentCamera() != nil {
		t.Error("stage without cameras should have no current camera")
	}
	a := s.NewCamera(Rect{0, 0, 640, 480})
	if s.CurrentCamera() != Camera(a) {
		t.Error("first camera should become current")
	}
}

func TestRemoveCameraReindexes(t *testing.T) {
	s := NewBasicStage(640, 480)
	a := s.NewCamera(Rect{0, 0, 640, 480})
	b := s.NewCamera(Rect{0, 0, 320, 240})
	c := s.NewCamera(Rect{0, 0, 160, 120})
	age := s.CamerasAge()

	s.RemoveCamera(b)

	if s.CameraCount() != 2 {
		t.Fatalf("CameraCount = %d, want 2", s.CameraCount())
	}
	if a.Index() != 0 || c.Index() != 1 {
		t.Errorf("indexes after removal = %d, %d, want 0, 1", a.Index(), c.Index())
	}
	if s.CamerasAge() != age+1 {
		t.Errorf("CamerasAge = %d, want %d", s.CamerasAge(), age+1)
	}
	if s.Camera(1) != Camera(c) {
		t.Error("Camera(1) should be the reindexed camera")
	}
}

func TestRemoveCurrentCameraFallsBack(t *testing.T) {
	s := NewBasicStage(640, 480)
	a := s.NewCamera(Rect{0, 0, 640, 480})
	b := s.NewCamera(Rect{0, 0, 320, 240})

	s.RemoveCamera(a)
	if s.CurrentCamera() != Camera(b) {
		t.Error("removing the current camera should fall back to the first remaining one")
	}

	s.RemoveCamera(b)
	if s.CurrentCamera() != nil {
		t.Error("removing the last camera should leave no current camera")
	}
}

func TestRemoveForeignCameraPanics(t *testing.T) {
	s := NewBasicStage(640, 480)
	other := NewBasicStage(640, 480)
	cam := other.NewCamera(Rect{0, 0, 640, 480})

	defer func() {
		if recover() == nil {
			t.Error("removing a camera from another stage should panic")
		}
	}()
	s.RemoveCamera(cam)
}

// --- Projection and size ---

func TestStageProjectionIsYDown(t *testing.T) {
	s := NewBasicStage(640, 480)
	m := s.ProjectionMatrix()
	// Stage origin maps to the top-left NDC corner.
	nx, ny := m.TransformPoint(0, 0)
	if nx != -1 || ny != 1 {
		t.Errorf("stage origin = (%v,%v), want (-1,1)", nx, ny)
	}
	nx, ny = m.TransformPoint(640, 480)
	if nx != 1 || ny != -1 {
		t.Errorf("stage far corner = (%v,%v), want (1,-1)", nx, ny)
	}
}

func TestStageResizeRebuildsProjection(t *testing.T) {
	s := NewBasicStage(640, 480)
	s.Resize(800, 600)

	w, h := s.Size()
	if w != 800 || h != 600 {
		t.Errorf("Size = %vx%v, want 800x600", w, h)
	}
	nx, ny := s.ProjectionMatrix().TransformPoint(800, 600)
	if nx != 1 || ny != -1 {
		t.Errorf("resized far corner = (%v,%v), want (1,-1)", nx, ny)
	}
}

func TestSetProjectionMatrixOverrides(t *testing.T) {
	s := NewBasicStage(640, 480)
	custom := Matrix4Identity().Scaled(2, 2, 1)
	s.SetProjectionMatrix(custom)
	if !s.ProjectionMatrix().Equal(custom) {
		t.Error("SetProjectionMatrix should replace the stage projection")
	}
}
