package offstage

// Matrix4 is a 4x4 transform in column-major order, the layout GPU APIs
// consume directly:
//
//	| m[0] m[4] m[8]  m[12] |
//	| m[1] m[5] m[9]  m[13] |
//	| m[2] m[6] m[10] m[14] |
//	| m[3] m[7] m[11] m[15] |
type Matrix4 [16]float64

// Matrix4Identity returns the identity matrix.
func Matrix4Identity() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Matrix4Ortho returns an orthographic projection. For a Y-down window
// coordinate system pass top=0, bottom=height.
func Matrix4Ortho(left, right, bottom, top, near, far float64) Matrix4 {
	return Matrix4{
		2 / (right - left), 0, 0, 0,
		0, 2 / (top - bottom), 0, 0,
		0, 0, -2 / (far - near), 0,
		-(right + left) / (right - left),
		-(top + bottom) / (top - bottom),
		-(far + near) / (far - near),
		1,
	}
}

// Mul returns m * n. Transforms compose right-to-left: (m.Mul(n)) applied to
// a point runs n first.
func (m Matrix4) Mul(n Matrix4) Matrix4 {
	var out Matrix4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * n[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// Translated returns m post-multiplied by a translation.
func (m Matrix4) Translated(x, y, z float64) Matrix4 {
	t := Matrix4Identity()
	t[12] = x
	t[13] = y
	t[14] = z
	return m.Mul(t)
}

// Scaled returns m post-multiplied by a scale.
func (m Matrix4) Scaled(sx, sy, sz float64) Matrix4 {
	s := Matrix4Identity()
	s[0] = sx
	s[5] = sy
	s[10] = sz
	return m.Mul(s)
}

// TransformPoint applies m to the point (x, y, 0, 1) and returns the
// projected X and Y.
func (m Matrix4) TransformPoint(x, y float64) (float64, float64) {
	ox := m[0]*x + m[4]*y + m[12]
	oy := m[1]*x + m[5]*y + m[13]
	w := m[3]*x + m[7]*y + m[15]
	if w != 0 && w != 1 {
		ox /= w
		oy /= w
	}
	return ox, oy
}

// Equal reports exact element-wise equality. Transform comparison for cache
// validity is deliberately exact: a matrix rebuilt from identical inputs is
// bit-identical, and near-misses must repaint.
func (m Matrix4) Equal(n Matrix4) bool {
	return m == n
}

// Float32 converts m for upload to APIs that take 32-bit column-major data.
func (m Matrix4) Float32() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}
