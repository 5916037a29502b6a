package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief a 4x4 matrix stored column-major, element (row r, column c)
 * lives at Data[c*4+r]. This is the layout GLSL expects for mat4.
 */
type Mat4 struct {
	Data [16]float32
}

/** @brief a 3x3 matrix stored column-major, used for normal matrices. */
type Mat3 struct {
	Data [9]float32
}

/**
 * @brief Represents a single vertex of a lit, textured mesh.
 * The layout is tightly packed: 12 bytes position, 12 bytes normal,
 * 8 bytes texture coordinate.
 */
type Vertex3D struct {
	Position Vec3
	Normal   Vec3
	Texcoord Vec2
}

// Vertex3DSize is the stride of a Vertex3D in a vertex buffer.
const Vertex3DSize = 32

/**
 * @brief Represents the transform of an object in the world.
 * Transforms can have a parent whose own transform is then
 * taken into account. The properties should be edited through the
 * setters so that the local matrix is regenerated.
 */
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
	// IsDirty is set whenever position, rotation or scale change.
	IsDirty bool
	Local   Mat4
	Parent  *Transform
}
