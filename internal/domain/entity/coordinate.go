package entity

// Space tags which coordinate system a point is expressed in.
type Space string

const (
	// SpaceVirtual is the fixed resolution the model reasons about.
	SpaceVirtual Space = "virtual"
	// SpaceReal is the hardware resolution actions are executed at.
	SpaceReal Space = "real"
)

type Point struct {
	X     int
	Y     int
	Space Space
}

// DisplayProfile binds the detected hardware resolution to the virtual
// resolution chosen for the session. Immutable once created.
type DisplayProfile struct {
	RealWidth     int
	RealHeight    int
	VirtualWidth  int
	VirtualHeight int
}
