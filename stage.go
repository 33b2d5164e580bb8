package staged

// StageID identifies one of the numbered execution stages of a simulation
// step. Lower stages run first; there is no other implicit ordering between
// distinct stage numbers.
type StageID uint8

// StageCount is the number of stages executed per simulation step.
const StageCount = int(^StageID(0)) + 1

// Well-known engine stages. User systems are free to use any stage number;
// these late stages are reserved by convention for the built-in camera and
// render-collection global systems.
const (
	// CameraStage is where camera management runs.
	CameraStage StageID = 249
	// RenderStage is where the frame descriptor for the render frontier is
	// gathered. Almost the last stage, so it sees the step's final state.
	RenderStage StageID = 250
)
