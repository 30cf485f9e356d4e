package compliance

// Messages holds the user-facing instruction text for every deficiency.
// Instruction text is data, not logic: swapping a Messages value (for a
// different locale, say) never touches the evaluation control flow.
type Messages struct {
	NoFace       string
	MoveCloser   string
	MoveBack     string
	MoveUp       string
	MoveDown     string
	MoveLeft     string
	MoveRight    string
	FaceCamera   string // yaw out of bounds
	KeepUpright  string // roll out of bounds
	LookStraight string // pitch out of bounds
	ShowShoulder string
}

// DefaultMessages returns the built-in English instruction set
func DefaultMessages() Messages {
	return Messages{
		NoFace:       "No face detected, please face the camera",
		MoveCloser:   "Move closer",
		MoveBack:     "Move back a little",
		MoveUp:       "Move up",
		MoveDown:     "Move down",
		MoveLeft:     "Move left a little",
		MoveRight:    "Move right a little",
		FaceCamera:   "Turn to face the camera",
		KeepUpright:  "Keep your head upright",
		LookStraight: "Look straight ahead",
		ShowShoulder: "Step back so your shoulders are visible",
	}
}
