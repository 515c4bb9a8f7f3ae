package physics

// Reference playfield communicated to clients. Rendering scales to the
// actual canvas, the simulation only ever sees these units.
const (
	Width  = 800.0
	Height = 400.0

	BallSize        = 10.0
	PaddleHeight    = 80.0
	PaddleThickness = 10.0

	BallSpeedX = 300.0 // units/sec, horizontal magnitude
	PaddleStep = 5.0   // units per tick while input held
	BounceGain = 4.0   // vy per unit of offset from paddle center

	TargetScore = 5
)
