package physics

import "math"

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func (s Side) Opponent() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

type Direction string

const (
	DirNone Direction = ""
	DirUp   Direction = "up"
	DirDown Direction = "down"
)

// Input is one side's asserted movement for a single tick.
type Input struct {
	Direction Direction
}

type Ball struct {
	X, Y   float64
	VX, VY float64
}

// State is a full simulation frame. It is a plain value: Step copies it,
// mutates the copy and returns it, so two sessions can never alias state.
type State struct {
	Ball        Ball
	PaddleLeft  float64 // top edge, vertical offset
	PaddleRight float64
	ScoreLeft   int
	ScoreRight  int
	Winner      Side // "" until a side reaches TargetScore
}

// NewState centers the ball and paddles. The ball serves flat toward the
// right side.
func NewState() State {
	return State{
		Ball:        Ball{X: Width / 2, Y: Height / 2, VX: BallSpeedX, VY: 0},
		PaddleLeft:  (Height - PaddleHeight) / 2,
		PaddleRight: (Height - PaddleHeight) / 2,
	}
}

// Step advances the simulation by dt seconds. Pure and deterministic:
// identical (state, inputs, dt) always produce identical output. Once a
// winner is set the state is frozen.
func Step(s State, left, right Input, dt float64) State {
	if s.Winner != "" {
		return s
	}

	s.PaddleLeft = movePaddle(s.PaddleLeft, left.Direction)
	s.PaddleRight = movePaddle(s.PaddleRight, right.Direction)

	s.Ball.X += s.Ball.VX * dt
	s.Ball.Y += s.Ball.VY * dt

	// Top/bottom walls, elastic. The sign guards keep the flip to at most
	// once per tick even if the ball sits past the edge.
	if s.Ball.Y+BallSize > Height && s.Ball.VY > 0 {
		s.Ball.VY = -s.Ball.VY
	}
	if s.Ball.Y < 0 && s.Ball.VY < 0 {
		s.Ball.VY = -s.Ball.VY
	}

	// Right goal line.
	if s.Ball.X+BallSize >= Width && s.Ball.VX > 0 {
		if paddleBlocks(s.PaddleRight, s.Ball.Y) {
			s = deflect(s, s.PaddleRight, dt)
		} else {
			s.ScoreLeft++
			s = serve(s)
		}
	}

	// Left goal line.
	if s.Ball.X <= 0 && s.Ball.VX < 0 {
		if paddleBlocks(s.PaddleLeft, s.Ball.Y) {
			s = deflect(s, s.PaddleLeft, dt)
		} else {
			s.ScoreRight++
			s = serve(s)
		}
	}

	if s.ScoreLeft >= TargetScore {
		s.Winner = SideLeft
	} else if s.ScoreRight >= TargetScore {
		s.Winner = SideRight
	}
	return s
}

func movePaddle(y float64, dir Direction) float64 {
	switch dir {
	case DirUp:
		y -= PaddleStep
	case DirDown:
		y += PaddleStep
	}
	if y < 0 {
		return 0
	}
	if y > Height-PaddleHeight {
		return Height - PaddleHeight
	}
	return y
}

func paddleBlocks(paddleY, ballY float64) bool {
	return ballY > paddleY && ballY < paddleY+PaddleHeight
}

// deflect bounces the ball off a paddle. The outgoing vertical speed is
// driven only by where on the paddle the ball landed, not by the incoming
// angle: vy = offset-from-center * BounceGain.
func deflect(s State, paddleY float64, dt float64) State {
	s.Ball.X -= s.Ball.VX * dt // back the ball out of the paddle
	s.Ball.VX = -s.Ball.VX
	s.Ball.VY = (s.Ball.Y - (paddleY + PaddleHeight/2)) * BounceGain
	return s
}

// serve re-centers the ball after a goal. Horizontal direction inverts so
// play resumes toward the opposite end; the serve is flat.
func serve(s State) State {
	s.Ball.X = Width / 2
	s.Ball.Y = Height / 2
	s.Ball.VX = -s.Ball.VX
	s.Ball.VY = 0
	return s
}

// Corrupted reports whether the state has left the numeric domain. The
// session treats this as fatal for the match.
func Corrupted(s State) bool {
	for _, v := range []float64{s.Ball.X, s.Ball.Y, s.Ball.VX, s.Ball.VY, s.PaddleLeft, s.PaddleRight} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
