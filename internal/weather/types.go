package weather

// Keyframe is a value at time T (seconds into a segment). Ease shapes the
// span that starts at this keyframe.
type Keyframe struct {
	T    float64 `yaml:"t" json:"t"`
	V    float64 `yaml:"v" json:"v"`
	Ease string  `yaml:"ease,omitempty" json:"ease,omitempty"` // "linear","smooth","cubic"
}

// Envelope is a list of keyframes sorted by T.
type Envelope struct {
	Keys []Keyframe `yaml:"keys" json:"keys"`
}

// Parameters a segment may automate.
const (
	WindSpeed     = "wind_speed"
	WindDirection = "wind_direction"
	Swell         = "swell"
)

// Segment is one stretch of weather with its own automation.
type Segment struct {
	Name      string              `yaml:"name" json:"name"`
	DurationS float64             `yaml:"duration_s" json:"durationS"`
	Params    map[string]Envelope `yaml:"params" json:"params"`
}

// Program is a sequence of segments, optionally looped.
type Program struct {
	Version  string    `yaml:"version" json:"version"` // "weather.v1"
	Loop     bool      `yaml:"loop,omitempty" json:"loop,omitempty"`
	Segments []Segment `yaml:"segments" json:"segments"`
}

type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Hooks receive the player's output.
type Hooks struct {
	SetParam  func(name string, v float64)
	OnSegment func(name string)
}

// Player walks a Program on the caller's clock.
type Player struct {
	State PlayerState

	prog Program
	nowS float64 // position within the current pass of the program
	idx  int

	hooks Hooks
}
