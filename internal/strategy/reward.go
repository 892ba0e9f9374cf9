package strategy

import "time"

// Outcome describes how a handled request went, for reward shaping.
type Outcome struct {
	Success    bool
	Latency    time.Duration
	ToolErrors int
}

// ShapeReward maps an outcome to a deterministic reward in [0,1].
// Failure is always 0. Success starts at 1 and loses ground to latency
// and tool errors.
func ShapeReward(o Outcome) float64 {
	if !o.Success {
		return 0
	}

	reward := 1.0
	switch {
	case o.Latency < time.Second:
		// full marks
	case o.Latency < 5*time.Second:
		reward -= 0.1
	case o.Latency < 15*time.Second:
		reward -= 0.2
	default:
		reward -= 0.3
	}
	if o.ToolErrors > 0 {
		reward -= 0.2
	}
	if reward < 0 {
		reward = 0
	}
	return reward
}
