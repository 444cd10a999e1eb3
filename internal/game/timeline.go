package game

import "time"

// Phase is one timed entry of the round timeline.
type Phase struct {
	Mode     Mode
	Duration time.Duration
}

// Timeline is the full round sequence executed by the room scheduler,
// in order, with Intermission between phases. Keeping it as data means
// teardown cancels a single scheduler instead of chasing nested timers.
func Timeline() []Phase {
	return []Phase{
		{Mode: ModeRace, Duration: RaceDuration},
		{Mode: ModeBuild, Duration: BuildDuration},
		{Mode: ModeBattle, Duration: BattleDuration},
	}
}
