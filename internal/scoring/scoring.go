// Package scoring computes stage scores from an engagement event log.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/target.range/internal/events"
)

// ErrInvalidStage is returned for stages other than 1, 2 and 3.
var ErrInvalidStage = errors.New("stage must be 1, 2 or 3")

// DefaultDuration is the stage length in seconds when none is given.
const DefaultDuration = 300.0

// bspMax is the time bonus awarded for finishing at t=0.
const bspMax = 20.0

// rules are the per-stage point values.
type rules struct {
	cap       float64
	small     float64 // stages 1 and 2
	big       float64 // stages 1 and 2
	correct   float64 // stage 3
	wrongPen  float64
	failWrong int // wrong hits that zero the base; 0 disables
}

var stageRules = map[int]rules{
	1: {cap: 60, small: 15, big: 5},
	2: {cap: 100, small: 20, big: 10, wrongPen: -30, failWrong: 2},
	3: {cap: 140, correct: 20, wrongPen: -50, failWrong: 3},
}

// Result is the score of one stage.
type Result struct {
	Stage int     `json:"stage"`
	Base  float64 `json:"base"`
	BSP   float64 `json:"bsp"`
	Total float64 `json:"total"`
	Wrong int     `json:"wrong"`
	Hits  int     `json:"hits"`
}

// String formats r the way the scoring command prints it.
func (r Result) String() string {
	return fmt.Sprintf("Stage %d Score → Base=%.1f  BSP=%.1f  Total=%.1f  Wrong=%d",
		r.Stage, r.Base, r.BSP, r.Total, r.Wrong)
}

// ComputeStage scores evs for the given stage. Only hit events earn
// points; every event's timestamp counts towards the time bonus. A
// non-positive duration falls back to DefaultDuration.
func ComputeStage(stage int, evs []events.Event, duration float64) (Result, error) {
	rl, ok := stageRules[stage]
	if !ok {
		return Result{}, fmt.Errorf("%w, got %d", ErrInvalidStage, stage)
	}
	if duration <= 0 || math.IsNaN(duration) {
		duration = DefaultDuration
	}

	res := Result{Stage: stage}
	base := 0.0
	for _, e := range evs {
		if e.Kind != events.KindHit {
			continue
		}
		res.Hits++

		switch stage {
		case 1, 2:
			if stage == 2 && e.Field(events.FieldLabel, "enemy") == "friend" {
				base += rl.wrongPen
				res.Wrong++
				continue
			}
			if e.Field(events.FieldType, "small") == "small" {
				base += rl.small
			} else {
				base += rl.big
			}
		case 3:
			if e.Field(events.FieldCorrect, "true") == "true" {
				base += rl.correct
			} else {
				base += rl.wrongPen
				res.Wrong++
			}
		}
	}

	if rl.failWrong > 0 && res.Wrong >= rl.failWrong {
		base = 0
	}
	res.Base = math.Max(0, math.Min(base, rl.cap))

	lastT := 0.0
	for _, e := range evs {
		lastT = math.Max(lastT, e.T)
	}
	remaining := math.Max(0, duration-lastT)
	res.BSP = bspMax * remaining / duration
	res.Total = res.Base + res.BSP
	return res, nil
}
