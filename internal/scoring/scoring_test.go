package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/target.range/internal/events"
)

func hit(t float64, fields ...string) events.Event {
	e := events.Event{T: t, Kind: events.KindHit}
	for i := 0; i+1 < len(fields); i += 2 {
		if e.Fields == nil {
			e.Fields = map[string]string{}
		}
		e.Fields[fields[i]] = fields[i+1]
	}
	return e
}

func TestComputeStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stage     int
		events    []events.Event
		duration  float64
		wantBase  float64
		wantBSP   float64
		wantWrong int
	}{
		{
			name:     "no events earns full bonus",
			stage:    1,
			duration: 300,
			wantBase: 0,
			wantBSP:  20,
		},
		{
			name:     "stage 1 small and big",
			stage:    1,
			events:   []events.Event{hit(30, "type", "small"), hit(60, "type", "big")},
			duration: 300,
			wantBase: 20,
			wantBSP:  16,
		},
		{
			name:     "stage 1 defaults to small and caps at 60",
			stage:    1,
			events:   []events.Event{hit(1), hit(2), hit(3), hit(4), hit(5)},
			duration: 300,
			wantBase: 60,
			wantBSP:  20 * 295.0 / 300.0,
		},
		{
			name:  "stage 2 one friend hit",
			stage: 2,
			events: []events.Event{
				hit(10, "type", "small"),
				hit(20, "type", "big"),
				hit(30, "label", "friend", "type", "small"),
				hit(40, "type", "small"),
			},
			duration:  300,
			wantBase:  20,
			wantBSP:   20 * 260.0 / 300.0,
			wantWrong: 1,
		},
		{
			name:  "stage 2 two friend hits fail the stage",
			stage: 2,
			events: []events.Event{
				hit(10), hit(11), hit(12),
				hit(20, "label", "friend"),
				hit(30, "label", "friend"),
			},
			duration:  300,
			wantBase:  0,
			wantBSP:   18,
			wantWrong: 2,
		},
		{
			name:      "stage 2 negative base clamps to zero",
			stage:     2,
			events:    []events.Event{hit(10, "label", "friend")},
			duration:  100,
			wantBase:  0,
			wantBSP:   18,
			wantWrong: 1,
		},
		{
			name:  "stage 3 correct and incorrect",
			stage: 3,
			events: []events.Event{
				hit(10), hit(20), hit(30), hit(40), hit(50),
				hit(60, "correct", "false"),
			},
			duration:  300,
			wantBase:  50,
			wantBSP:   16,
			wantWrong: 1,
		},
		{
			name:  "stage 3 three wrong fail",
			stage: 3,
			events: []events.Event{
				hit(10), hit(11), hit(12), hit(13), hit(14), hit(15), hit(16), hit(17),
				hit(20, "correct", "false"), hit(21, "correct", "no"), hit(22, "correct", "false"),
			},
			duration:  300,
			wantBase:  0,
			wantBSP:   20 * 278.0 / 300.0,
			wantWrong: 3,
		},
		{
			name:     "stage 3 caps at 140",
			stage:    3,
			events:   []events.Event{hit(1), hit(1), hit(1), hit(1), hit(1), hit(1), hit(1), hit(1)},
			duration: 300,
			wantBase: 140,
			wantBSP:  20 * 299.0 / 300.0,
		},
		{
			name:  "non-hit events only move the clock",
			stage: 1,
			events: []events.Event{
				{T: 150, Kind: events.KindTrack, Fields: map[string]string{"type": "small"}},
				hit(30),
			},
			duration: 300,
			wantBase: 15,
			wantBSP:  10,
		},
		{
			name:     "late events give zero bonus",
			stage:    1,
			events:   []events.Event{hit(400)},
			duration: 300,
			wantBase: 15,
			wantBSP:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := ComputeStage(tt.stage, tt.events, tt.duration)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantBase, res.Base, 1e-9, "base")
			assert.InDelta(t, tt.wantBSP, res.BSP, 1e-9, "bsp")
			assert.InDelta(t, tt.wantBase+tt.wantBSP, res.Total, 1e-9, "total")
			assert.Equal(t, tt.wantWrong, res.Wrong, "wrong")
		})
	}
}

func TestComputeStage_InvalidStage(t *testing.T) {
	t.Parallel()

	for _, stage := range []int{0, 4, -1} {
		_, err := ComputeStage(stage, nil, 300)
		assert.ErrorIs(t, err, ErrInvalidStage)
	}
}

func TestComputeStage_DefaultDuration(t *testing.T) {
	t.Parallel()

	res, err := ComputeStage(1, []events.Event{hit(150)}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.BSP, 1e-9)
}

func TestResultString(t *testing.T) {
	t.Parallel()

	r := Result{Stage: 2, Base: 40, BSP: 12.34, Total: 52.34, Wrong: 1}
	assert.Equal(t, "Stage 2 Score → Base=40.0  BSP=12.3  Total=52.3  Wrong=1", r.String())
}
