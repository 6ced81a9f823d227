package events

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/target.range/internal/tracking"
)

func TestCSVWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	require.NoError(t, w.Record(Event{T: 0.0334, Kind: KindTrack, TrackID: 1, Box: tracking.Box{X1: 1.9, Y1: 2, X2: 11.2, Y2: 12}}))
	require.NoError(t, w.Record(Event{
		T: 1.5, Kind: KindHit, TrackID: 2,
		Fields: map[string]string{"type": "small", "label": "enemy"},
	}))

	want := "t,event,id,x1,y1,x2,y2\n" +
		"0.033,track,1,1,2,11,12\n" +
		"1.500,hit,2,0,0,0,0,label=enemy,type=small\n"
	assert.Equal(t, want, buf.String())
}

func TestCSVWriter_FlushEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Flush())
	assert.Equal(t, "t,event,id,x1,y1,x2,y2\n", buf.String())
}

func TestReadCSV_RoundTripOfWriterOutput(t *testing.T) {
	t.Parallel()

	in := []Event{
		{T: 0.5, Kind: KindTrack, TrackID: 3, Box: tracking.Box{X1: 1, Y1: 2, X2: 3, Y2: 4}},
		{T: 2, Kind: KindHit, TrackID: 3, Fields: map[string]string{"correct": "false"}},
	}
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	for _, e := range in {
		require.NoError(t, w.Record(e))
	}

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("ReadCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_NamedColumns(t *testing.T) {
	t.Parallel()

	data := `t,event,id,x1,y1,x2,y2,type,label
10.0,hit,1,,,,,small,enemy
12.5,hit,2,0,0,5,5,big,friend
13,track,2,0,0,5,5,,
`
	got, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "small", got[0].Field(FieldType, ""))
	assert.Equal(t, "enemy", got[0].Field(FieldLabel, ""))
	assert.Equal(t, "friend", got[1].Field(FieldLabel, ""))
	assert.Equal(t, 12.5, got[1].T)
	assert.Nil(t, got[2].Fields)
	assert.Equal(t, "small", got[2].Field(FieldType, "small"))
}

func TestReadCSV_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader("t,event,id\nabc,hit,1\n"))
	assert.Error(t, err)

	got, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

type failingRecorder struct{ err error }

func (f failingRecorder) Record(Event) error { return f.err }

func TestMultiRecorder(t *testing.T) {
	t.Parallel()

	var a, b Buffer
	boom := errors.New("boom")
	m := MultiRecorder{&a, failingRecorder{boom}, &b}

	err := m.Record(Event{Kind: KindFire, TrackID: 7})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)

	assert.NoError(t, MultiRecorder{&a}.Record(Event{}))
}
