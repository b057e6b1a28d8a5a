package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayback_load_play_end(t *testing.T) {
	var p Playback

	p.Load("x.mp4")
	assert.Equal(t, PlaybackState{ReadyPath: "x.mp4"}, p.Get())
	assert.Equal(t, PhaseReady, p.Get().Phase())

	_, after := p.Report(StatusPlaying, true)
	assert.Equal(t, PlaybackState{LivePath: "x.mp4"}, after)
	assert.Equal(t, PhaseLive, after.Phase())

	_, after = p.Report(StatusEnded, false)
	assert.Equal(t, PlaybackState{}, after)
	assert.Equal(t, PhaseIdle, after.Phase())
}

func TestTransition(t *testing.T) {
	ready := PlaybackState{ReadyPath: "a"}
	live := PlaybackState{LivePath: "a"}

	tests := []struct {
		name      string
		cur       PlaybackState
		status    MediaStatus
		confirmed bool
		want      PlaybackState
	}{
		{"playing without confirmation stays ready", ready, StatusPlaying, false, ready},
		{"playing with confirmation goes live", ready, StatusPlaying, true, live},
		{"playing while idle stays idle", PlaybackState{}, StatusPlaying, true, PlaybackState{}},
		{"ended from ready", ready, StatusEnded, false, PlaybackState{}},
		{"ended from live", live, StatusEnded, true, PlaybackState{}},
		{"stopped while live", live, StatusStopped, false, PlaybackState{}},
		{"stopped while ready is ignored", ready, StatusStopped, false, ready},
		{"paused keeps live", live, StatusPaused, true, live},
		{"buffering keeps ready", ready, StatusBuffering, true, ready},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.cur, tt.status, tt.confirmed))
		})
	}
}

func TestPlayback_Load_discards_live(t *testing.T) {
	var p Playback
	p.Set(PlaybackState{LivePath: "a"})
	p.Load("b")
	assert.Equal(t, PlaybackState{ReadyPath: "b"}, p.Get())
}

func TestPlayback_ClearLive(t *testing.T) {
	var p Playback
	p.Set(PlaybackState{LivePath: "a"})
	p.ClearLive()
	assert.Equal(t, PhaseIdle, p.Get().Phase())
}

func TestParseMediaStatus(t *testing.T) {
	st, err := ParseMediaStatus(" PLAYING ")
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, st)

	st, err = ParseMediaStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusNone, st)

	_, err = ParseMediaStatus("rewinding")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
