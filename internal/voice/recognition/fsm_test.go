package recognition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateStarting},
		{EventStarted, StateListening},
		{EventFinal, StateProcessing},
		{EventProcessed, StateListening},
		{EventStop, StateStopping},
		{EventEnd, StateIdle},
	}

	s := StateIdle
	for _, step := range steps {
		next, err := Transition(s, step.event)
		require.NoError(t, err)
		require.Equal(t, step.want, next)
		s = next
	}
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	states := []State{StateIdle, StateStarting, StateListening, StateProcessing, StateStopping, StateError}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle end invalid", state: StateIdle, event: EventEnd, want: StateIdle, wantErr: true},
		{name: "starting start invalid", state: StateStarting, event: EventStart, want: StateStarting, wantErr: true},
		{name: "starting stop", state: StateStarting, event: EventStop, want: StateStopping},
		{name: "starting final invalid", state: StateStarting, event: EventFinal, want: StateStarting, wantErr: true},
		{name: "listening start invalid", state: StateListening, event: EventStart, want: StateListening, wantErr: true},
		{name: "listening ends by itself", state: StateListening, event: EventEnd, want: StateIdle},
		{name: "processing stop", state: StateProcessing, event: EventStop, want: StateStopping},
		{name: "stopping stop invalid", state: StateStopping, event: EventStop, want: StateStopping, wantErr: true},
		{name: "stopping started invalid", state: StateStopping, event: EventStarted, want: StateStopping, wantErr: true},
		{name: "error restart", state: StateError, event: EventStart, want: StateStarting},
		{name: "error reset", state: StateError, event: EventReset, want: StateIdle},
		{name: "error end invalid", state: StateError, event: EventEnd, want: StateError, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestClassifyError(t *testing.T) {
	tests := map[string]ErrorCode{
		"not-allowed":         CodePermissionDenied,
		"service-not-allowed": CodePermissionDenied,
		"NotFoundError":       CodeNoMicrophone,
		"audio-capture":       CodeAudioCaptureFailure,
		"network":             CodeNetwork,
		"no-speech":           CodeTimeout,
		"aborted":             CodeAborted,
		"language-not-supported": CodeUnknown,
	}
	for raw, want := range tests {
		require.Equal(t, want, ClassifyError(raw), raw)
	}
}
