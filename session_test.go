package voicebridge

import (
	"sync"
	"testing"
	"time"

	"github.com/bt-bridge/voicebridge/actions"
	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionBeginIsWriteOnce(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Started())
	assert.Equal(t, PhaseInitializing, s.Phase())

	require.NoError(t, s.Begin("MZ1", "CA1", "+15550001111", "+15550002222"))
	assert.True(t, s.Started())
	assert.Equal(t, PhaseActive, s.Phase())
	assert.Equal(t, "MZ1", s.StreamSid())

	callSid, caller, callee := s.CallInfo()
	assert.Equal(t, "CA1", callSid)
	assert.Equal(t, "+15550001111", caller)
	assert.Equal(t, "+15550002222", callee)

	err := s.Begin("MZ2", "CA2", "", "")
	assert.ErrorIs(t, err, shared.ErrStreamAlreadyStarted)
	assert.Equal(t, "MZ1", s.StreamSid())

	select {
	case <-s.Ready():
	default:
		t.Fatal("ready gate should be open after Begin")
	}
}

func TestSessionReadyBlocksUntilBegin(t *testing.T) {
	s := NewSession()
	select {
	case <-s.Ready():
		t.Fatal("ready gate open before Begin")
	default:
	}

	done := make(chan struct{})
	go func() {
		<-s.Ready()
		close(done)
	}()

	require.NoError(t, s.Begin("MZ1", "CA1", "", ""))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Begin")
	}
}

func TestSessionTranscript(t *testing.T) {
	s := NewSession()
	s.AppendTurn(RoleCaller, "Hi, are you open today?")
	s.AppendTurn(RoleAssistant, "We are, until five.")
	s.AppendTurn(RoleCaller, "") // empty turns are dropped
	s.AppendTurn(RoleCaller, "Great, thanks.")

	assert.Equal(t,
		"Caller: Hi, are you open today?\nAssistant: We are, until five.\nCaller: Great, thanks.",
		s.Transcript())
	assert.Len(t, s.Turns(), 3)
}

func TestSessionConcurrentTurns(t *testing.T) {
	s := NewSession()
	const perRole = 50

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perRole; i++ {
			s.AppendTurn(RoleCaller, "caller turn")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perRole; i++ {
			s.AppendTurn(RoleAssistant, "assistant turn")
		}
	}()
	wg.Wait()

	assert.Len(t, s.Turns(), 2*perRole)
}

func TestSessionRecordActionCollapsesRepeats(t *testing.T) {
	s := NewSession()
	s.RecordAction(actions.ActionSearchKnowledge)
	s.RecordAction(actions.ActionSendMessage)
	s.RecordAction(actions.ActionSearchKnowledge)

	assert.Equal(t, []string{"search_knowledge", "send_sms"}, s.Actions())
}

func TestSessionAudioClock(t *testing.T) {
	s := NewSession()
	assert.Equal(t, time.Duration(0), s.AudioClock())

	s.AddAudio(20 * time.Millisecond)
	s.AddAudio(20 * time.Millisecond)
	assert.Equal(t, 40*time.Millisecond, s.AudioClock())

	s.ResetAudioClock()
	assert.Equal(t, time.Duration(0), s.AudioClock())
}

func TestSessionTerminationFirstWins(t *testing.T) {
	s := NewSession()
	assert.Nil(t, s.Termination())

	won := s.RequestTermination(&TerminationRequest{Status: store.CallStatusCompleted})
	assert.True(t, won)
	won = s.RequestTermination(&TerminationRequest{Status: store.CallStatusFailed})
	assert.False(t, won)

	require.NotNil(t, s.Termination())
	assert.Equal(t, store.CallStatusCompleted, s.Termination().Status)
}

func TestSessionTerminationConcurrent(t *testing.T) {
	s := NewSession()
	const contenders = 16

	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			if s.RequestTermination(&TerminationRequest{Status: store.CallStatusCompleted}) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)
	assert.NotNil(t, s.Termination())
}
