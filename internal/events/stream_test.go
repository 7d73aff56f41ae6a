package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-optimizer/internal/types"
)

func event(runID uuid.UUID, seq int64, typ types.EventType) types.ProgressEvent {
	return types.ProgressEvent{Seq: seq, RunID: runID, Type: typ, Timestamp: time.Now().UTC()}
}

func collect(t *testing.T, ch <-chan types.ProgressEvent, n int) []types.ProgressEvent {
	t.Helper()
	var out []types.ProgressEvent
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case e, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d events", len(out), n)
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestSubscribeReplaysFromBeginning(t *testing.T) {
	runID := uuid.New()
	log := NewLog(runID)
	log.Append(event(runID, 1, types.EventRunStarted), event(runID, 2, types.EventStageStarted))

	ch := log.Subscribe(context.Background())
	got := collect(t, ch, 2)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)

	// Live events continue on the same channel.
	log.Append(event(runID, 3, types.EventStageCompleted))
	got = collect(t, ch, 1)
	assert.Equal(t, int64(3), got[0].Seq)
}

func TestSubscribeChannelClosesAfterDrain(t *testing.T) {
	runID := uuid.New()
	log := NewLog(runID)
	log.Append(event(runID, 1, types.EventRunStarted))
	log.Append(event(runID, 2, types.EventRunCompleted))
	log.Close()

	ch := log.Subscribe(context.Background())
	var got []types.ProgressEvent
	for e := range ch {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, types.EventRunCompleted, got[1].Type)
}

func TestAppendAfterCloseIsIgnored(t *testing.T) {
	runID := uuid.New()
	log := NewLog(runID)
	log.Append(event(runID, 1, types.EventRunStarted))
	log.Close()
	log.Append(event(runID, 2, types.EventStageStarted))

	assert.Equal(t, 1, log.Len())
}

func TestMultipleSubscribersGetFullSequence(t *testing.T) {
	runID := uuid.New()
	log := NewLog(runID)
	log.Append(event(runID, 1, types.EventRunStarted))

	first := log.Subscribe(context.Background())
	second := log.Subscribe(context.Background())

	log.Append(event(runID, 2, types.EventStageStarted))
	log.Close()

	for _, ch := range []<-chan types.ProgressEvent{first, second} {
		var seqs []int64
		for e := range ch {
			seqs = append(seqs, e.Seq)
		}
		assert.Equal(t, []int64{1, 2}, seqs)
	}
}

func TestSlowSubscriberDoesNotBlockAppends(t *testing.T) {
	runID := uuid.New()
	log := NewLog(runID)

	// Subscriber exists but nobody reads from it yet.
	ch := log.Subscribe(context.Background())

	for i := 1; i <= 100; i++ {
		log.Append(event(runID, int64(i), types.EventStageStarted))
	}
	log.Close()
	assert.Equal(t, 100, log.Len())

	got := collect(t, ch, 100)
	assert.Equal(t, int64(100), got[99].Seq)
}

func TestSubscribeReleasedWhenContextEnds(t *testing.T) {
	runID := uuid.New()
	log := NewLog(runID)
	log.Append(event(runID, 1, types.EventRunStarted))

	// An abandoned subscriber that never reads. Cancelling its context must
	// close the channel even though the log stays open.
	ctx, cancel := context.WithCancel(context.Background())
	ch := log.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after context cancellation")
	}

	// The log itself is unaffected.
	log.Append(event(runID, 2, types.EventStageStarted))
	assert.Equal(t, 2, log.Len())

	// A mid-stream cancellation while the subscriber is waiting for the
	// reader also closes the channel.
	ctx2, cancel2 := context.WithCancel(context.Background())
	ch2 := log.Subscribe(ctx2)
	got := collect(t, ch2, 1)
	assert.Equal(t, int64(1), got[0].Seq)
	cancel2()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch2:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("channel did not close after mid-stream cancellation")
		}
	}
}
