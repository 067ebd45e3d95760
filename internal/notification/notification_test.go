package notification

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain verifies no goroutines leak out of the fan-out and churn tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNotifyAndRecent(t *testing.T) {
	t.Parallel()

	s := NewService(10, nil)

	s.Notify(NewNotification(TypeError, PriorityHigh, "Scan failed", "model unavailable").
		WithComponent("pipeline").
		WithMetadata("stage", "inference"))

	recent := s.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "Scan failed", recent[0].Title)
	assert.Equal(t, "pipeline", recent[0].Component)
	assert.Equal(t, "inference", recent[0].Metadata["stage"])
	assert.NotEmpty(t, recent[0].ID)
}

func TestRecentIsBounded(t *testing.T) {
	t.Parallel()

	s := NewService(3, nil)
	for i := 0; i < 5; i++ {
		s.Notify(NewNotification(TypeInfo, PriorityLow, fmt.Sprintf("n%d", i), ""))
	}

	recent := s.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "n2", recent[0].Title)
	assert.Equal(t, "n4", recent[2].Title)
}

func TestSubscribeReceives(t *testing.T) {
	t.Parallel()

	s := NewService(10, nil)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.Notify(NewNotification(TypeWarning, PriorityMedium, "Orphaned scan image", ""))

	n := <-ch
	assert.Equal(t, "Orphaned scan image", n.Title)
}

func TestUnsubscribeDuringNotify(t *testing.T) {
	t.Parallel()

	s := NewService(100, nil)

	// Subscribers churn while notifications are in flight. A send landing
	// on a freshly closed channel would panic the notifying goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.Notify(NewNotification(TypeInfo, PriorityLow, "churn", ""))
		}
	}()

	for i := 0; i < 200; i++ {
		ch := s.Subscribe()
		go func() {
			for range ch {
				// Drain until Unsubscribe closes the channel.
			}
		}()
		s.Unsubscribe(ch)
	}
	<-done

	assert.Len(t, s.Recent(0), 100)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	s := NewService(100, nil)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	// Fill the subscriber buffer and keep going; Notify must not block.
	for i := 0; i < 50; i++ {
		s.Notify(NewNotification(TypeInfo, PriorityLow, "burst", ""))
	}

	assert.Len(t, s.Recent(0), 50)
}
