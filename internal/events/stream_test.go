package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStream_PublishSubscribe(t *testing.T) {
	s := NewStream[int]()
	defer s.Close()

	ch, cancel := s.Subscribe(1)
	defer cancel()

	require.NoError(t, s.Publish(context.Background(), 123))

	select {
	case got := <-ch:
		require.Equal(t, 123, got)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for value")
	}
}

func TestStream_LateSubscriberMissesEarlierValues(t *testing.T) {
	s := NewStream[string]()
	defer s.Close()

	require.NoError(t, s.Publish(context.Background(), "early"))

	ch, cancel := s.Subscribe(1)
	defer cancel()

	require.NoError(t, s.Publish(context.Background(), "late"))

	select {
	case got := <-ch:
		require.Equal(t, "late", got)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for value")
	}
}

func TestStream_IndependentSubscribers(t *testing.T) {
	s := NewStream[int]()
	defer s.Close()

	ch1, cancel1 := s.Subscribe(2)
	defer cancel1()
	ch2, cancel2 := s.Subscribe(2)
	defer cancel2()

	require.NoError(t, s.Publish(context.Background(), 1))
	require.NoError(t, s.Publish(context.Background(), 2))

	require.Equal(t, 1, <-ch1)
	require.Equal(t, 1, <-ch2)
	require.Equal(t, 2, <-ch1)
	require.Equal(t, 2, <-ch2)
}

func TestStream_PublishBackpressure(t *testing.T) {
	s := NewStream[int]()
	defer s.Close()

	_, cancel := s.Subscribe(0) // unbuffered; no receiver => blocks
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelCtx()

	err := s.Publish(ctx, 1)
	require.Error(t, err)
}

func TestStream_CancelStopsDelivery(t *testing.T) {
	s := NewStream[int]()
	defer s.Close()

	ch, cancel := s.Subscribe(1)
	cancel()

	_, open := <-ch
	require.False(t, open)

	require.NoError(t, s.Publish(context.Background(), 9))
	require.Equal(t, 0, s.SubscriberCount())
}

func TestStream_CloseClosesSubscribers(t *testing.T) {
	s := NewStream[int]()

	ch, cancel := s.Subscribe(1)
	defer cancel()

	s.Close()

	_, open := <-ch
	require.False(t, open)

	require.Error(t, s.Publish(context.Background(), 1))

	lateCh, lateCancel := s.Subscribe(1)
	defer lateCancel()
	_, open = <-lateCh
	require.False(t, open)
}
