package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueuePreservesOrder(t *testing.T) {
	q := NewInMemoryQueue()

	var (
		mu  sync.Mutex
		got []string
	)
	require.NoError(t, q.Subscribe("events", func(p []byte) error {
		mu.Lock()
		got = append(got, string(p))
		mu.Unlock()
		return nil
	}))

	for _, s := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Publish("events", []byte(s)))
	}
	require.NoError(t, q.Close())

	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestInMemoryQueueRetriesThenSucceeds(t *testing.T) {
	q := NewInMemoryQueue()
	q.Backoff = time.Millisecond

	attempts := 0
	require.NoError(t, q.Subscribe("events", func(p []byte) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, q.Publish("events", []byte("x")))
	require.NoError(t, q.Close())

	assert.Equal(t, 3, attempts)
}

func TestInMemoryQueueGivesUpAfterMaxRetries(t *testing.T) {
	q := NewInMemoryQueue()
	q.Backoff = time.Millisecond
	q.MaxRetries = 2

	attempts := 0
	require.NoError(t, q.Subscribe("events", func(p []byte) error {
		attempts++
		return errors.New("permanent")
	}))

	require.NoError(t, q.Publish("events", []byte("x")))
	require.NoError(t, q.Close())

	assert.Equal(t, 3, attempts)
}

func TestInMemoryQueuePublishWithoutSubscribers(t *testing.T) {
	q := NewInMemoryQueue()
	defer q.Close()

	assert.Error(t, q.Publish("nobody", []byte("x")))
}

func TestInMemoryQueuePublishAfterClose(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, q.Subscribe("events", func([]byte) error { return nil }))
	require.NoError(t, q.Close())

	assert.Error(t, q.Publish("events", []byte("x")))
}

func TestRetryCountHeader(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 2, retryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, 3, retryCount(amqp.Table{retryHeader: int64(3)}))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "1"}))
}
