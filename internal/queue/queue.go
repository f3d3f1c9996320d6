package queue

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// TopicInboundEvents carries JSON-encoded model.InboundEvent values.
const TopicInboundEvents = "inbound_events"

type Handler func(payload []byte) error

// Queue interface
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue delivers jobs per topic in publish order with bounded retry.
type InMemoryQueue struct {
	MaxRetries int
	Backoff    time.Duration

	mu     sync.RWMutex
	topics map[string]*topic
	closed bool
	wg     sync.WaitGroup
}

type topic struct {
	jobs chan JobPayload

	hmu      sync.Mutex
	handlers []Handler
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		topics:     make(map[string]*topic),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    []byte
	RetryCount int
	MaxRetries int
}

// Publish hands the payload to the topic dispatcher.
func (q *InMemoryQueue) Publish(name string, payload []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}
	t := q.topics[name]
	if t == nil || t.handlerCount() == 0 {
		return fmt.Errorf("no subscribers for topic %s", name)
	}

	t.jobs <- JobPayload{
		Topic:      name,
		Payload:    payload,
		MaxRetries: q.MaxRetries,
	}
	return nil
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(name string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}
	t, ok := q.topics[name]
	if !ok {
		t = &topic{jobs: make(chan JobPayload, 1024)}
		q.topics[name] = t
		q.wg.Add(1)
		go q.dispatch(t)
	}

	t.hmu.Lock()
	t.handlers = append(t.handlers, handler)
	t.hmu.Unlock()
	return nil
}

// Close stops accepting jobs and waits for queued ones to drain.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for _, t := range q.topics {
		close(t.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

func (t *topic) handlerCount() int {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	return len(t.handlers)
}

func (q *InMemoryQueue) dispatch(t *topic) {
	defer q.wg.Done()
	for job := range t.jobs {
		t.hmu.Lock()
		handlers := append([]Handler(nil), t.handlers...)
		t.hmu.Unlock()

		for _, h := range handlers {
			q.processJob(h, job)
		}
	}
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler Handler, job JobPayload) {
	for {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed on %s (attempt %d/%d): %v\n", job.Topic, job.RetryCount, job.MaxRetries, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("⚠️ Job on %s permanently failed after %d retries\n", job.Topic, job.MaxRetries)
			return // No requeue
		}

		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

var _ Queue = (*InMemoryQueue)(nil)
