package feedback

import "sync"

// FakePublisher records published payloads for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Topics and Payloads are parallel.
	Topics   []string
	Payloads [][]byte

	// PublishError, if set, is returned by Publish.
	PublishError error

	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Topics = append(f.Topics, topic)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
