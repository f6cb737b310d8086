package publisher

// Publisher represents a service for publishing messages to downstream
// consumers, keyed by topic (record kind or notification channel)
type Publisher interface {
	// Publish publishes a message to the topic's stream
	Publish(topic string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
