package repository

// DefaultCapacity is the number of reports kept before the oldest is evicted.
const DefaultCapacity = 500

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCapacity bounds the number of reports held. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}
