package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRequestID_ReturnsSameID(t *testing.T) {
	gen := NewFixedRequestID("req-123")

	assert.Equal(t, "req-123", gen.Generate())
	assert.Equal(t, "req-123", gen.Generate())
}

func TestFixedRequestID_EmptyDefault(t *testing.T) {
	assert.Equal(t, "test-request-default", NewFixedRequestID("").Generate())
}

func TestFixedRequestID_ThreadSafe(t *testing.T) {
	gen := NewFixedRequestID("thread-safe")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "thread-safe", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
