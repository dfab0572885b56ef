package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	l := NewTokenBucket(3, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d should pass", i)
	}
	assert.False(t, l.Allow("1.2.3.4"))

	// other clients are unaffected
	assert.True(t, l.Allow("5.6.7.8"))
}

func TestTokenBucketCapacityFallback(t *testing.T) {
	l := NewTokenBucket(0, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}
