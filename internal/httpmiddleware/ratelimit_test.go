package httpmiddleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketExhaustsAndRefills(t *testing.T) {
	l := NewSimpleTokenBucket(3, 60)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("ip1"), "request %d should pass", i)
	}
	assert.False(t, l.allow("ip1"))

	// One minute later the bucket refills.
	now = now.Add(time.Minute)
	assert.True(t, l.allow("ip1"))
}

func TestBucketsAreIndependentPerKey(t *testing.T) {
	l := NewSimpleTokenBucket(1, 60)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("ip1"))
	assert.False(t, l.allow("ip1"))
	assert.True(t, l.allow("ip2"))
}
