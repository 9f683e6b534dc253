package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRepositoryDefaultsToUTC(t *testing.T) {
	assert.Equal(t, "UTC", NewRepository(nil, "").tz)
}

func TestNewRepositoryKeepsFacilityZone(t *testing.T) {
	assert.Equal(t, "Asia/Kolkata", NewRepository(nil, "Asia/Kolkata").tz)
}
