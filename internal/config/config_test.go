package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurfewParsing(t *testing.T) {
	h, m := App{CurfewTime: "22:30"}.Curfew()
	assert.Equal(t, 22, h)
	assert.Equal(t, 30, m)
}

func TestCurfewFallbackOnGarbage(t *testing.T) {
	for _, bad := range []string{"", "25:00", "22:75", "late"} {
		h, m := App{CurfewTime: bad}.Curfew()
		assert.Equal(t, 22, h, "input %q", bad)
		assert.Equal(t, 0, m, "input %q", bad)
	}
}

func TestLocationFallbackOnGarbage(t *testing.T) {
	loc := App{FacilityTZ: "Not/AZone"}.Location()
	assert.Equal(t, time.UTC, loc)
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.TokenTTL)
	assert.Equal(t, time.Duration(0), cfg.ScanCooldown)
	assert.Equal(t, "22:00", cfg.CurfewTime)
	assert.Equal(t, "Main Gate", cfg.GateLocation)
}
