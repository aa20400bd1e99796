package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/config"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "export", "dashboard"}, names)

	f := root.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, "config/example.yaml", f.DefValue)
}

func TestPolicyFromOverridesTTLs(t *testing.T) {
	var cfg config.Config
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Cache.TTLs = map[string]time.Duration{cache.NSTotals: 30 * time.Second, cache.NSItems: 0}

	p := policyFrom(cfg)
	assert.Equal(t, time.Minute, p.Default)
	assert.Equal(t, 30*time.Second, p.TTL(cache.NSTotals))
	assert.Equal(t, 5*time.Minute, p.TTL(cache.NSItems))
	assert.Equal(t, time.Minute, p.TTL("unknown"))
}

func TestClockInLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	assert.Equal(t, loc, clockIn(loc)().Location())
}
