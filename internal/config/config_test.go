package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.AI.Validate(), "конфигурация по умолчанию должна быть валидной")
	assert.Equal(t, 30, cfg.Simulation.TickRate)
	assert.Equal(t, time.Second/30, cfg.Simulation.TickInterval())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
ai:
  durations:
    aggro: 4s
  ranges:
    detection: 20
  profiles:
    mutant:
      animations: [idle, run]
      speeds: { chase: 7 }
      health: 150
`))
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.AI.Durations.Aggro)
	assert.Equal(t, 20.0, cfg.AI.Ranges.Detection)
	// Незаданные поля берутся из значений по умолчанию
	assert.Equal(t, 500*time.Millisecond, cfg.AI.Durations.HitReact)
	assert.Equal(t, 7.0, cfg.AI.SpeedFor("mutant", "chase"))
	assert.Equal(t, cfg.AI.Speeds.Patrol, cfg.AI.SpeedFor("mutant", "patrol"))
	assert.Equal(t, 150, cfg.AI.HealthFor("mutant"))
	assert.Equal(t, 100, cfg.AI.HealthFor("unknown"))
}

func TestValidate_RejectsBadRanges(t *testing.T) {
	cases := map[string]func(c *AIConfig){
		"waypoints":  func(c *AIConfig) { c.Patrol.MaxWaypoints = 1 },
		"radius":     func(c *AIConfig) { c.Patrol.MaxRadius = c.Patrol.MinRadius - 1 },
		"margin":     func(c *AIConfig) { c.Map.Margin = 60 },
		"durations":  func(c *AIConfig) { c.Durations.Aggro = 0 },
		"smoothing":  func(c *AIConfig) { c.Movement.VelocitySmoothing = 1.5 },
		"search":     func(c *AIConfig) { c.Search.MinWaypoints = 0 },
		"attempts":   func(c *AIConfig) { c.Patrol.MaxAttempts = 0 },
		"chaseSpeed": func(c *AIConfig) { c.Speeds.Chase = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ai := DefaultAI()
			mutate(&ai)
			assert.ErrorIs(t, ai.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "npc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  agents: 3\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Simulation.Agents)

	t.Setenv("NPC_CONFIG", "")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Simulation.Agents, cfg.Simulation.Agents)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestServerConfig_PortFallback(t *testing.T) {
	t.Setenv("NPC_REST_PORT", "9999")
	s := ServerConfig{}
	assert.Equal(t, 9999, s.GetRESTPort())
	s.RESTPort = 8000
	assert.Equal(t, 8000, s.GetRESTPort())
	assert.Equal(t, 2112, (&ServerConfig{}).GetMetricsPort())
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "npc.yaml"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Contains(t, cfg.AI.Profiles, "mutant")
}
