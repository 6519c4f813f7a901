package config

import (
	"fmt"
	"time"
)

// AIConfig: набор тюнингов поведения NPC. Ядро ИИ читает только эту структуру
// и не содержит собственных числовых констант.
type AIConfig struct {
	Map       MapConfig                   `yaml:"map"`
	Speeds    SpeedConfig                 `yaml:"speeds"`
	Durations DurationConfig              `yaml:"durations"`
	Ranges    RangeConfig                 `yaml:"ranges"`
	Hitbox    HitboxConfig                `yaml:"hitbox"`
	Movement  MovementConfig              `yaml:"movement"`
	Patrol    PatrolConfig                `yaml:"patrol"`
	Search    SearchConfig                `yaml:"search"`
	Health    int                         `yaml:"health"`
	Generic   map[string]string           `yaml:"generic_animations"`
	Profiles  map[string]CharacterProfile `yaml:"profiles"`
}

// MapConfig задаёт прямоугольную границу карты на плоскости (x, z)
type MapConfig struct {
	MinX   float64 `yaml:"min_x"`
	MinZ   float64 `yaml:"min_z"`
	MaxX   float64 `yaml:"max_x"`
	MaxZ   float64 `yaml:"max_z"`
	Margin float64 `yaml:"margin"`
}

// SpeedConfig: скорость движения для каждого состояния (единиц в секунду)
type SpeedConfig struct {
	Idle     float64 `yaml:"idle"`
	Patrol   float64 `yaml:"patrol"`
	Chase    float64 `yaml:"chase"`
	HitReact float64 `yaml:"hit_react"`
	Death    float64 `yaml:"death"`
}

type DurationConfig struct {
	Idle         time.Duration `yaml:"idle"`
	Aggro        time.Duration `yaml:"aggro"`
	Search       time.Duration `yaml:"search"`
	HitReact     time.Duration `yaml:"hit_react"`
	DeathDisplay time.Duration `yaml:"death_display"`
}

type RangeConfig struct {
	Detection        float64 `yaml:"detection"`
	MaxSight         float64 `yaml:"max_sight"`
	EyeHeight        float64 `yaml:"eye_height"`
	ArrivalThreshold float64 `yaml:"arrival_threshold"`
}

type HitboxConfig struct {
	AgentRadius float64 `yaml:"agent_radius"`
	Knockback   float64 `yaml:"knockback"`
}

type MovementConfig struct {
	// VelocitySmoothing: доля разницы скоростей, снимаемая за один тик (0..1]
	VelocitySmoothing float64 `yaml:"velocity_smoothing"`
	// RotationSmoothing: доля разницы углов, снимаемая за один тик (0..1]
	RotationSmoothing float64 `yaml:"rotation_smoothing"`
	// ApproachTime: вблизи цели желаемая скорость равна distance/ApproachTime,
	// чтобы агент не кружил вокруг точки. 0 отключает замедление.
	ApproachTime time.Duration `yaml:"approach_time"`
}

type PatrolConfig struct {
	MinWaypoints   int     `yaml:"min_waypoints"`
	MaxWaypoints   int     `yaml:"max_waypoints"`
	MinRadius      float64 `yaml:"min_radius"`
	MaxRadius      float64 `yaml:"max_radius"`
	AngleJitter    float64 `yaml:"angle_jitter"`
	RadiusVariance float64 `yaml:"radius_variance"`
	MinPathDist    float64 `yaml:"min_path_distance"`
	MaxAttempts    int     `yaml:"max_attempts"`
}

type SearchConfig struct {
	MinWaypoints int     `yaml:"min_waypoints"`
	MaxWaypoints int     `yaml:"max_waypoints"`
	Jitter       float64 `yaml:"jitter"`
}

// CharacterProfile описывает модель персонажа: объявленные анимации
// и переопределения ключей анимаций и скоростей по состояниям.
type CharacterProfile struct {
	Animations      []string           `yaml:"animations"`
	StateAnimations map[string]string  `yaml:"state_animations"`
	Speeds          map[string]float64 `yaml:"speeds"`
	Health          int                `yaml:"health"`
}

// DefaultAI возвращает тюнинги по умолчанию
func DefaultAI() AIConfig {
	return AIConfig{
		Map: MapConfig{MinX: -50, MinZ: -50, MaxX: 50, MaxZ: 50, Margin: 2},
		Speeds: SpeedConfig{
			Idle:     0,
			Patrol:   2,
			Chase:    4.5,
			HitReact: 0,
			Death:    0,
		},
		Durations: DurationConfig{
			Idle:         2 * time.Second,
			Aggro:        10 * time.Second,
			Search:       6 * time.Second,
			HitReact:     500 * time.Millisecond,
			DeathDisplay: 3 * time.Second,
		},
		Ranges: RangeConfig{
			Detection:        12,
			MaxSight:         30,
			EyeHeight:        1.6,
			ArrivalThreshold: 0.5,
		},
		Hitbox: HitboxConfig{AgentRadius: 0.5, Knockback: 0.4},
		Movement: MovementConfig{
			VelocitySmoothing: 0.15,
			RotationSmoothing: 0.2,
		},
		Patrol: PatrolConfig{
			MinWaypoints:   4,
			MaxWaypoints:   7,
			MinRadius:      4,
			MaxRadius:      9,
			AngleJitter:    0.3,
			RadiusVariance: 0.25,
			MinPathDist:    3,
			MaxAttempts:    10,
		},
		Search: SearchConfig{MinWaypoints: 2, MaxWaypoints: 4, Jitter: 0.5},
		Health: 100,
		Generic: map[string]string{
			"idle":      "idle",
			"patrol":    "walk",
			"chase":     "run",
			"hit_react": "hit",
			"death":     "death",
		},
		Profiles: map[string]CharacterProfile{
			"skeleton": {
				Animations: []string{"Idle", "Walk", "Run", "HitReact", "Death"},
				StateAnimations: map[string]string{
					"idle":      "Idle",
					"patrol":    "Walk",
					"chase":     "Run",
					"hit_react": "HitReact",
					"death":     "Death",
				},
			},
		},
	}
}

// SpeedFor возвращает скорость для состояния с учётом профиля модели
func (c *AIConfig) SpeedFor(model, state string) float64 {
	if p, ok := c.Profiles[model]; ok {
		if s, ok := p.Speeds[state]; ok {
			return s
		}
	}
	switch state {
	case "patrol":
		return c.Speeds.Patrol
	case "chase":
		return c.Speeds.Chase
	case "hit_react":
		return c.Speeds.HitReact
	case "death":
		return c.Speeds.Death
	default:
		return c.Speeds.Idle
	}
}

// HealthFor возвращает начальное здоровье для модели
func (c *AIConfig) HealthFor(model string) int {
	if p, ok := c.Profiles[model]; ok && p.Health > 0 {
		return p.Health
	}
	return c.Health
}

// Validate проверяет согласованность тюнингов
func (c *AIConfig) Validate() error {
	m := c.Map
	if m.Margin < 0 || m.MaxX-m.MinX <= 2*m.Margin || m.MaxZ-m.MinZ <= 2*m.Margin {
		return fmt.Errorf("%w: map bounds too small for margin %.2f", ErrInvalidConfig, m.Margin)
	}
	p := c.Patrol
	if p.MinWaypoints < 2 || p.MaxWaypoints < p.MinWaypoints {
		return fmt.Errorf("%w: patrol waypoints [%d,%d]", ErrInvalidConfig, p.MinWaypoints, p.MaxWaypoints)
	}
	if p.MinRadius <= 0 || p.MaxRadius < p.MinRadius {
		return fmt.Errorf("%w: patrol radius [%.2f,%.2f]", ErrInvalidConfig, p.MinRadius, p.MaxRadius)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: patrol max_attempts must be positive", ErrInvalidConfig)
	}
	s := c.Search
	if s.MinWaypoints < 1 || s.MaxWaypoints < s.MinWaypoints {
		return fmt.Errorf("%w: search waypoints [%d,%d]", ErrInvalidConfig, s.MinWaypoints, s.MaxWaypoints)
	}
	d := c.Durations
	if d.Idle <= 0 || d.Aggro <= 0 || d.Search <= 0 || d.HitReact <= 0 || d.DeathDisplay <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}
	if c.Speeds.Patrol <= 0 || c.Speeds.Chase <= 0 {
		return fmt.Errorf("%w: patrol and chase speeds must be positive", ErrInvalidConfig)
	}
	if c.Ranges.Detection <= 0 || c.Ranges.MaxSight <= 0 || c.Ranges.ArrivalThreshold <= 0 {
		return fmt.Errorf("%w: ranges must be positive", ErrInvalidConfig)
	}
	mv := c.Movement
	if mv.VelocitySmoothing <= 0 || mv.VelocitySmoothing > 1 || mv.RotationSmoothing <= 0 || mv.RotationSmoothing > 1 {
		return fmt.Errorf("%w: smoothing coefficients must be in (0,1]", ErrInvalidConfig)
	}
	if mv.ApproachTime < 0 {
		return fmt.Errorf("%w: approach_time must not be negative", ErrInvalidConfig)
	}
	if c.Hitbox.AgentRadius <= 0 {
		return fmt.Errorf("%w: agent radius must be positive", ErrInvalidConfig)
	}
	if c.Health <= 0 {
		return fmt.Errorf("%w: health must be positive", ErrInvalidConfig)
	}
	return nil
}
