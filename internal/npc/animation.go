package npc

import (
	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
)

// IdleAnimation: ключ, на который откатывается любое неразрешённое состояние
const IdleAnimation = "idle"

type animKey struct {
	model string
	state State
}

// AnimationTable: таблица (модель, состояние) -> ключ анимации.
// Строится один раз при загрузке, чтобы не делать нечёткий поиск каждый тик.
type AnimationTable struct {
	entries map[animKey]string
	generic map[State]string
	known   map[string]bool
	log     *logging.Logger
}

// BuildAnimationTable разрешает анимации для всех профилей.
// Порядок: точное имя из state_animations профиля, затем общее соответствие
// (только если модель объявляет такую анимацию).
func BuildAnimationTable(cfg *config.AIConfig, log *logging.Logger) *AnimationTable {
	t := &AnimationTable{
		entries: make(map[animKey]string),
		generic: make(map[State]string),
		known:   make(map[string]bool),
		log:     log,
	}
	for _, s := range AllStates {
		if g, ok := cfg.Generic[s.String()]; ok && g != "" {
			t.generic[s] = g
		}
	}

	for model, profile := range cfg.Profiles {
		t.known[model] = true
		declared := make(map[string]bool, len(profile.Animations))
		for _, name := range profile.Animations {
			declared[name] = true
		}
		has := func(name string) bool {
			return len(declared) == 0 || declared[name]
		}

		for _, s := range AllStates {
			if exact, ok := profile.StateAnimations[s.String()]; ok && exact != "" && has(exact) {
				t.entries[animKey{model, s}] = exact
				continue
			}
			if g, ok := t.generic[s]; ok && has(g) {
				t.entries[animKey{model, s}] = g
				continue
			}
			if log != nil {
				log.Debug("Модель %s: анимация для состояния %s не найдена", model, s)
			}
		}
	}
	return t
}

// Resolve возвращает ключ анимации. ok == false означает откат на idle.
func (t *AnimationTable) Resolve(model string, s State) (string, bool) {
	if key, ok := t.entries[animKey{model, s}]; ok {
		return key, true
	}
	if !t.known[model] {
		if g, ok := t.generic[s]; ok {
			return g, true
		}
	}
	if key, ok := t.entries[animKey{model, StateIdle}]; ok {
		return key, false
	}
	return IdleAnimation, false
}

// resolveLogged: Resolve с предупреждением при откате
func (t *AnimationTable) resolveLogged(model string, s State) string {
	key, ok := t.Resolve(model, s)
	if !ok && t.log != nil {
		t.log.Warn("Нет анимации для %s/%s, используется %s", model, s, key)
	}
	return key
}
