package npc

// State: поведенческое состояние агента. В каждый момент активно ровно одно.
type State uint8

const (
	StateIdle State = iota
	StatePatrol
	StateChase
	StateHitReact
	StateDeath
)

// AllStates перечисляет состояния в порядке объявления
var AllStates = []State{StateIdle, StatePatrol, StateChase, StateHitReact, StateDeath}

// String возвращает ключ состояния, совпадающий с ключами конфигурации
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePatrol:
		return "patrol"
	case StateChase:
		return "chase"
	case StateHitReact:
		return "hit_react"
	case StateDeath:
		return "death"
	default:
		return "unknown"
	}
}

// Terminal сообщает, что из состояния нет переходов
func (s State) Terminal() bool {
	return s == StateDeath
}
