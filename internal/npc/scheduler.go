package npc

import (
	"container/heap"
	"time"
)

// task: отложенное действие, привязанное к агенту
type task struct {
	due     time.Duration
	seq     uint64
	agentID uint64
	run     func()
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].due == q[j].due {
		return q[i].seq < q[j].seq
	}
	return q[i].due < q[j].due
}
func (q taskQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x interface{}) { *q = append(*q, x.(*task)) }
func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// Scheduler: очередь отложенных задач на часах симуляции.
// Задачи выполняются в тике, а не на отдельных таймерах, поэтому
// сами проверяют, актуально ли ещё состояние агента.
type Scheduler struct {
	queue taskQueue
	seq   uint64
}

// NewScheduler создаёт пустую очередь
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// After ставит fn на момент now+delay
func (s *Scheduler) After(now, delay time.Duration, agentID uint64, fn func()) {
	s.seq++
	heap.Push(&s.queue, &task{due: now + delay, seq: s.seq, agentID: agentID, run: fn})
}

// RunDue выполняет все задачи со сроком <= now в порядке срока и постановки.
// Задачи, поставленные во время выполнения, тоже выполняются, если уже наступили.
func (s *Scheduler) RunDue(now time.Duration) int {
	ran := 0
	for s.queue.Len() > 0 && s.queue[0].due <= now {
		t := heap.Pop(&s.queue).(*task)
		t.run()
		ran++
	}
	return ran
}

// Cancel удаляет все задачи агента
func (s *Scheduler) Cancel(agentID uint64) {
	kept := s.queue[:0]
	for _, t := range s.queue {
		if t.agentID != agentID {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = kept
	heap.Init(&s.queue)
}

// Pending возвращает число ожидающих задач
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}
