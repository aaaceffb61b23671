package state

import (
	"time"
)

// Scheduler runs tasks against a node's State, one at a time.
type Scheduler interface {
	Schedule(s *State, fun func(*State) error, delay time.Duration)
}

// Dispatch runs fun on the state's goroutine as soon as possible
func (s *State) Dispatch(fun func(*State) error) {
	s.Scheduler.Schedule(s, fun, 0)
}

func (s *State) ScheduleTask(fun func(*State) error, delay time.Duration) {
	s.Scheduler.Schedule(s, fun, delay)
}

// RepeatTask runs fun after delay and then every interval until the context
// is cancelled. An error from fun stops the repetition and is passed on to
// the scheduler.
func (s *State) RepeatTask(fun func(*State) error, delay, interval time.Duration) {
	var task func(*State) error
	task = func(s *State) error {
		if s.Context.Err() != nil {
			return nil
		}
		if err := fun(s); err != nil {
			return err
		}
		s.ScheduleTask(task, interval)
		return nil
	}
	s.ScheduleTask(task, delay)
}
