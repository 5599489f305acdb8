// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scheduler runs periodic link tasks (ping, control, timeouts) at a
// configurable frequency.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MinPeriod is the shortest spacing between two runs of a task
const MinPeriod = 200 * time.Millisecond

// Task is a unit of periodic work
type Task interface {
	Name() string
	Run()
}

type funcTask struct {
	name string
	fn   func()
}

func (t *funcTask) Name() string { return t.name }
func (t *funcTask) Run()         { t.fn() }

// NewTask wraps fn as a named Task. Each call returns a distinct task.
func NewTask(name string, fn func()) Task {
	return &funcTask{name: name, fn: fn}
}

// Scheduler starts, stops and reschedules periodic tasks
type Scheduler interface {
	// Start runs task every 1/hz seconds until stopped. Starting a running
	// task reschedules it.
	Start(task Task, hz float64)
	// Stop prevents further runs of task. It does not wait for a run in
	// progress to finish.
	Stop(task Task)
	// SetFrequency changes the rate of a running task
	SetFrequency(task Task, hz float64)
}

// Period converts a frequency to a run period, clamped to MinPeriod
func Period(hz float64) time.Duration {
	if hz <= 0 {
		return MinPeriod
	}
	period := time.Duration(float64(time.Second) / hz)
	if period < MinPeriod {
		return MinPeriod
	}
	return period
}

// Option configures a Ticker
type Option func(*Ticker)

// WithLogger sets the logger used for task lifecycle messages
func WithLogger(log zerolog.Logger) Option {
	return func(t *Ticker) {
		t.log = log
	}
}

// Ticker is a Scheduler running each task on its own goroutine driven by a
// time.Ticker
type Ticker struct {
	mu    sync.Mutex
	tasks map[Task]*tickerEntry
	log   zerolog.Logger
}

type tickerEntry struct {
	stop   chan struct{}
	period chan time.Duration
}

// NewTicker creates a goroutine backed scheduler
func NewTicker(opts ...Option) *Ticker {
	t := &Ticker{
		tasks: make(map[Task]*tickerEntry),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start implements Scheduler
func (t *Ticker) Start(task Task, hz float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.tasks[task]; ok {
		t.reschedule(task, e, hz)
		return
	}

	period := Period(hz)
	e := &tickerEntry{
		stop:   make(chan struct{}),
		period: make(chan time.Duration, 1),
	}
	t.tasks[task] = e
	t.log.Debug().Str("task", task.Name()).Dur("period", period).Msg("Starting task")
	go t.run(task, e, period)
}

// Stop implements Scheduler
func (t *Ticker) Stop(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.tasks[task]
	if !ok {
		return
	}
	delete(t.tasks, task)
	close(e.stop)
	t.log.Debug().Str("task", task.Name()).Msg("Stopping task")
}

// SetFrequency implements Scheduler
func (t *Ticker) SetFrequency(task Task, hz float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.tasks[task]; ok {
		t.reschedule(task, e, hz)
	}
}

// StopAll stops every running task
func (t *Ticker) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for task, e := range t.tasks {
		close(e.stop)
		delete(t.tasks, task)
	}
}

// Running reports whether task is scheduled
func (t *Ticker) Running(task Task) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[task]
	return ok
}

func (t *Ticker) reschedule(task Task, e *tickerEntry, hz float64) {
	period := Period(hz)
	// keep only the latest pending period
	select {
	case <-e.period:
	default:
	}
	e.period <- period
	t.log.Debug().Str("task", task.Name()).Dur("period", period).Msg("Rescheduling task")
}

func (t *Ticker) run(task Task, e *tickerEntry, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case p := <-e.period:
			ticker.Reset(p)
		case <-ticker.C:
			select {
			case <-e.stop:
				return
			default:
			}
			task.Run()
		}
	}
}
