// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scheduler

import "sync"

// Manual is a Scheduler that never runs tasks on its own. Tests drive it with
// Tick and inspect which tasks are scheduled.
type Manual struct {
	mu    sync.Mutex
	tasks map[Task]float64
	order []Task
}

// NewManual creates an empty manual scheduler
func NewManual() *Manual {
	return &Manual{tasks: make(map[Task]float64)}
}

// Start implements Scheduler
func (m *Manual) Start(task Task, hz float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task]; !ok {
		m.order = append(m.order, task)
	}
	m.tasks[task] = hz
}

// Stop implements Scheduler
func (m *Manual) Stop(task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task]; !ok {
		return
	}
	delete(m.tasks, task)
	for i, t := range m.order {
		if t == task {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// SetFrequency implements Scheduler
func (m *Manual) SetFrequency(task Task, hz float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task]; ok {
		m.tasks[task] = hz
	}
}

// Find returns the scheduled task with the given name
func (m *Manual) Find(name string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.order {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Running reports whether a task with the given name is scheduled
func (m *Manual) Running(name string) bool {
	_, ok := m.Find(name)
	return ok
}

// Frequency returns the frequency of the named task, 0 if not scheduled
func (m *Manual) Frequency(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.order {
		if t.Name() == name {
			return m.tasks[t]
		}
	}
	return 0
}

// Tick runs the named task once if it is scheduled and reports whether it ran
func (m *Manual) Tick(name string) bool {
	t, ok := m.Find(name)
	if !ok {
		return false
	}
	t.Run()
	return true
}
