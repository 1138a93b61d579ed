package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("task not found")

const (
	StatusOpen = "open"
	StatusDone = "done"
)

type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Due    string `json:"due"`
	Status string `json:"status"`
}

// Store keeps tasks in memory. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewStore(seed []Task) *Store {
	s := &Store{tasks: make(map[string]Task, len(seed))}
	for _, t := range seed {
		s.tasks[t.ID] = t
	}
	return s
}

// LoadSeed reads a JSON array of tasks.
func LoadSeed(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed tasks: %w", err)
	}
	var seed []Task
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed tasks: %w", err)
	}
	return seed, nil
}

func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add stores an open task. IDs are T-%04d numbered from the current count;
// a taken ID moves on to the next free number.
func (s *Store) Add(title, due string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.tasks) + 1
	id := fmt.Sprintf("T-%04d", n)
	for {
		if _, taken := s.tasks[id]; !taken {
			break
		}
		n++
		id = fmt.Sprintf("T-%04d", n)
	}

	t := Task{ID: id, Title: title, Due: due, Status: StatusOpen}
	s.tasks[id] = t
	return t
}

func (s *Store) Complete(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Status = StatusDone
	s.tasks[id] = t
	return t, nil
}
