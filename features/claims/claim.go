package claims

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

var ErrNotFound = errors.New("claim not found")

const (
	StatusOpen = "OPEN"

	// SeedClaimID is present in every new store.
	SeedClaimID = "25-44-069049"
)

type Claim struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ExternalRef string `json:"external_ref,omitempty"`
	Docs        *int   `json:"docs,omitempty"`
}

type FNOL struct {
	ExternalRef string `json:"external_ref"`
	Docs        int    `json:"docs"`
}

// Store keeps claims in memory. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	claims map[string]Claim
	newID  func() string
}

func NewStore() *Store {
	return &Store{
		claims: map[string]Claim{
			SeedClaimID: {ID: SeedClaimID, Status: StatusOpen},
		},
		newID: randomID,
	}
}

func (s *Store) Get(id string) (Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[id]
	if !ok {
		return Claim{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Create opens a claim for a first notice of loss.
func (s *Store) Create(f FNOL) Claim {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		if _, taken := s.claims[id]; !taken {
			break
		}
		id = s.newID()
	}

	docs := f.Docs
	c := Claim{ID: id, Status: StatusOpen, ExternalRef: f.ExternalRef, Docs: &docs}
	s.claims[id] = c
	return c
}

// randomID returns an ID shaped like dd-dd-dddddd.
func randomID() string {
	return fmt.Sprintf("%02d-%02d-%06d", rand.IntN(100), rand.IntN(100), rand.IntN(1000000))
}
