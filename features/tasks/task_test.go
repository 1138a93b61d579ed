package tasks_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dutchsloot84/AgentOps-Mock/features/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ListSorted(t *testing.T) {
	s := tasks.NewStore([]tasks.Task{
		{ID: "T-0002", Title: "b", Status: tasks.StatusOpen},
		{ID: "T-0001", Title: "a", Status: tasks.StatusOpen},
	})

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "T-0001", list[0].ID)
	assert.Equal(t, "T-0002", list[1].ID)
}

func TestStore_Add(t *testing.T) {
	s := tasks.NewStore([]tasks.Task{{ID: "T-0001", Title: "seed", Status: tasks.StatusOpen}})

	got := s.Add("Renew policy", "2025-09-09")
	assert.Equal(t, tasks.Task{ID: "T-0002", Title: "Renew policy", Due: "2025-09-09", Status: tasks.StatusOpen}, got)
	assert.Len(t, s.List(), 2)
}

func TestStore_Add_SkipsTakenID(t *testing.T) {
	s := tasks.NewStore([]tasks.Task{{ID: "T-0002", Title: "seed"}})

	got := s.Add("next", "")
	assert.Equal(t, "T-0003", got.ID)
}

func TestStore_Add_Concurrent(t *testing.T) {
	s := tasks.NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add("t", "")
		}()
	}
	wg.Wait()

	list := s.List()
	require.Len(t, list, 50)
	assert.Equal(t, "T-0001", list[0].ID)
	assert.Equal(t, "T-0050", list[49].ID)
}

func TestStore_Complete(t *testing.T) {
	s := tasks.NewStore([]tasks.Task{{ID: "T-0001", Title: "a", Status: tasks.StatusOpen}})

	got, err := s.Complete("T-0001")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusDone, got.Status)

	_, err = s.Complete("T-9999")
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"T-0001","title":"a","due":"2025-01-01","status":"open"}]`), 0o644))

	seed, err := tasks.LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, seed, 1)
	assert.Equal(t, "2025-01-01", seed[0].Due)

	_, err = tasks.LoadSeed(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = tasks.LoadSeed(path)
	assert.Error(t, err)
}
