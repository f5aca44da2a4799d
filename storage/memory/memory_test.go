package memory_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatehouse/storage"
	"github.com/jmcleod/gatehouse/storage/memory"
	"github.com/jmcleod/gatehouse/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.TestUserStore(t, func(t *testing.T) storage.UserStore {
		return memory.NewStore()
	})
}

func TestReturnedUsersAreCopies(t *testing.T) {
	s := memory.NewStore()
	ctx := t.Context()

	u, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
	require.NoError(t, err)

	// Mutating a returned record must not leak into the store.
	u.HashedPassword[0] = 'X'
	u.Email = "tampered"

	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Email)
	assert.Equal(t, []byte("hash-1"), got.HashedPassword)
}

func TestConcurrentInsertSameEmail(t *testing.T) {
	s := memory.NewStore()
	ctx := t.Context()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.InsertUser(ctx, "a@b.com", []byte("hash"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, storage.ErrAlreadyExists)
		}
	}
	assert.Equal(t, 1, winners)
}
