package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamed_AddRemoveContains(t *testing.T) {
	db := createTestDB(t)
	_, err := db.Create("A")
	require.NoError(t, err)
	sc := db.NewScope()
	defer sc.Release()
	five := registerScalars(t, sc, 5)[0]

	added, err := db.AddMember("A", five)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = db.AddMember("A", five)
	require.NoError(t, err)
	assert.False(t, added)

	found, err := db.ContainsMember("A", five)
	require.NoError(t, err)
	assert.True(t, found)

	removed, err := db.RemoveMember("A", five)
	require.NoError(t, err)
	assert.True(t, removed)
	found, err = db.ContainsMember("A", five)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = db.AddMember("A", 777)
	assert.ErrorIs(t, err, ErrNoSuchObject)
	_, err = db.AddMember("B", five)
	assert.ErrorIs(t, err, ErrNoSuchSet)
}

func TestNamed_MoveMember(t *testing.T) {
	db := createTestDB(t)
	bindSet(t, db, "A", 1, 2)
	bindSet(t, db, "B", 3)
	one, ok := db.Find(NewScalar(1))
	require.True(t, ok)

	require.NoError(t, db.MoveMember("A", "B", one))

	inA, err := db.ContainsMember("A", one)
	require.NoError(t, err)
	inB, err := db.ContainsMember("B", one)
	require.NoError(t, err)
	assert.False(t, inA)
	assert.True(t, inB)

	err = db.MoveMember("A", "B", one)
	assert.ErrorIs(t, err, ErrNotMember)
	assert.EqualError(t, err, "not a member: 1 in A", "members are shown by value")
	assert.ErrorIs(t, db.MoveMember("A", "Z", one), ErrNoSuchSet)
	assert.NoError(t, db.MoveMember("B", "B", one))
	assert.ErrorIs(t, db.MoveMember("A", "A", one), ErrNotMember)
}

func TestNamed_MoveMember_OppositeDirectionsConcurrently(t *testing.T) {
	db := createTestDB(t)
	bindSet(t, db, "A", 1)
	bindSet(t, db, "B", 2)
	one, _ := db.Find(NewScalar(1))
	two, _ := db.Find(NewScalar(2))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			_ = db.MoveMember("A", "B", one)
			_ = db.MoveMember("B", "A", one)
		}
	}()
	for range 200 {
		_ = db.MoveMember("B", "A", two)
		_ = db.MoveMember("A", "B", two)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("moves in opposite directions deadlocked")
	}
}

func TestNamed_PopAndRandom(t *testing.T) {
	db := createTestDB(t)
	root := bindSet(t, db, "A", 1, 2, 3)
	sc := db.NewScope()
	defer sc.Release()

	member, err := db.RandomMember(sc, "A")
	require.NoError(t, err)
	found, err := db.ContainsMember("A", member)
	require.NoError(t, err)
	assert.True(t, found, "RAND leaves the member in place")

	popped := map[ID]bool{}
	for range 3 {
		id, err := db.PopMember(sc, "A")
		require.NoError(t, err)
		popped[id] = true
	}
	assert.Len(t, popped, 3)

	card, err := db.Card(root)
	require.NoError(t, err)
	assert.Equal(t, 0, card)

	_, err = db.PopMember(sc, "A")
	assert.ErrorIs(t, err, ErrEmptySet)
	_, err = db.RandomMember(nil, "A")
	assert.ErrorIs(t, err, ErrEmptySet)

	db.Collect()
	for id := range popped {
		_, err := db.Get(id)
		assert.NoError(t, err)
	}
}

func TestNamed_AdvisoryLocks(t *testing.T) {
	db := createTestDB(t)
	_, err := db.Create("A")
	require.NoError(t, err)

	_, err = db.UnlockName("A")
	assert.ErrorIs(t, err, ErrNotLocked)

	h, err := db.LockName("A")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		_, err := db.LockName("A")
		acquired <- err
	}()
	select {
	case <-acquired:
		t.Fatal("second LOCK acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	// data operations ignore advisory locks
	_, err = db.Create("B")
	require.NoError(t, err)
	_, err = db.ContainsMember("A", 0)
	require.NoError(t, err)

	require.NoError(t, db.UnlockHandle(h))
	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by UNLOCK")
	}

	got, err := db.UnlockName("A")
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = db.LockName("nope")
	assert.ErrorIs(t, err, ErrNoSuchSet)
}

func TestNamed_RemoveReleasesAdvisoryWaiters(t *testing.T) {
	db := createTestDB(t)
	_, err := db.Create("A")
	require.NoError(t, err)
	h, err := db.LockName("A")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		_, err := db.LockName("A")
		acquired <- err
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, db.Remove("A"))
	select {
	case err := <-acquired:
		assert.ErrorIs(t, err, ErrNoSuchSet)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by DEL")
	}
	assert.NoError(t, db.UnlockHandle(h), "unlocking a removed set is a no-op")
}
