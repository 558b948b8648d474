package version

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/log"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), log.NewNop())
	require.NoError(t, err)
	return m
}

func TestCreateMovesCurrentPointer(t *testing.T) {
	m := newTestManager(t)

	v1, err := m.Create("doc", "hash-1", []string{"initial"}, "hash-1")
	require.NoError(t, err)
	v2, err := m.Create("doc", "hash-2", []string{"update"}, "hash-2")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	current, ok := m.Current("doc")
	require.True(t, ok)
	assert.Equal(t, v2, current.ID)
	assert.Equal(t, "hash-2", current.Hash)

	versions := m.List("doc")
	require.Len(t, versions, 2)
	assert.Equal(t, v1, versions[0].ID)
	assert.Equal(t, v2, versions[1].ID)
}

func TestRollbackRepointsOnly(t *testing.T) {
	m := newTestManager(t)

	v1, err := m.Create("doc", "hash-1", nil, "hash-1")
	require.NoError(t, err)
	_, err = m.Create("doc", "hash-2", nil, "hash-2")
	require.NoError(t, err)

	assert.True(t, m.Rollback("doc", v1))

	current, ok := m.Current("doc")
	require.True(t, ok)
	assert.Equal(t, v1, current.ID)

	// History is untouched.
	assert.Len(t, m.List("doc"), 2)
}

func TestRollbackUnknownVersion(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create("doc", "hash-1", nil, "")
	require.NoError(t, err)

	assert.False(t, m.Rollback("doc", "no-such-version"))
	assert.False(t, m.Rollback("no-such-doc", "whatever"))
}

func TestDeleteRefusesCurrent(t *testing.T) {
	m := newTestManager(t)

	v1, err := m.Create("doc", "hash-1", nil, "")
	require.NoError(t, err)
	v2, err := m.Create("doc", "hash-2", nil, "")
	require.NoError(t, err)

	assert.False(t, m.Delete("doc", v2))
	assert.True(t, m.Delete("doc", v1))
	assert.False(t, m.Delete("doc", v1))

	// Current pointer still references an existing version.
	current, ok := m.Current("doc")
	require.True(t, ok)
	assert.Equal(t, v2, current.ID)
}

func TestDeleteDocumentDropsHistory(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create("doc", "hash-1", nil, "")
	require.NoError(t, err)

	require.NoError(t, m.DeleteDocument("doc"))
	assert.Nil(t, m.List("doc"))
	_, ok := m.Current("doc")
	assert.False(t, ok)

	require.NoError(t, m.DeleteDocument("doc"))
}

func TestGet(t *testing.T) {
	m := newTestManager(t)

	v1, err := m.Create("doc", "hash-1", []string{"initial"}, "hash-1")
	require.NoError(t, err)

	got, ok := m.Get("doc", v1)
	require.True(t, ok)
	assert.Equal(t, "hash-1", got.Hash)

	_, ok = m.Get("doc", "missing")
	assert.False(t, ok)
}

func TestLogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir, log.NewNop())
	require.NoError(t, err)
	v1, err := m.Create("doc", "hash-1", nil, "hash-1")
	require.NoError(t, err)

	reopened, err := NewManager(dir, log.NewNop())
	require.NoError(t, err)
	current, ok := reopened.Current("doc")
	require.True(t, ok)
	assert.Equal(t, v1, current.ID)

	_, err = os.Stat(filepath.Join(dir, logFile))
	assert.NoError(t, err)
}

func TestConcurrentCreates(t *testing.T) {
	m := newTestManager(t)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := m.Create("doc", "hash", nil, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, m.List("doc"), n)
	_, ok := m.Current("doc")
	assert.True(t, ok)
}
