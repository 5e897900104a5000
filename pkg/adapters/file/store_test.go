package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/adapters/file"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

func TestStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, func(t *testing.T) ports.SnapshotStore {
		return file.New(t.TempDir())
	})
}

func TestStore_DefaultBasePath(t *testing.T) {
	store := file.New("")
	assert.Equal(t, filepath.Join(".furrow", "threads"), store.BasePath())
}

func TestStore_WritesReadableJSON(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	state := domain.NewState()
	state.Messages = append(state.Messages, domain.UserMessage("hello"))
	state.AwaitingApproval = true
	state.ResumePoint = "executor"
	require.NoError(t, store.Save(ctx, "t1", state))

	data, err := os.ReadFile(filepath.Join(dir, "t1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"awaiting_approval": true`)
	assert.Contains(t, string(data), `"resume_point": "executor"`)
}

func TestStore_RejectsTraversingIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "a/b", `a\b`, "../escape"} {
		err := store.Save(ctx, id, domain.NewState())
		assert.Error(t, err, "id %q", id)
	}
}

func TestStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "t1", domain.NewState()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	threads, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, threads)
}

func TestStore_CorruptSnapshotSurfacesDecodeError(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err := store.Load(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrThreadNotFound, "corruption is not the same as absence")
}
