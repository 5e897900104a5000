package memory_test

import (
	"testing"

	"github.com/aretw0/furrow/pkg/adapters/memory"
	"github.com/aretw0/furrow/pkg/ports"
)

func TestStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, func(t *testing.T) ports.SnapshotStore {
		return memory.NewStore()
	})
}
