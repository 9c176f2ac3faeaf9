package kvstore_test

import (
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/backendtest"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/kvstore"
)

func TestConformance(t *testing.T) {
	backendtest.RunConformanceSuite(t, func(t *testing.T) backend.Adapter {
		store, err := kvstore.OpenInMemory()
		if err != nil {
			t.Fatalf("OpenInMemory() failed: %v", err)
		}
		t.Cleanup(func() {
			_ = store.Close()
		})
		return store
	})
}
