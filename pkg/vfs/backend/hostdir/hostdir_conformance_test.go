package hostdir_test

import (
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/backendtest"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/hostdir"
)

func TestConformance(t *testing.T) {
	backendtest.RunConformanceSuite(t, func(t *testing.T) backend.Adapter {
		a, err := hostdir.New(t.TempDir())
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		t.Cleanup(func() {
			_ = a.Close()
		})
		return a
	})
}
