package objstore_test

import (
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/objstore"
)

func TestStoreIsWriteThrough(t *testing.T) {
	store := objstore.New(nil, objstore.Config{Bucket: "snapshots"})
	if !backend.IsWriteThrough(store) {
		t.Error("expected object store to report write-through")
	}
}
