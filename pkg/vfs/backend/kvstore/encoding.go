package kvstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// mirrored tree into logical namespaces. Entries are keyed by their
// slash-separated path relative to the mount root, which keeps the layout
// self-documenting and lets ReadDir enumerate a directory with a single
// prefix scan.
//
// Key Namespace Prefixes:
//
// Data Type         Prefix    Key Format        Value Type
// =============================================================
// Entry Metadata    "m:"      m:<rel>           entryRecord (JSON)
// File Content      "b:"      b:<rel>           raw bytes
// Store Identity    "store:"  store:id          UUID string

const (
	prefixMeta    = "m:"
	prefixContent = "b:"

	keyStoreID = "store:id"
)

// keyMeta generates a key for entry metadata: "m:<rel>"
func keyMeta(rel string) []byte {
	return []byte(prefixMeta + rel)
}

// keyContent generates a key for file content: "b:<rel>"
func keyContent(rel string) []byte {
	return []byte(prefixContent + rel)
}

// keyMetaPrefix generates a key prefix for scanning a directory's subtree:
// "m:<rel>/" (or "m:" for the mount root).
func keyMetaPrefix(rel string) []byte {
	if rel == "" {
		return []byte(prefixMeta)
	}
	return []byte(prefixMeta + rel + "/")
}

// ============================================================================
// Value Encoding
// ============================================================================

// entryRecord is the JSON-encoded metadata stored under an "m:" key.
type entryRecord struct {
	Kind    backend.Kind `json:"kind"`
	Size    int64        `json:"size"`
	ModTime time.Time    `json:"mtime"`
}

func encodeEntry(rec *entryRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry record: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*entryRecord, error) {
	rec := &entryRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry record: %w", err)
	}
	return rec, nil
}
