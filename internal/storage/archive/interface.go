// Package archive keeps the raw bytes of ingested report documents.
package archive

import (
	"context"
	"path"
)

// Storage is a flat key/value blob store for raw documents.
type Storage interface {
	// Write stores data at key, replacing any previous content.
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the data at key. A missing key is core.ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	Exists(ctx context.Context, key string) (bool, error)
}

// ReportKey is the archive location of a report's source document.
func ReportKey(strategyID, reportID string) string {
	return path.Join("reports", strategyID, reportID+".json")
}
