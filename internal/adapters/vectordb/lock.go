package vectordb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
)

// LockFile is the ingestion lock file name inside the store directory.
const LockFile = "ingest.lock"

// Lock takes the single-writer ingestion lock for dir. The returned func
// releases it. A lock left behind by a crashed process must be removed by
// hand; the error names its path.
func Lock(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	path := filepath.Join(dir, LockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s exists", entities.ErrIngestionInProgress, path)
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	f.WriteString(strconv.Itoa(os.Getpid()))
	f.Close()

	return func() { os.Remove(path) }, nil
}
