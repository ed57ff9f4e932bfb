package usecases

import (
	"fmt"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
)

// Fingerprint builds the stable chunk id "<source>:<page>:<index>".
func Fingerprint(source string, page, index int) string {
	return fmt.Sprintf("%s:%d:%d", source, page, index)
}

// AssignFingerprints sets ID and Index on chunks in the order the chunker
// emitted them. The index restarts at 0 whenever (source, page) changes,
// so callers must not reorder chunks before this pass.
func AssignFingerprints(chunks []entities.Chunk) error {
	var (
		lastSource string
		lastPage   int
		index      int
	)
	for i := range chunks {
		c := &chunks[i]
		if c.Source == "" {
			return &entities.MissingMetadataError{Position: i, Field: "source"}
		}
		if c.Page < 0 {
			return &entities.MissingMetadataError{Position: i, Field: "page"}
		}

		if i > 0 && c.Source == lastSource && c.Page == lastPage {
			index++
		} else {
			index = 0
		}
		lastSource, lastPage = c.Source, c.Page

		c.Index = index
		c.ID = Fingerprint(c.Source, c.Page, index)
	}
	return nil
}
