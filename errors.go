package studyplanner

import "errors"

// ErrDocumentIDRequired is returned when ingestion is requested without a document.
var ErrDocumentIDRequired = errors.New("document id is required")
