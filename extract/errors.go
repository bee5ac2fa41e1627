package extract

import "errors"

var (
	// ErrEmptyPayload indicates the document has no bytes.
	ErrEmptyPayload = errors.New("document is empty")

	// ErrUnsupportedFormat indicates a file type the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUnreadable indicates a recognised format whose content is corrupt.
	ErrUnreadable = errors.New("document is unreadable")

	// ErrNoText indicates the document was read but contains no text.
	// Scanned PDFs without a text layer end up here.
	ErrNoText = errors.New("no text found in document")

	// ErrTooLarge indicates the document exceeds the configured size limit.
	ErrTooLarge = errors.New("document too large")
)
