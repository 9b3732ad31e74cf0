package sei

import "errors"

var (
	// recoverable per-record, the listing or process page could not be
	// reached or made sense of
	ErrProcess = errors.New("process access failed")
	// recoverable per-record via the batch retry policy
	ErrPDF = errors.New("pdf generation failed")
)
