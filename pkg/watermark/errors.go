package watermark

import "errors"

// Sentinel errors. Callers match them with errors.Is; returned errors wrap
// them with call-specific detail.
var (
	// ErrInvalidArgument is returned when the payload exceeds the grid's
	// capacity or the grid has the wrong shape for the chosen codec.
	ErrInvalidArgument = errors.New("watermark: invalid argument")

	// ErrInvalidWatermark is returned by strict decoding when the extracted
	// bits do not form valid UTF-8 text.
	ErrInvalidWatermark = errors.New("watermark: invalid watermark")

	// ErrProcessing is returned when an external collaborator fails or when
	// every sampled observation failed.
	ErrProcessing = errors.New("watermark: processing error")

	// ErrUnsupportedFormat is returned for an unrecognized algorithm tag or
	// media format.
	ErrUnsupportedFormat = errors.New("watermark: unsupported format")
)
