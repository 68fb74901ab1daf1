package export

import "errors"

// Conversion errors. Only ErrSinkFailure aborts an export; the others skip
// a geometry or a primitive set and are reported through Diagnostics.
var (
	ErrUnsupportedArrayType = errors.New("unsupported array type")
	ErrUnsupportedTopology  = errors.New("unsupported primitive topology")
	ErrIndexOutOfRange      = errors.New("vertex index out of range")
	ErrNilPrimitiveSet      = errors.New("nil primitive set")
	ErrSinkFailure          = errors.New("sink failure")
	ErrExportFinished       = errors.New("export already finished")
)
