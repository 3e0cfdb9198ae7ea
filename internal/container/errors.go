// Package container parses the RIFF-style SI container format (spec.md §6):
// a top-level RIFF/OMNI wrapper holding an MxHd header chunk and a
// LIST/MxDa body of MxOb action-tree objects and MxCh stream chunks. It
// also builds and caches the parsed object/chunk offset directory a
// provider consults for random access, instead of re-walking the whole
// file on every open.
package container

import "errors"

var (
	ErrInvalidMagic       = errors.New("container: missing RIFF/OMNI magic")
	ErrUnsupportedVersion = errors.New("container: unsupported MxHd version")
	ErrTruncated          = errors.New("container: truncated RIFF chunk")
	ErrNotFound           = errors.New("container: directory entry not found")
)
