package exfat

import (
	"errors"
)

// These are the kinds of failures that can be returned by any of the volume
// operations. Every returned error wraps exactly one of them and can be tested
// with `errors.Is`.
var (
	// ErrIoFailure means that a read against the volume or a write against the
	// output failed.
	ErrIoFailure = errors.New("i/o failure")

	// ErrInvalidGeometry means that the boot-sector describes sizes that we
	// can not work with.
	ErrInvalidGeometry = errors.New("invalid volume geometry")

	// ErrInvalidCluster means that a cluster is out of range or that a chain
	// ended while more data was still expected.
	ErrInvalidCluster = errors.New("invalid cluster")

	// ErrEndOfChain is returned when the FAT has no further cluster for the
	// current chain. It is not a failure in itself.
	ErrEndOfChain = errors.New("end of cluster chain")

	// ErrEntrySetMalformed means that the counts and lengths in a directory
	// entry-set are not plausible.
	ErrEntrySetMalformed = errors.New("directory entry-set malformed")

	// ErrAllocationBitmapNotFound means that the root directory has no
	// allocation-bitmap entry.
	ErrAllocationBitmapNotFound = errors.New("allocation bitmap not found")

	// ErrPathNotFound means that a path segment matched no entry.
	ErrPathNotFound = errors.New("path not found")

	// ErrNotAFile means that the final path segment is a directory.
	ErrNotAFile = errors.New("not a file")

	// ErrNotADirectory means that an intermediate path segment is a file.
	ErrNotADirectory = errors.New("not a directory")
)
