package exfat

import (
	"fmt"
	"io"
)

// directoryCursor yields the 32-byte slots of a directory in order. Each slot
// is checked against the cluster boundary on its own, so an entry-set can
// cross from one cluster into the next at any slot.
type directoryCursor struct {
	chain *clusterChain

	buffer   []byte
	position int
	loaded   bool
}

func newDirectoryCursor(v *Volume, first ClusterIndex, dataLength uint64, contiguous bool) (dc *directoryCursor, err error) {
	cc, err := newClusterChain(v.geometry, v.r, first, dataLength, contiguous)
	if err != nil {
		return nil, err
	}

	dc = &directoryCursor{
		chain:  cc,
		buffer: make([]byte, v.geometry.BytesPerCluster()),
	}

	return dc, nil
}

// Cluster returns the cluster that the next slot will be read from (or the
// last one, if the current one is exhausted).
func (dc *directoryCursor) Cluster() ClusterIndex {
	return dc.chain.Current()
}

// Next returns a copy of the next slot. io.EOF is returned when the chain of
// the directory is exhausted.
func (dc *directoryCursor) Next() (slot []byte, err error) {
	if dc.loaded == false {
		err := dc.chain.Read(dc.buffer)
		if err != nil {
			return nil, err
		}

		dc.loaded = true
		dc.position = 0
	} else if dc.position >= len(dc.buffer) {
		err := dc.chain.Advance()
		if err == ErrEndOfChain {
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		}

		err = dc.chain.Read(dc.buffer)
		if err != nil {
			return nil, err
		}

		dc.position = 0
	}

	slot = make([]byte, directoryEntryBytesCount)
	copy(slot, dc.buffer[dc.position:dc.position+directoryEntryBytesCount])

	dc.position += directoryEntryBytesCount

	return slot, nil
}

// NextInSet is Next() for a slot that must exist because an entry-set said so.
func (dc *directoryCursor) NextInSet(primaryCluster ClusterIndex) (slot []byte, err error) {
	slot, err = dc.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: directory chain ended inside the entry-set starting in cluster (%d)", ErrInvalidCluster, primaryCluster)
	} else if err != nil {
		return nil, err
	}

	return slot, nil
}
