package exfat

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

const (
	fatEntryBytesCount = 4
)

var (
	fatLogger = log.NewLogger("exfat.fat")
)

// ClusterIndex is a logical cluster number. It is also the type of each FAT
// entry, since every entry holds the index of the next cluster.
type ClusterIndex uint32

const (
	clusterBad  ClusterIndex = 0xfffffff7
	clusterLast ClusterIndex = 0xffffffff
)

// IsBad indicates that the FAT marks the cluster as bad.
func (ci ClusterIndex) IsBad() bool {
	return ci == clusterBad
}

// IsLast indicates the explicit end-of-chain marker.
func (ci ClusterIndex) IsLast() bool {
	return ci == clusterLast
}

// IsEndOfChain indicates any of the values that can not continue a chain.
func (ci ClusterIndex) IsEndOfChain() bool {
	return ci >= clusterBad
}

// NextCluster reads the FAT entry for the current cluster. ErrEndOfChain is
// returned for the end-of-chain markers. A bad-cluster marker or a value that
// is not a valid heap cluster is ErrInvalidCluster.
func NextCluster(vg VolumeGeometry, r io.ReaderAt, current ClusterIndex) (next ClusterIndex, err error) {
	if vg.IsValidCluster(current) == false {
		return 0, fmt.Errorf("%w: no FAT entry for cluster (%d)", ErrInvalidCluster, current)
	}

	raw := make([]byte, fatEntryBytesCount)

	offset := vg.fatEntryOffset(current)

	err = readFullAt(r, raw, int64(offset))
	if err != nil {
		return 0, fmt.Errorf("%w: FAT entry for cluster (%d): %w", ErrIoFailure, current, err)
	}

	next = ClusterIndex(defaultEncoding.Uint32(raw))

	if next.IsBad() == true {
		return 0, fmt.Errorf("%w: FAT marks the cluster after (%d) as bad", ErrInvalidCluster, current)
	} else if next.IsEndOfChain() == true {
		return 0, ErrEndOfChain
	} else if vg.IsValidCluster(next) == false {
		fatLogger.Warningf(nil, "FAT entry for cluster (%d) is out of range: (0x%08x)", current, uint32(next))
		return 0, fmt.Errorf("%w: FAT entry for cluster (%d) is out of range: (0x%08x)", ErrInvalidCluster, current, uint32(next))
	}

	return next, nil
}

// clusterChain is a position in a chain of clusters. Every traversal gets its
// own, so nested traversals never disturb each other.
type clusterChain struct {
	vg VolumeGeometry
	r  io.ReaderAt

	current    ClusterIndex
	contiguous bool

	// limit is the number of clusters that a contiguous chain covers. Zero if
	// unknown.
	limit uint32

	steps uint32
}

// newClusterChain returns a chain starting at `first`. A contiguous chain has
// no FAT links to end it, so it ends after the clusters that `dataLength`
// needs (or at the end of the heap if the length is zero).
func newClusterChain(vg VolumeGeometry, r io.ReaderAt, first ClusterIndex, dataLength uint64, contiguous bool) (cc *clusterChain, err error) {
	if vg.IsValidCluster(first) == false {
		return nil, fmt.Errorf("%w: chain can not start at cluster (%d)", ErrInvalidCluster, first)
	}

	cc = &clusterChain{
		vg:         vg,
		r:          r,
		current:    first,
		contiguous: contiguous,
	}

	if contiguous == true && dataLength > 0 {
		bytesPerCluster := vg.BytesPerCluster()
		clusters := (dataLength + bytesPerCluster - 1) / bytesPerCluster

		if clusters > uint64(vg.ClusterCount) {
			return nil, fmt.Errorf("%w: contiguous run of (%d) bytes at cluster (%d) is larger than the heap", ErrInvalidCluster, dataLength, first)
		}

		cc.limit = uint32(clusters)
	}

	return cc, nil
}

// Current returns the cluster that the chain is positioned on.
func (cc *clusterChain) Current() ClusterIndex {
	return cc.current
}

// Advance moves to the next cluster. A chain can never be longer than the
// heap, so a chain that keeps going past that is looping.
func (cc *clusterChain) Advance() (err error) {
	if cc.steps >= cc.vg.ClusterCount {
		return fmt.Errorf("%w: chain starting before cluster (%d) is longer than the cluster-count (%d)", ErrInvalidCluster, cc.current, cc.vg.ClusterCount)
	}

	var next ClusterIndex

	if cc.contiguous == true {
		if cc.limit > 0 && cc.steps+1 >= cc.limit {
			return ErrEndOfChain
		}

		next = cc.current + 1

		if cc.vg.IsValidCluster(next) == false {
			return ErrEndOfChain
		}
	} else {
		next, err = NextCluster(cc.vg, cc.r, cc.current)
		if err != nil {
			return err
		}
	}

	cc.current = next
	cc.steps++

	return nil
}

// Read fills the buffer with the leading bytes of the current cluster.
func (cc *clusterChain) Read(buffer []byte) (err error) {
	offset, err := cc.vg.ClusterByteOffset(cc.current)
	if err != nil {
		return err
	}

	err = readFullAt(cc.r, buffer, int64(offset))
	if err != nil {
		return fmt.Errorf("%w: cluster (%d): %w", ErrIoFailure, cc.current, err)
	}

	return nil
}

// ClusterVisitorFunc receives the index and the data of each cluster in a
// chain. The data buffer is reused between calls.
type ClusterVisitorFunc func(ci ClusterIndex, data []byte) (doContinue bool, err error)

// EnumerateClusters visits each cluster of the chain starting at the given
// cluster, either following the FAT or, if `contiguous`, adjacent clusters.
// The enumeration ends at the end of the chain or when the callback declines
// to continue. `dataLength` bounds a contiguous run and may be zero.
func (v *Volume) EnumerateClusters(first ClusterIndex, dataLength uint64, contiguous bool, cb ClusterVisitorFunc) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	cc, err := newClusterChain(v.geometry, v.r, first, dataLength, contiguous)
	log.PanicIf(err)

	data := make([]byte, v.geometry.BytesPerCluster())

	for {
		err := cc.Read(data)
		log.PanicIf(err)

		doContinue, err := cb(cc.Current(), data)
		log.PanicIf(err)

		if doContinue == false {
			break
		}

		err = cc.Advance()
		if err == ErrEndOfChain {
			break
		}

		log.PanicIf(err)
	}

	return nil
}
