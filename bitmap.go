package exfat

import (
	"fmt"
	"math/bits"
	"reflect"

	"github.com/dsoprea/go-logging"
)

var (
	bitmapLogger = log.NewLogger("exfat.bitmap")
)

// FreeSpaceSummary is the result of counting the clear bits of the
// allocation bitmap.
type FreeSpaceSummary struct {
	FreeClusters    uint64
	BytesPerCluster uint64
	FreeSpaceBytes  uint64

	// FreeSpaceKB is FreeSpaceBytes divided by 1024, truncated.
	FreeSpaceKB uint64
}

func (fss FreeSpaceSummary) String() string {
	return fmt.Sprintf("FreeSpaceSummary<FREE-CLUSTERS=(%d) BYTES-PER-CLUSTER=(%d) FREE-BYTES=(%d) FREE-KB=(%d)>", fss.FreeClusters, fss.BytesPerCluster, fss.FreeSpaceBytes, fss.FreeSpaceKB)
}

// AllocationBitmap finds the allocation-bitmap entry in the root directory.
func (v *Volume) AllocationBitmap() (abde ExfatAllocationBitmapDirectoryEntry, err error) {
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

	en := NewExfatNavigator(v, v.FirstClusterOfRootDirectory(), 0, false)

	slot, found, err := en.FindEntry(EntryTypeAllocationBitmap)
	log.PanicIf(err)

	if found == false {
		log.Panic(ErrAllocationBitmapNotFound)
	}

	abde, err = parseAllocationBitmapDirectoryEntry(slot)
	log.PanicIf(err)

	bitmapLogger.Debugf(nil, "Found bitmap: %s", abde)

	return abde, nil
}

// FreeSpace counts the clear bits of the allocation bitmap. There is one bit
// per heap cluster, least-significant bit first, so exactly `ClusterCount`
// bits are considered and the padding of the final byte is ignored.
func (v *Volume) FreeSpace() (fss FreeSpaceSummary, err error) {
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

	abde, err := v.AllocationBitmap()
	log.PanicIf(err)

	remainingBits := uint64(v.geometry.ClusterCount)
	allocated := uint64(0)

	cb := func(ci ClusterIndex, data []byte) (doContinue bool, err error) {
		for _, b := range data {
			if remainingBits == 0 {
				break
			}

			if remainingBits < 8 {
				b &= byte(1<<remainingBits) - 1
				allocated += uint64(bits.OnesCount8(b))
				remainingBits = 0

				break
			}

			allocated += uint64(bits.OnesCount8(b))
			remainingBits -= 8
		}

		return remainingBits > 0, nil
	}

	err = v.EnumerateClusters(ClusterIndex(abde.FirstCluster), abde.DataLength, false, cb)
	log.PanicIf(err)

	if remainingBits > 0 {
		log.Panic(fmt.Errorf("%w: bitmap chain ended with (%d) bits still expected", ErrInvalidCluster, remainingBits))
	}

	bytesPerCluster := v.geometry.BytesPerCluster()
	freeClusters := uint64(v.geometry.ClusterCount) - allocated

	fss = FreeSpaceSummary{
		FreeClusters:    freeClusters,
		BytesPerCluster: bytesPerCluster,
		FreeSpaceBytes:  freeClusters * bytesPerCluster,
		FreeSpaceKB:     freeClusters * bytesPerCluster / 1024,
	}

	return fss, nil
}
