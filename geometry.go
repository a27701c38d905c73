package exfat

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

const (
	// Cluster indices below this are reserved. FAT[X] corresponds to the
	// cluster at heap position X-2.
	firstDataCluster = 2

	// The largest shift that can be applied to a 32-bit quantity.
	maximumShift = 31

	// exFAT clusters are at most 32M.
	maximumBytesPerCluster = 32 * 1024 * 1024
)

// VolumeGeometry is the set of sizes and offsets derived from the boot-sector.
// It is computed once per volume and never changes afterward.
type VolumeGeometry struct {
	BytesPerSector    uint32
	SectorsPerCluster uint32

	FatOffsetSectors         uint32
	FatLengthSectors         uint32
	ClusterHeapOffsetSectors uint32
	ClusterCount             uint32

	RootDirectoryCluster ClusterIndex
	SerialNumber         uint32

	BytesPerSectorShift    uint8
	SectorsPerClusterShift uint8
}

// NewVolumeGeometry derives the geometry from a decoded boot-sector. Shifts
// that can not be applied and cluster sizes that can not hold a directory
// entry (or that exceed the exFAT maximum) are rejected.
func NewVolumeGeometry(bsh BootSectorHeader) (vg VolumeGeometry, err error) {
	if bsh.BytesPerSectorShift > maximumShift {
		return vg, fmt.Errorf("%w: bytes-per-sector shift too large: (%d)", ErrInvalidGeometry, bsh.BytesPerSectorShift)
	} else if bsh.SectorsPerClusterShift > maximumShift {
		return vg, fmt.Errorf("%w: sectors-per-cluster shift too large: (%d)", ErrInvalidGeometry, bsh.SectorsPerClusterShift)
	}

	vg = VolumeGeometry{
		BytesPerSector:           uint32(1) << bsh.BytesPerSectorShift,
		SectorsPerCluster:        uint32(1) << bsh.SectorsPerClusterShift,
		FatOffsetSectors:         bsh.FatOffset,
		FatLengthSectors:         bsh.FatLength,
		ClusterHeapOffsetSectors: bsh.ClusterHeapOffset,
		ClusterCount:             bsh.ClusterCount,
		RootDirectoryCluster:     ClusterIndex(bsh.FirstClusterOfRootDirectory),
		SerialNumber:             bsh.VolumeSerialNumber,
		BytesPerSectorShift:      bsh.BytesPerSectorShift,
		SectorsPerClusterShift:   bsh.SectorsPerClusterShift,
	}

	bytesPerCluster := vg.BytesPerCluster()
	if bytesPerCluster < directoryEntryBytesCount || bytesPerCluster > maximumBytesPerCluster {
		return VolumeGeometry{}, fmt.Errorf("%w: cluster-size out of range: (%d)", ErrInvalidGeometry, bytesPerCluster)
	}

	return vg, nil
}

// ReadVolumeGeometry reads the boot-sector from the volume and derives its
// geometry.
func ReadVolumeGeometry(r io.ReaderAt) (vg VolumeGeometry, bsh BootSectorHeader, err error) {
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

	bsh, err = ReadBootSectorHeader(r)
	log.PanicIf(err)

	vg, err = NewVolumeGeometry(bsh)
	log.PanicIf(err)

	return vg, bsh, nil
}

// BytesPerCluster is the size of one cluster.
func (vg VolumeGeometry) BytesPerCluster() uint64 {
	return uint64(vg.SectorsPerCluster) * uint64(vg.BytesPerSector)
}

// IsValidCluster indicates whether the index addresses a cluster in the heap.
func (vg VolumeGeometry) IsValidCluster(ci ClusterIndex) bool {
	return ci >= firstDataCluster && uint64(ci) <= uint64(vg.ClusterCount)+1
}

// ClusterByteOffset returns the absolute offset of the given cluster.
func (vg VolumeGeometry) ClusterByteOffset(ci ClusterIndex) (offset uint64, err error) {
	if vg.IsValidCluster(ci) == false {
		return 0, fmt.Errorf("%w: cluster (%d) outside of heap [2, %d]", ErrInvalidCluster, ci, uint64(vg.ClusterCount)+1)
	}

	sectors := uint64(vg.ClusterHeapOffsetSectors) + uint64(ci-firstDataCluster)*uint64(vg.SectorsPerCluster)
	return sectors * uint64(vg.BytesPerSector), nil
}

// fatEntryOffset returns the absolute offset of the FAT entry for the given
// cluster.
func (vg VolumeGeometry) fatEntryOffset(ci ClusterIndex) uint64 {
	return uint64(vg.FatOffsetSectors)*uint64(vg.BytesPerSector) + uint64(ci)*fatEntryBytesCount
}

func (vg VolumeGeometry) String() string {
	return fmt.Sprintf("VolumeGeometry<SECTOR-SIZE=(%d) SECTORS-PER-CLUSTER=(%d) FAT-OFFSET=(%d) HEAP-OFFSET=(%d) CLUSTER-COUNT=(%d) ROOT=(%d)>", vg.BytesPerSector, vg.SectorsPerCluster, vg.FatOffsetSectors, vg.ClusterHeapOffsetSectors, vg.ClusterCount, vg.RootDirectoryCluster)
}
