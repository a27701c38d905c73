// This package reads exFAT volumes without modifying them. This file manages
// the low-level, on-disk boot-sector structure.

package exfat

import (
	"bytes"
	"fmt"
	"io"
	"reflect"

	"encoding/binary"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

const (
	bootSectorHeaderSize = 512
)

var (
	defaultEncoding = binary.LittleEndian
)

var (
	requiredFileSystemName = []byte("EXFAT   ")
)

var (
	structuresLogger = log.NewLogger("exfat.structures")
)

// BootSectorHeader describes the main set of filesystem parameters. Only the
// geometry fields are interpreted; everything else is carried for display.
type BootSectorHeader struct {
	// JumpBoot is the x86 jump instruction (0xEB 0x76 0x90).
	JumpBoot [3]byte

	// FileSystemName is "EXFAT   " on a well-formed volume.
	FileSystemName [8]byte

	// MustBeZero overlaps the FAT12/16/32 BIOS parameter block.
	MustBeZero [53]byte

	PartitionOffset uint64
	VolumeLength    uint64

	// FatOffset is the sector offset of the first FAT (boot-sector offset 80).
	FatOffset uint32

	// FatLength is the length of each FAT in sectors.
	FatLength uint32

	// ClusterHeapOffset is the sector offset of the cluster heap (offset 88).
	ClusterHeapOffset uint32

	// ClusterCount is the number of clusters in the cluster heap (offset 92).
	ClusterCount uint32

	// FirstClusterOfRootDirectory is the first cluster of the root directory
	// (offset 96).
	FirstClusterOfRootDirectory uint32

	// VolumeSerialNumber is at offset 100.
	VolumeSerialNumber uint32

	FileSystemRevision [2]uint8
	VolumeFlags        VolumeFlags

	// BytesPerSectorShift is a log2 (offset 108). It must be shifted, never
	// used as a magnitude.
	BytesPerSectorShift uint8

	// SectorsPerClusterShift is a log2 (offset 109).
	SectorsPerClusterShift uint8

	NumberOfFats  uint8
	DriveSelect   uint8
	PercentInUse  uint8
	Reserved      [7]byte
	BootCode      [390]byte
	BootSignature uint16
}

const (
	// VolumeFlagActiveFat describes which FAT and allocation bitmap are active
	// (and implementations shall use), as follows: 0, which means the First
	// FAT and First Allocation Bitmap are active; 1, which means the Second
	// FAT and Second Allocation Bitmap are active.
	VolumeFlagActiveFat VolumeFlags = 1

	// VolumeFlagVolumeDirty describes whether the volume is dirty or not.
	VolumeFlagVolumeDirty = 2

	// VolumeFlagMediaFailure describes whether an implementation has
	// discovered media failures or not.
	VolumeFlagMediaFailure = 4
)

// VolumeFlags is the flags field of the boot-sector.
type VolumeFlags uint16

// UseSecondFat indicates that the second FAT is the active one. We only ever
// read the first.
func (vf VolumeFlags) UseSecondFat() bool {
	return vf&VolumeFlagActiveFat > 0
}

// IsDirty indicates that the volume was not cleanly unmounted.
func (vf VolumeFlags) IsDirty() bool {
	return vf&VolumeFlagVolumeDirty > 0
}

// HasHadMediaFailures indicates that bad sectors were seen.
func (vf VolumeFlags) HasHadMediaFailures() bool {
	return vf&VolumeFlagMediaFailure > 0
}

// HasExfatName indicates whether the file-system name is the one that an
// exFAT formatter writes.
func (bsh BootSectorHeader) HasExfatName() bool {
	return bytes.Equal(bsh.FileSystemName[:], requiredFileSystemName)
}

// Dump prints the boot-sector header to STDOUT.
func (bsh BootSectorHeader) Dump() {
	fmt.Printf("Boot Sector Header\n")
	fmt.Printf("==================\n")
	fmt.Printf("\n")

	fmt.Printf("FileSystemName: [%s]\n", string(bsh.FileSystemName[:]))
	fmt.Printf("PartitionOffset: (%d)\n", bsh.PartitionOffset)
	fmt.Printf("VolumeLength: (%d)\n", bsh.VolumeLength)
	fmt.Printf("FatOffset: (%d)\n", bsh.FatOffset)
	fmt.Printf("FatLength: (%d)\n", bsh.FatLength)
	fmt.Printf("ClusterHeapOffset: (%d)\n", bsh.ClusterHeapOffset)
	fmt.Printf("ClusterCount: (%d)\n", bsh.ClusterCount)
	fmt.Printf("FirstClusterOfRootDirectory: (%d)\n", bsh.FirstClusterOfRootDirectory)
	fmt.Printf("VolumeSerialNumber: (0x%08x)\n", bsh.VolumeSerialNumber)
	fmt.Printf("FileSystemRevision: (0x%02x) (0x%02x)\n", bsh.FileSystemRevision[1], bsh.FileSystemRevision[0])
	fmt.Printf("BytesPerSectorShift: (%d)\n", bsh.BytesPerSectorShift)
	fmt.Printf("SectorsPerClusterShift: (%d)\n", bsh.SectorsPerClusterShift)
	fmt.Printf("NumberOfFats: (%d)\n", bsh.NumberOfFats)
	fmt.Printf("PercentInUse: (%d)\n", bsh.PercentInUse)
	fmt.Printf("VolumeFlags: (%016b) DIRTY=[%v] MEDIA-FAILURE=[%v] SECOND-FAT=[%v]\n", bsh.VolumeFlags, bsh.VolumeFlags.IsDirty(), bsh.VolumeFlags.HasHadMediaFailures(), bsh.VolumeFlags.UseSecondFat())

	fmt.Printf("\n")
}

func (bsh BootSectorHeader) String() string {
	return fmt.Sprintf("BootSector<SN=(0x%08x) REVISION=(0x%02x)-(0x%02x)>", bsh.VolumeSerialNumber, bsh.FileSystemRevision[1], bsh.FileSystemRevision[0])
}

// ReadBootSectorHeader reads and decodes the first sector of the volume. The
// signatures are not enforced; a volume without the exFAT name is only
// reported in the log.
func ReadBootSectorHeader(r io.ReaderAt) (bsh BootSectorHeader, err error) {
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

	raw := make([]byte, bootSectorHeaderSize)

	err = readFullAt(r, raw, 0)
	if err != nil {
		log.Panic(fmt.Errorf("%w: boot-sector: %w", ErrIoFailure, err))
	}

	err = restruct.Unpack(raw, defaultEncoding, &bsh)
	log.PanicIf(err)

	if bsh.HasExfatName() == false {
		structuresLogger.Warningf(nil, "File-system name is not exFAT: [%s]", string(bsh.FileSystemName[:]))
	}

	return bsh, nil
}

// readFullAt is io.ReadFull for an io.ReaderAt. A short read at the end of the
// source is reported as io.ErrUnexpectedEOF.
func readFullAt(r io.ReaderAt, buffer []byte, offset int64) error {
	for n := 0; n < len(buffer); {
		m, err := r.ReadAt(buffer[n:], offset)

		n += m
		offset += int64(m)

		if err != nil {
			if err == io.EOF && n == len(buffer) {
				return nil
			}

			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}

			return err
		}
	}

	return nil
}
