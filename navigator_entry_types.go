package exfat

import (
	"fmt"
	"reflect"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

const (
	// Every file-name entry carries fifteen UTF-16 code-units.
	fileNameCharactersPerEntry = 15
)

// EntryType is the first byte of every directory entry.
type EntryType uint8

const (
	// EntryTypeEndOfDirectory marks that no further entries follow in the
	// directory.
	EntryTypeEndOfDirectory EntryType = 0x00

	// EntryTypeAllocationBitmap is the critical primary allocation-bitmap
	// entry.
	EntryTypeAllocationBitmap EntryType = 0x81

	// EntryTypeUpcaseTable is the critical primary up-case table entry. It is
	// not interpreted.
	EntryTypeUpcaseTable EntryType = 0x82

	// EntryTypeVolumeLabel is the critical primary volume-label entry.
	EntryTypeVolumeLabel EntryType = 0x83

	// EntryTypeFile is the first entry of a file or directory entry-set.
	EntryTypeFile EntryType = 0x85

	// EntryTypeStreamExtension always immediately follows EntryTypeFile.
	EntryTypeStreamExtension EntryType = 0xc0

	// EntryTypeFileName carries one fifteen-character part of a name.
	EntryTypeFileName EntryType = 0xc1
)

// IsEndOfDirectory indicates the terminal entry.
func (et EntryType) IsEndOfDirectory() bool {
	return et == EntryTypeEndOfDirectory
}

// TypeCode is the low five bits.
func (et EntryType) TypeCode() int {
	return int(et & 31)
}

// IsCritical indicates that the TypeImportance bit is clear.
func (et EntryType) IsCritical() bool {
	return et&32 == 0
}

// IsPrimary indicates that the TypeCategory bit is clear.
func (et EntryType) IsPrimary() bool {
	return et&64 == 0
}

// IsInUse indicates that the entry has not been deleted.
func (et EntryType) IsInUse() bool {
	return et&128 > 0
}

func (et EntryType) String() string {
	return fmt.Sprintf("EntryType<VALUE=(0x%02x) TYPE-CODE=(%d) IS-CRITICAL=[%v] IS-PRIMARY=[%v] IS-IN-USE=[%v]>", uint8(et), et.TypeCode(), et.IsCritical(), et.IsPrimary(), et.IsInUse())
}

// FileAttributes is the attributes field of the file entry.
type FileAttributes uint16

// IsReadOnly indicates the read-only bit.
func (fa FileAttributes) IsReadOnly() bool {
	return fa&1 > 0
}

// IsHidden indicates the hidden bit.
func (fa FileAttributes) IsHidden() bool {
	return fa&2 > 0
}

// IsSystem indicates the system bit.
func (fa FileAttributes) IsSystem() bool {
	return fa&4 > 0
}

// IsDirectory indicates the directory bit (0x0010).
func (fa FileAttributes) IsDirectory() bool {
	return fa&16 > 0
}

// IsArchive indicates the archive bit.
func (fa FileAttributes) IsArchive() bool {
	return fa&32 > 0
}

func (fa FileAttributes) String() string {
	return fmt.Sprintf("FileAttributes<IS-READONLY=[%v] IS-HIDDEN=[%v] IS-SYSTEM=[%v] IS-DIRECTORY=[%v] IS-ARCHIVE=[%v]>",
		fa.IsReadOnly(), fa.IsHidden(), fa.IsSystem(), fa.IsDirectory(), fa.IsArchive())
}

// GeneralSecondaryFlags is the flags field shared by all secondary entries.
type GeneralSecondaryFlags uint8

// IsAllocationPossible indicates whether the entry has a cluster allocation.
func (gsf GeneralSecondaryFlags) IsAllocationPossible() bool {
	return gsf&1 > 0
}

// NoFatChain indicates that the clusters of the allocation are contiguous
// and that the FAT is not maintained for them.
func (gsf GeneralSecondaryFlags) NoFatChain() bool {
	return gsf&2 > 0
}

func (gsf GeneralSecondaryFlags) String() string {
	return fmt.Sprintf("GeneralSecondaryFlags<IS-ALLOCATION-POSSIBLE=[%v] NO-FAT-CHAIN=[%v]>", gsf.IsAllocationPossible(), gsf.NoFatChain())
}

// ExfatFileDirectoryEntry is the primary entry of a file or directory. The
// timestamps are carried but not interpreted.
type ExfatFileDirectoryEntry struct {
	EntryType      EntryType
	SecondaryCount uint8
	SetChecksum    uint16
	FileAttributes FileAttributes
	Reserved1      uint16

	CreateTimestamp       uint32
	LastModifiedTimestamp uint32
	LastAccessedTimestamp uint32

	Create10msIncrement       uint8
	LastModified10msIncrement uint8
	CreateUtcOffset           uint8
	LastModifiedUtcOffset     uint8
	LastAccessedUtcOffset     uint8

	Reserved2 [7]byte
}

func (fdf ExfatFileDirectoryEntry) String() string {
	return fmt.Sprintf("FileDirectoryEntry<SECONDARY-COUNT=(%d) ATTRIBUTES=(0x%04x)>", fdf.SecondaryCount, uint16(fdf.FileAttributes))
}

// ExfatStreamExtensionDirectoryEntry always follows the file entry and
// describes the allocation and the length of the name.
type ExfatStreamExtensionDirectoryEntry struct {
	EntryType             EntryType
	GeneralSecondaryFlags GeneralSecondaryFlags
	Reserved1             [1]byte
	NameLength            uint8
	NameHash              uint16
	Reserved2             [2]byte
	ValidDataLength       uint64
	Reserved3             [4]byte
	FirstCluster          uint32
	DataLength            uint64
}

func (sede ExfatStreamExtensionDirectoryEntry) String() string {
	return fmt.Sprintf("StreamExtensionDirectoryEntry<GENERAL-SECONDARY-FLAGS=(%08b) NAME-LENGTH=(%d) NAME-HASH=(%04x) VALID-DATA-LENGTH=(%d) FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>",
		uint8(sede.GeneralSecondaryFlags), sede.NameLength, sede.NameHash, sede.ValidDataLength, sede.FirstCluster, sede.DataLength)
}

// ExfatFileNameDirectoryEntry carries one part of the name.
type ExfatFileNameDirectoryEntry struct {
	EntryType             EntryType
	GeneralSecondaryFlags GeneralSecondaryFlags
	FileName              [fileNameCharactersPerEntry]uint16
}

// ExfatAllocationBitmapDirectoryEntry locates the allocation bitmap.
type ExfatAllocationBitmapDirectoryEntry struct {
	EntryType    EntryType
	BitmapFlags  uint8
	Reserved     [18]byte
	FirstCluster uint32
	DataLength   uint64
}

func (abde ExfatAllocationBitmapDirectoryEntry) String() string {
	return fmt.Sprintf("AllocationBitmapDirectoryEntry<BITMAP-FLAGS=[%08b] FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", abde.BitmapFlags, abde.FirstCluster, abde.DataLength)
}

// ExfatVolumeLabelDirectoryEntry holds the label of the volume.
type ExfatVolumeLabelDirectoryEntry struct {
	EntryType      EntryType
	CharacterCount uint8

	// VolumeLabel is eleven code-units. Tools treat the reserved tail as part
	// of it, so it is the full thirty bytes here.
	VolumeLabel [15]uint16
}

// Label returns the label narrowed to ASCII. The count must already have been
// validated against the field size.
func (vlde ExfatVolumeLabelDirectoryEntry) Label() string {
	count := int(vlde.CharacterCount)
	if count > len(vlde.VolumeLabel) {
		count = len(vlde.VolumeLabel)
	}

	return AsciiFromUnicode(vlde.VolumeLabel[:count])
}

func (vlde ExfatVolumeLabelDirectoryEntry) String() string {
	return fmt.Sprintf("VolumeLabelDirectoryEntry<CHARACTER-COUNT=(%d) LABEL=[%s]>", vlde.CharacterCount, vlde.Label())
}

func parseDirectoryEntry(directoryEntryData []byte, x interface{}) (err error) {
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

	if len(directoryEntryData) != directoryEntryBytesCount {
		log.Panicf("directory-entry not the right size: (%d)", len(directoryEntryData))
	}

	err = restruct.Unpack(directoryEntryData, defaultEncoding, x)
	log.PanicIf(err)

	return nil
}

func parseFileDirectoryEntry(data []byte) (fdf ExfatFileDirectoryEntry, err error) {
	err = parseDirectoryEntry(data, &fdf)
	return fdf, err
}

func parseStreamExtensionDirectoryEntry(data []byte) (sede ExfatStreamExtensionDirectoryEntry, err error) {
	err = parseDirectoryEntry(data, &sede)
	return sede, err
}

func parseFileNameDirectoryEntry(data []byte) (fnde ExfatFileNameDirectoryEntry, err error) {
	err = parseDirectoryEntry(data, &fnde)
	return fnde, err
}

func parseAllocationBitmapDirectoryEntry(data []byte) (abde ExfatAllocationBitmapDirectoryEntry, err error) {
	err = parseDirectoryEntry(data, &abde)
	return abde, err
}

func parseVolumeLabelDirectoryEntry(data []byte) (vlde ExfatVolumeLabelDirectoryEntry, err error) {
	err = parseDirectoryEntry(data, &vlde)
	return vlde, err
}
