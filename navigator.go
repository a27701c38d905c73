// This package supports enumerating the entries of a single directory.

package exfat

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

const (
	// This field is mandatory and Section 6.1 defines its contents.
	directoryEntryBytesCount = 32

	// A name is at most 255 characters, which takes seventeen file-name
	// entries.
	maximumFileNameEntries = 17
)

var (
	navigatorLogger = log.NewLogger("exfat.navigator")
)

// DirectoryEntrySet is one decoded file or directory: the file entry, the
// stream-extension entry, and the name reassembled from the file-name
// entries.
type DirectoryEntrySet struct {
	// Name is the reassembled name, narrowed to ASCII.
	Name string

	IsDirectory    bool
	FileAttributes FileAttributes
	SecondaryCount uint8
	NameLength     uint8

	// FirstCluster is where the content starts: the children of a directory
	// or the data of a file.
	FirstCluster ClusterIndex

	// DataLength is the size of a file in bytes.
	DataLength uint64

	// NoFatChain indicates that the content is contiguous and that the FAT
	// does not describe it.
	NoFatChain bool
}

func (des DirectoryEntrySet) String() string {
	return fmt.Sprintf("DirectoryEntrySet<NAME=[%s] IS-DIRECTORY=[%v] FIRST-CLUSTER=(%d) DATA-LENGTH=(%d) NO-FAT-CHAIN=[%v]>", des.Name, des.IsDirectory, des.FirstCluster, des.DataLength, des.NoFatChain)
}

// ExfatNavigator knows how to get the entries of a single directory.
type ExfatNavigator struct {
	v *Volume

	firstClusterNumber ClusterIndex
	dataLength         uint64
	contiguous         bool
}

// NewExfatNavigator returns a new ExfatNavigator instance. `dataLength` and
// `contiguous` come from the stream extension of the directory itself (zero
// and false for the root). A contiguous directory ends after `dataLength`
// bytes.
func NewExfatNavigator(v *Volume, firstClusterNumber ClusterIndex, dataLength uint64, contiguous bool) (en *ExfatNavigator) {
	return &ExfatNavigator{
		v:                  v,
		firstClusterNumber: firstClusterNumber,
		dataLength:         dataLength,
		contiguous:         contiguous,
	}
}

// EntrySetVisitorFunc is a function type used as a callback over each
// file or directory entry-set.
type EntrySetVisitorFunc func(des *DirectoryEntrySet) (doContinue bool, err error)

// EnumerateEntrySets decodes each file and directory entry-set in the order
// in which they are stored. Every other kind of entry is skipped. The
// enumeration stops at the end-of-directory entry, at the end of the
// directory's chain, or when the callback declines to continue.
func (en *ExfatNavigator) EnumerateEntrySets(cb EntrySetVisitorFunc) (err error) {
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

	dc, err := newDirectoryCursor(en.v, en.firstClusterNumber, en.dataLength, en.contiguous)
	log.PanicIf(err)

	for {
		slot, err := dc.Next()
		if err == io.EOF {
			break
		}

		log.PanicIf(err)

		entryType := EntryType(slot[0])

		// We've hit the terminal record.
		if entryType.IsEndOfDirectory() == true {
			break
		}

		if entryType != EntryTypeFile {
			continue
		}

		des, err := decodeEntrySet(dc, slot)
		log.PanicIf(err)

		navigatorLogger.Debugf(nil, "Decoded: %s", des)

		doContinue, err := cb(des)
		log.PanicIf(err)

		if doContinue == false {
			break
		}
	}

	return nil
}

// FindEntry scans the directory for the first entry of the given type,
// looking only at the type byte of each slot.
func (en *ExfatNavigator) FindEntry(entryType EntryType) (slot []byte, found bool, err error) {
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

	dc, err := newDirectoryCursor(en.v, en.firstClusterNumber, en.dataLength, en.contiguous)
	log.PanicIf(err)

	for {
		slot, err := dc.Next()
		if err == io.EOF {
			return nil, false, nil
		}

		log.PanicIf(err)

		currentType := EntryType(slot[0])

		if currentType == entryType {
			return slot, true, nil
		} else if currentType.IsEndOfDirectory() == true {
			return nil, false, nil
		}
	}
}

// decodeEntrySet decodes the set whose file entry was just read from the
// cursor, consuming the rest of the set from it.
func decodeEntrySet(dc *directoryCursor, primary []byte) (des *DirectoryEntrySet, err error) {
	primaryCluster := dc.Cluster()

	fdf, err := parseFileDirectoryEntry(primary)
	if err != nil {
		return nil, err
	}

	// We need at least the stream-extension and one file-name.
	if fdf.SecondaryCount < 2 {
		return nil, fmt.Errorf("%w: secondary-count too small: (%d)", ErrEntrySetMalformed, fdf.SecondaryCount)
	}

	nameEntryCount := int(fdf.SecondaryCount) - 1
	if nameEntryCount > maximumFileNameEntries {
		return nil, fmt.Errorf("%w: secondary-count implies a name longer than 255 characters: (%d)", ErrEntrySetMalformed, fdf.SecondaryCount)
	}

	slot, err := dc.NextInSet(primaryCluster)
	if err != nil {
		return nil, err
	}

	if EntryType(slot[0]) != EntryTypeStreamExtension {
		return nil, fmt.Errorf("%w: file entry not followed by stream-extension: (0x%02x)", ErrEntrySetMalformed, slot[0])
	}

	sede, err := parseStreamExtensionDirectoryEntry(slot)
	if err != nil {
		return nil, err
	}

	if sede.NameLength == 0 {
		return nil, fmt.Errorf("%w: name-length is zero", ErrEntrySetMalformed)
	}

	units := make([]uint16, 0, nameEntryCount*fileNameCharactersPerEntry)

	for i := 0; i < nameEntryCount; i++ {
		slot, err := dc.NextInSet(primaryCluster)
		if err != nil {
			return nil, err
		}

		// Vendor entries may follow the names. They belong to the set but
		// carry no characters.
		if EntryType(slot[0]) != EntryTypeFileName {
			continue
		}

		fnde, err := parseFileNameDirectoryEntry(slot)
		if err != nil {
			return nil, err
		}

		units = append(units, fnde.FileName[:]...)
	}

	if len(units) < int(sede.NameLength) {
		return nil, fmt.Errorf("%w: name-length (%d) exceeds the (%d) characters present", ErrEntrySetMalformed, sede.NameLength, len(units))
	}

	des = &DirectoryEntrySet{
		Name:           AsciiFromUnicode(units[:sede.NameLength]),
		IsDirectory:    fdf.FileAttributes.IsDirectory(),
		FileAttributes: fdf.FileAttributes,
		SecondaryCount: fdf.SecondaryCount,
		NameLength:     sede.NameLength,
		FirstCluster:   ClusterIndex(sede.FirstCluster),
		DataLength:     sede.DataLength,
		NoFatChain:     sede.GeneralSecondaryFlags.NoFatChain(),
	}

	return des, nil
}
