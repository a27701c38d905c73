package exfat

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

const (
	// The label is at most eleven characters.
	volumeLabelMaximumCharacters = 11
)

var (
	volumeLogger = log.NewLogger("exfat.volume")
)

// Volume is the session for one exFAT volume. It knows the geometry and has
// the source that every traversal reads from. The source is never written.
type Volume struct {
	r io.ReaderAt

	bsh      BootSectorHeader
	geometry VolumeGeometry
}

// NewVolume returns a new instance of Volume. Parse() must be called before
// anything else.
func NewVolume(r io.ReaderAt) *Volume {
	return &Volume{
		r: r,
	}
}

// Parse reads the boot-sector and derives the geometry.
func (v *Volume) Parse() (err error) {
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

	vg, bsh, err := ReadVolumeGeometry(v.r)
	log.PanicIf(err)

	v.bsh = bsh
	v.geometry = vg

	volumeLogger.Debugf(nil, "Parsed volume: %s", vg)

	return nil
}

// Geometry returns the geometry of the volume.
func (v *Volume) Geometry() VolumeGeometry {
	return v.geometry
}

// BootSectorHeader returns the decoded boot-sector.
func (v *Volume) BootSectorHeader() BootSectorHeader {
	return v.bsh
}

// FirstClusterOfRootDirectory returns the first cluster of the root
// directory.
func (v *Volume) FirstClusterOfRootDirectory() ClusterIndex {
	return v.geometry.RootDirectoryCluster
}

// VolumeLabel returns the label from the root directory, narrowed to ASCII.
// A volume without a label returns an empty string.
func (v *Volume) VolumeLabel() (label string, err error) {
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

	slot, found, err := en.FindEntry(EntryTypeVolumeLabel)
	log.PanicIf(err)

	if found == false {
		return "", nil
	}

	vlde, err := parseVolumeLabelDirectoryEntry(slot)
	log.PanicIf(err)

	if vlde.CharacterCount > volumeLabelMaximumCharacters {
		log.Panic(fmt.Errorf("%w: volume-label has (%d) characters", ErrEntrySetMalformed, vlde.CharacterCount))
	}

	return vlde.Label(), nil
}

// VolumeInfo is the summary that the `info` operation reports.
type VolumeInfo struct {
	Label             string
	SerialNumber      uint32
	SectorsPerCluster uint32
	BytesPerCluster   uint64
	FreeSpace         FreeSpaceSummary
}

// Info collects the label, serial number, cluster size, and free space.
func (v *Volume) Info() (vi VolumeInfo, err error) {
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

	label, err := v.VolumeLabel()
	log.PanicIf(err)

	fss, err := v.FreeSpace()
	log.PanicIf(err)

	vi = VolumeInfo{
		Label:             label,
		SerialNumber:      v.geometry.SerialNumber,
		SectorsPerCluster: v.geometry.SectorsPerCluster,
		BytesPerCluster:   v.geometry.BytesPerCluster(),
		FreeSpace:         fss,
	}

	return vi, nil
}
