package exfat

import (
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/dsoprea/go-logging"
	"github.com/spf13/afero"
)

var (
	extractLogger = log.NewLogger("exfat.extract")
)

// SplitPath breaks a slash-delimited path into its segments. Empty segments
// (leading, trailing, or doubled slashes) are dropped.
func SplitPath(volumePath string) (pathParts []string) {
	pathParts = make([]string, 0)

	for _, part := range strings.Split(volumePath, "/") {
		if part == "" {
			continue
		}

		pathParts = append(pathParts, part)
	}

	return pathParts
}

// Resolve finds the file at the given slash-delimited path. Names are compared
// exactly (after narrowing), so matching is case-sensitive.
func (v *Volume) Resolve(volumePath string) (des *DirectoryEntrySet, err error) {
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

	pathParts := SplitPath(volumePath)
	if len(pathParts) == 0 {
		log.Panic(fmt.Errorf("%w: empty path", ErrPathNotFound))
	}

	currentCluster := v.FirstClusterOfRootDirectory()
	currentDataLength := uint64(0)
	currentContiguous := false

	for i, part := range pathParts {
		en := NewExfatNavigator(v, currentCluster, currentDataLength, currentContiguous)

		var match *DirectoryEntrySet

		cb := func(candidate *DirectoryEntrySet) (doContinue bool, err error) {
			if candidate.Name != part {
				return true, nil
			}

			match = candidate
			return false, nil
		}

		err := en.EnumerateEntrySets(cb)
		log.PanicIf(err)

		walkedPath := strings.Join(pathParts[:i+1], "/")

		if match == nil {
			log.Panic(fmt.Errorf("%w: [%s]", ErrPathNotFound, walkedPath))
		}

		isLast := i == len(pathParts)-1

		if isLast == true {
			if match.IsDirectory == true {
				log.Panic(fmt.Errorf("%w: [%s] is a directory", ErrNotAFile, walkedPath))
			}

			return match, nil
		}

		if match.IsDirectory == false {
			log.Panic(fmt.Errorf("%w: [%s] is a file", ErrNotADirectory, walkedPath))
		}

		currentCluster = match.FirstCluster
		currentDataLength = match.DataLength
		currentContiguous = match.NoFatChain
	}

	// Every iteration either descends or returns.
	log.Panicf("path [%s] was not resolved", volumePath)
	return nil, nil
}

// WriteFromClusterChain copies `dataLength` bytes from the chain starting at
// the given cluster, one cluster at a time. The last write is cut to the bytes
// that remain so nothing past the end of the data is written. If `contiguous`
// the clusters are taken in order without consulting the FAT.
func (v *Volume) WriteFromClusterChain(firstCluster ClusterIndex, dataLength uint64, contiguous bool, w io.Writer) (written uint64, err error) {
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

	// An empty file may not have any clusters at all.
	if dataLength == 0 {
		return 0, nil
	}

	cb := func(ci ClusterIndex, data []byte) (doContinue bool, err error) {
		remaining := dataLength - written

		if uint64(len(data)) > remaining {
			data = data[:remaining]
		}

		n, err := w.Write(data)
		written += uint64(n)

		if err != nil {
			log.Panic(fmt.Errorf("%w: write of cluster (%d): %w", ErrIoFailure, ci, err))
		}

		return written < dataLength, nil
	}

	err = v.EnumerateClusters(firstCluster, dataLength, contiguous, cb)
	log.PanicIf(err)

	if written < dataLength {
		log.Panic(fmt.Errorf("%w: chain ended after (%d) of (%d) bytes", ErrInvalidCluster, written, dataLength))
	}

	return written, nil
}

// Extract resolves the path and writes the file, under its own name, into
// the output directory of the given filesystem. A partially written file is
// removed if the copy fails.
func (v *Volume) Extract(volumePath string, fs afero.Fs, outputDirectory string) (outputFilepath string, written uint64, err error) {
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

	des, err := v.Resolve(volumePath)
	log.PanicIf(err)

	if des.Name == "." || des.Name == ".." || strings.ContainsAny(des.Name, `/\`) == true {
		log.Panic(fmt.Errorf("%w: [%s] can not be used as a local filename", ErrNotAFile, des.Name))
	}

	outputFilepath = filepath.Join(outputDirectory, des.Name)

	f, err := fs.Create(outputFilepath)
	if err != nil {
		log.Panic(fmt.Errorf("%w: create [%s]: %w", ErrIoFailure, outputFilepath, err))
	}

	isComplete := false

	defer func() {
		if isComplete == true {
			return
		}

		f.Close()

		if err := fs.Remove(outputFilepath); err != nil {
			extractLogger.Warningf(nil, "Could not remove partial output [%s]: %v", outputFilepath, err)
		}
	}()

	written, err = v.WriteFromClusterChain(des.FirstCluster, des.DataLength, des.NoFatChain, f)
	log.PanicIf(err)

	err = f.Close()
	if err != nil {
		log.Panic(fmt.Errorf("%w: close [%s]: %w", ErrIoFailure, outputFilepath, err))
	}

	isComplete = true

	extractLogger.Debugf(nil, "Extracted [%s] to [%s]: (%d) bytes", volumePath, outputFilepath, written)

	return outputFilepath, written, nil
}
