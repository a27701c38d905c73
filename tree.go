package exfat

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/dsoprea/go-logging"
)

var (
	treeLogger = log.NewLogger("exfat.tree")
)

// TreeVisitorFunc receives every entry-set of the tree. `pathParts` includes
// the name of the entry itself, so the depth of the entry is
// `len(pathParts) - 1`.
type TreeVisitorFunc func(pathParts []string, des *DirectoryEntrySet) (err error)

// Walk visits the whole tree from the root directory. Entries are visited in
// on-disk order and a directory's children are visited before its next
// sibling.
func (v *Volume) Walk(cb TreeVisitorFunc) (err error) {
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

	rootCluster := v.FirstClusterOfRootDirectory()

	ancestors := map[ClusterIndex]struct{}{
		rootCluster: {},
	}

	err = v.walkDirectory(make([]string, 0), rootCluster, 0, false, ancestors, cb)
	log.PanicIf(err)

	return nil
}

// WalkDirectory visits the tree below the directory starting at the given
// cluster. `pathParts` is prepended to the paths given to the callback.
// `dataLength` is only needed if the directory is `contiguous`.
func (v *Volume) WalkDirectory(pathParts []string, firstCluster ClusterIndex, dataLength uint64, contiguous bool, cb TreeVisitorFunc) (err error) {
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

	ancestors := map[ClusterIndex]struct{}{
		firstCluster: {},
	}

	err = v.walkDirectory(pathParts, firstCluster, dataLength, contiguous, ancestors, cb)
	log.PanicIf(err)

	return nil
}

// walkDirectory recurses with the first clusters of the directories on the
// current descent path in `ancestors`. A directory that points back at one of
// them would never finish.
func (v *Volume) walkDirectory(pathParts []string, firstCluster ClusterIndex, dataLength uint64, contiguous bool, ancestors map[ClusterIndex]struct{}, cb TreeVisitorFunc) (err error) {
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

	en := NewExfatNavigator(v, firstCluster, dataLength, contiguous)

	visitor := func(des *DirectoryEntrySet) (doContinue bool, err error) {
		childPathParts := make([]string, len(pathParts)+1)
		copy(childPathParts, pathParts)
		childPathParts[len(childPathParts)-1] = des.Name

		err = cb(childPathParts, des)
		log.PanicIf(err)

		if des.IsDirectory == false {
			return true, nil
		}

		if _, found := ancestors[des.FirstCluster]; found == true {
			log.Panic(fmt.Errorf("%w: directory [%s] points back at cluster (%d)", ErrInvalidCluster, strings.Join(childPathParts, "/"), des.FirstCluster))
		}

		ancestors[des.FirstCluster] = struct{}{}

		err = v.walkDirectory(childPathParts, des.FirstCluster, des.DataLength, des.NoFatChain, ancestors, cb)
		log.PanicIf(err)

		delete(ancestors, des.FirstCluster)

		return true, nil
	}

	err = en.EnumerateEntrySets(visitor)
	log.PanicIf(err)

	return nil
}

// FormatTreeLine renders one entry the way `List` prints it: one dash per
// level of depth and then the kind and the name.
func FormatTreeLine(depth int, des *DirectoryEntrySet) string {
	kind := "File"
	if des.IsDirectory == true {
		kind = "Directory"
	}

	return fmt.Sprintf("%s%s: %s", strings.Repeat("-", depth), kind, des.Name)
}

// List writes the whole tree, one entry per line.
func (v *Volume) List(w io.Writer) (err error) {
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

	cb := func(pathParts []string, des *DirectoryEntrySet) (err error) {
		line := FormatTreeLine(len(pathParts)-1, des)

		_, err = fmt.Fprintln(w, line)
		log.PanicIf(err)

		return nil
	}

	err = v.Walk(cb)
	log.PanicIf(err)

	return nil
}

// Paths returns the slash-separated path of every entry, in walk order, and
// the entry-sets by path.
func (v *Volume) Paths() (paths []string, sets map[string]*DirectoryEntrySet, err error) {
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

	paths = make([]string, 0)
	sets = make(map[string]*DirectoryEntrySet)

	cb := func(pathParts []string, des *DirectoryEntrySet) (err error) {
		nodePath := strings.Join(pathParts, "/")

		paths = append(paths, nodePath)
		sets[nodePath] = des

		return nil
	}

	err = v.Walk(cb)
	log.PanicIf(err)

	treeLogger.Debugf(nil, "Walked (%d) entries.", len(paths))

	return paths, sets, nil
}
