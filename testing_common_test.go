package exfat

import (
	"bytes"

	"github.com/dsoprea/go-logging"
)

const (
	testBytesPerSectorShift = 9
	testBytesPerSector      = 1 << testBytesPerSectorShift
	testSerialNumber        = 0x3d51a058
)

// testVolume assembles a small exFAT image in memory. The FAT directly follows
// the boot-sector and the heap directly follows the FAT.
type testVolume struct {
	sectorsPerClusterShift uint8
	clusterCount           uint32
	rootCluster            ClusterIndex

	fatOffsetSectors  uint32
	fatLengthSectors  uint32
	heapOffsetSectors uint32

	fat  []uint32
	heap []byte
}

func newTestVolume(clusterCount uint32, sectorsPerClusterShift uint8) *testVolume {
	fatLengthSectors := ((clusterCount+2)*fatEntryBytesCount + testBytesPerSector - 1) / testBytesPerSector

	tv := &testVolume{
		sectorsPerClusterShift: sectorsPerClusterShift,
		clusterCount:           clusterCount,
		rootCluster:            2,
		fatOffsetSectors:       1,
		fatLengthSectors:       fatLengthSectors,
		heapOffsetSectors:      1 + fatLengthSectors,
		fat:                    make([]uint32, clusterCount+2),
	}

	tv.heap = make([]byte, int(clusterCount)*tv.bytesPerCluster())

	// Media descriptor and the reserved second entry.
	tv.fat[0] = 0xfffffff8
	tv.fat[1] = 0xffffffff

	return tv
}

func (tv *testVolume) bytesPerCluster() int {
	return testBytesPerSector << tv.sectorsPerClusterShift
}

func (tv *testVolume) cluster(ci ClusterIndex) []byte {
	bytesPerCluster := tv.bytesPerCluster()
	start := int(ci-firstDataCluster) * bytesPerCluster

	return tv.heap[start : start+bytesPerCluster]
}

// chain links the clusters in the FAT, in the given order.
func (tv *testVolume) chain(clusters ...ClusterIndex) {
	for i, ci := range clusters {
		if i == len(clusters)-1 {
			tv.fat[ci] = uint32(clusterLast)
		} else {
			tv.fat[ci] = uint32(clusters[i+1])
		}
	}
}

// writeData spreads the data over the clusters and chains them.
func (tv *testVolume) writeData(clusters []ClusterIndex, data []byte) {
	bytesPerCluster := tv.bytesPerCluster()

	for i, ci := range clusters {
		start := i * bytesPerCluster
		if start >= len(data) {
			break
		}

		copy(tv.cluster(ci), data[start:])
	}

	tv.chain(clusters...)
}

// writeDirectory lays the slots out, in order, over the clusters and chains
// them. Whatever follows the last slot is zero, which ends the directory.
func (tv *testVolume) writeDirectory(clusters []ClusterIndex, slots ...[]byte) {
	raw := make([]byte, 0)
	for _, slot := range slots {
		raw = append(raw, slot...)
	}

	if len(raw) > len(clusters)*tv.bytesPerCluster() {
		log.Panicf("directory does not fit: (%d) bytes", len(raw))
	}

	tv.writeData(clusters, raw)
}

// setAllocated marks the clusters as in-use in the bitmap stored at the given
// cluster.
func (tv *testVolume) setAllocated(bitmapCluster ClusterIndex, clusters ...ClusterIndex) {
	bitmap := tv.cluster(bitmapCluster)

	for _, ci := range clusters {
		bit := int(ci - firstDataCluster)
		bitmap[bit/8] |= 1 << uint(bit%8)
	}
}

func (tv *testVolume) image() []byte {
	bsh := make([]byte, bootSectorHeaderSize)

	copy(bsh[0:], []byte{0xeb, 0x76, 0x90})
	copy(bsh[3:], requiredFileSystemName)

	totalSectors := uint64(tv.heapOffsetSectors) + uint64(tv.clusterCount)<<tv.sectorsPerClusterShift

	defaultEncoding.PutUint64(bsh[72:], totalSectors)
	defaultEncoding.PutUint32(bsh[80:], tv.fatOffsetSectors)
	defaultEncoding.PutUint32(bsh[84:], tv.fatLengthSectors)
	defaultEncoding.PutUint32(bsh[88:], tv.heapOffsetSectors)
	defaultEncoding.PutUint32(bsh[92:], tv.clusterCount)
	defaultEncoding.PutUint32(bsh[96:], uint32(tv.rootCluster))
	defaultEncoding.PutUint32(bsh[100:], testSerialNumber)

	bsh[104] = 0
	bsh[105] = 1
	bsh[108] = testBytesPerSectorShift
	bsh[109] = tv.sectorsPerClusterShift
	bsh[110] = 1
	bsh[111] = 0x80

	defaultEncoding.PutUint16(bsh[510:], 0xaa55)

	b := new(bytes.Buffer)

	b.Write(bsh)

	fat := make([]byte, int(tv.fatLengthSectors)*testBytesPerSector)
	for i, value := range tv.fat {
		defaultEncoding.PutUint32(fat[i*fatEntryBytesCount:], value)
	}

	b.Write(fat)
	b.Write(tv.heap)

	return b.Bytes()
}

func (tv *testVolume) volume() *Volume {
	v := NewVolume(bytes.NewReader(tv.image()))

	err := v.Parse()
	log.PanicIf(err)

	return v
}

func testNameUnits(name string) []uint16 {
	units := make([]uint16, len(name))
	for i := 0; i < len(name); i++ {
		units[i] = uint16(name[i])
	}

	return units
}

// testEntrySetSlots builds the file, stream-extension, and file-name entries
// for one file or directory.
func testEntrySetSlots(name string, isDirectory bool, firstCluster ClusterIndex, dataLength uint64, noFatChain bool) [][]byte {
	units := testNameUnits(name)
	nameSlotCount := (len(units) + fileNameCharactersPerEntry - 1) / fileNameCharactersPerEntry

	primary := make([]byte, directoryEntryBytesCount)
	primary[0] = byte(EntryTypeFile)
	primary[1] = byte(1 + nameSlotCount)

	attributes := uint16(0x20)
	if isDirectory == true {
		attributes = 0x10
	}

	defaultEncoding.PutUint16(primary[4:], attributes)

	stream := make([]byte, directoryEntryBytesCount)
	stream[0] = byte(EntryTypeStreamExtension)
	stream[1] = 1

	if noFatChain == true {
		stream[1] |= 2
	}

	stream[3] = byte(len(units))

	defaultEncoding.PutUint64(stream[8:], dataLength)
	defaultEncoding.PutUint32(stream[20:], uint32(firstCluster))
	defaultEncoding.PutUint64(stream[24:], dataLength)

	slots := [][]byte{primary, stream}

	for i := 0; i < nameSlotCount; i++ {
		nameSlot := make([]byte, directoryEntryBytesCount)
		nameSlot[0] = byte(EntryTypeFileName)

		for j := 0; j < fileNameCharactersPerEntry; j++ {
			k := i*fileNameCharactersPerEntry + j
			if k >= len(units) {
				break
			}

			defaultEncoding.PutUint16(nameSlot[2+j*2:], units[k])
		}

		slots = append(slots, nameSlot)
	}

	return slots
}

func testAllocationBitmapSlot(firstCluster ClusterIndex, dataLength uint64) []byte {
	slot := make([]byte, directoryEntryBytesCount)
	slot[0] = byte(EntryTypeAllocationBitmap)

	defaultEncoding.PutUint32(slot[20:], uint32(firstCluster))
	defaultEncoding.PutUint64(slot[24:], dataLength)

	return slot
}

func testVolumeLabelSlot(label string) []byte {
	slot := make([]byte, directoryEntryBytesCount)
	slot[0] = byte(EntryTypeVolumeLabel)
	slot[1] = byte(len(label))

	for i, unit := range testNameUnits(label) {
		defaultEncoding.PutUint16(slot[2+i*2:], unit)
	}

	return slot
}

func testUpcaseTableSlot(firstCluster ClusterIndex) []byte {
	slot := make([]byte, directoryEntryBytesCount)
	slot[0] = byte(EntryTypeUpcaseTable)

	defaultEncoding.PutUint32(slot[20:], uint32(firstCluster))

	return slot
}

// testDeletedEntrySetSlots is an entry-set whose entries have all had their
// in-use bit cleared.
func testDeletedEntrySetSlots(name string) [][]byte {
	slots := testEntrySetSlots(name, false, 0, 0, false)
	for _, slot := range slots {
		slot[0] &^= 0x80
	}

	return slots
}

func flattenSlots(groups ...[][]byte) [][]byte {
	slots := make([][]byte, 0)
	for _, group := range groups {
		slots = append(slots, group...)
	}

	return slots
}

const (
	testNoteContent = "hello!!!!\n"
	testVolumeLabel = "TESTVOL"
)

// getTestNoteVolume returns a two-level volume: the root holds the label, the
// bitmap, the up-case table, and the directory "docs", which holds the 10-byte
// file "note.txt".
//
//	cluster 2: root directory
//	cluster 3: allocation bitmap
//	cluster 4: up-case table
//	cluster 5: docs
//	cluster 6: note.txt
func getTestNoteVolume() (tv *testVolume) {
	tv = newTestVolume(16, 0)

	root := flattenSlots(
		[][]byte{
			testVolumeLabelSlot(testVolumeLabel),
			testAllocationBitmapSlot(3, 2),
			testUpcaseTableSlot(4),
		},
		testEntrySetSlots("docs", true, 5, uint64(tv.bytesPerCluster()), false),
	)

	tv.writeDirectory([]ClusterIndex{2}, root...)
	tv.chain(3)
	tv.chain(4)

	docs := testEntrySetSlots("note.txt", false, 6, uint64(len(testNoteContent)), false)
	tv.writeDirectory([]ClusterIndex{5}, docs...)

	tv.writeData([]ClusterIndex{6}, []byte(testNoteContent))

	tv.setAllocated(3, 2, 3, 4, 5, 6)

	return tv
}
