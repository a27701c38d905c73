package exfat

import (
	"errors"
	"testing"

	"github.com/dsoprea/go-logging"
)

// getTestBitmapVolume returns a volume whose root only has the bitmap entry.
// The bitmap is in cluster 3.
func getTestBitmapVolume(clusterCount uint32) *testVolume {
	tv := newTestVolume(clusterCount, 0)

	bitmapLength := uint64(clusterCount+7) / 8

	tv.writeDirectory([]ClusterIndex{2}, testAllocationBitmapSlot(3, bitmapLength))
	tv.chain(3)

	return tv
}

func TestVolume_FreeSpace(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	v := getTestNoteVolume().volume()

	fss, err := v.FreeSpace()
	log.PanicIf(err)

	// Sixteen clusters, five allocated. 11*512 bytes truncates to 5K.
	if fss.FreeClusters != 11 {
		t.Fatalf("Free clusters not correct: (%d)", fss.FreeClusters)
	} else if fss.FreeSpaceBytes != 11*512 {
		t.Fatalf("Free bytes not correct: (%d)", fss.FreeSpaceBytes)
	} else if fss.FreeSpaceKB != 5 {
		t.Fatalf("Free KB not correct: (%d)", fss.FreeSpaceKB)
	}
}

func TestVolume_FreeSpace_AllAllocated(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	tv := getTestBitmapVolume(64)

	bitmap := tv.cluster(3)
	for i := 0; i < 8; i++ {
		bitmap[i] = 0xff
	}

	fss, err := tv.volume().FreeSpace()
	log.PanicIf(err)

	if fss.FreeClusters != 0 {
		t.Fatalf("Free clusters not correct: (%d)", fss.FreeClusters)
	} else if fss.FreeSpaceKB != 0 {
		t.Fatalf("Free KB not correct: (%d)", fss.FreeSpaceKB)
	}
}

func TestVolume_FreeSpace_NoneAllocated(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	tv := getTestBitmapVolume(64)

	fss, err := tv.volume().FreeSpace()
	log.PanicIf(err)

	if fss.FreeClusters != 64 {
		t.Fatalf("Free clusters not correct: (%d)", fss.FreeClusters)
	} else if fss.FreeSpaceKB != 64*512/1024 {
		t.Fatalf("Free KB not correct: (%d)", fss.FreeSpaceKB)
	}
}

func TestVolume_FreeSpace_PartialFinalByte(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	tv := getTestBitmapVolume(12)

	// Only the low four bits of the second byte describe clusters. The rest
	// is padding and must not be counted.
	bitmap := tv.cluster(3)
	bitmap[0] = 0xff
	bitmap[1] = 0xf7
	bitmap[2] = 0xff

	fss, err := tv.volume().FreeSpace()
	log.PanicIf(err)

	if fss.FreeClusters != 1 {
		t.Fatalf("Free clusters not correct: (%d)", fss.FreeClusters)
	}
}

func TestVolume_FreeSpace_MultipleClusters(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	// One 512-byte cluster of bitmap covers 4096 clusters, so this one needs
	// a second (non-adjacent) cluster.
	clusterCount := uint32(4100)

	tv := newTestVolume(clusterCount, 0)
	tv.writeDirectory([]ClusterIndex{2}, testAllocationBitmapSlot(3, uint64(clusterCount+7)/8))

	first := tv.cluster(3)
	for i := range first {
		first[i] = 0xff
	}

	// Of the last four bits, the first two are set.
	tv.cluster(10)[0] = 0x03
	tv.chain(3, 10)

	fss, err := tv.volume().FreeSpace()
	log.PanicIf(err)

	if fss.FreeClusters != 2 {
		t.Fatalf("Free clusters not correct: (%d)", fss.FreeClusters)
	}
}

func TestVolume_FreeSpace_BitmapChainTooShort(t *testing.T) {
	clusterCount := uint32(4100)

	tv := newTestVolume(clusterCount, 0)
	tv.writeDirectory([]ClusterIndex{2}, testAllocationBitmapSlot(3, uint64(clusterCount+7)/8))
	tv.chain(3)

	_, err := tv.volume().FreeSpace()
	if errors.Is(err, ErrInvalidCluster) != true {
		t.Fatalf("Expected invalid-cluster: %v", err)
	}
}

func TestVolume_AllocationBitmap_NotFound(t *testing.T) {
	tv := newTestVolume(8, 0)
	tv.writeDirectory([]ClusterIndex{2}, testEntrySetSlots("file", false, 0, 0, false)...)

	_, err := tv.volume().AllocationBitmap()
	if errors.Is(err, ErrAllocationBitmapNotFound) != true {
		t.Fatalf("Expected bitmap-not-found: %v", err)
	}
}

func TestVolume_AllocationBitmap(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	abde, err := getTestNoteVolume().volume().AllocationBitmap()
	log.PanicIf(err)

	if abde.FirstCluster != 3 {
		t.Fatalf("First cluster not correct: (%d)", abde.FirstCluster)
	} else if abde.DataLength != 2 {
		t.Fatalf("Data length not correct: (%d)", abde.DataLength)
	}
}
