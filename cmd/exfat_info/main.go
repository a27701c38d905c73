package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"github.com/dsoprea/go-exfat-reader"
)

type rootParameters struct {
	Filepath   string `short:"f" long:"filepath" description:"File-path of exFAT filesystem (may be .zst-compressed)" required:"true"`
	ShowDetail bool   `short:"d" long:"detail" description:"Also dump the boot-sector and geometry"`
	Verbose    bool   `short:"v" long:"verbose" description:"Print logging"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	if rootArguments.Verbose == true {
		cla := log.NewConsoleLogAdapter()
		log.AddAdapter("console", cla)

		scp := log.NewStaticConfigurationProvider()
		scp.SetLevelName(log.LevelNameDebug)

		log.LoadConfiguration(scp)
	}

	v, is, err := exfat.OpenVolume(afero.NewOsFs(), rootArguments.Filepath)
	log.PanicIf(err)

	defer is.Close()

	vi, err := v.Info()
	log.PanicIf(err)

	fmt.Printf("The volume label is %s\n", vi.Label)
	fmt.Printf("Serial Number: 0x%08x or unsigned: %d\n", vi.SerialNumber, vi.SerialNumber)
	fmt.Printf("Cluster Size: %d sector(s) or %d bytes\n", vi.SectorsPerCluster, vi.BytesPerCluster)
	fmt.Printf("Free Space: %d KB\n", vi.FreeSpace.FreeSpaceKB)

	if rootArguments.ShowDetail == true {
		vg := v.Geometry()

		fmt.Printf("\n")

		v.BootSectorHeader().Dump()

		fmt.Printf("Cluster Heap: %s in (%s) clusters\n", humanize.IBytes(uint64(vg.ClusterCount)*vg.BytesPerCluster()), humanize.Comma(int64(vg.ClusterCount)))
		fmt.Printf("Free Clusters: %s (%s)\n", humanize.Comma(int64(vi.FreeSpace.FreeClusters)), humanize.IBytes(vi.FreeSpace.FreeSpaceBytes))
	}
}
