package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"github.com/dsoprea/go-exfat-reader"
)

type rootParameters struct {
	FilesystemFilepath string `short:"f" long:"filesystem-filepath" description:"File-path of exFAT filesystem (may be .zst-compressed)" required:"true"`
	ExtractFilepath    string `short:"e" long:"extract-filepath" description:"File-path to extract (use forward slashes)" required:"true"`
	OutputPath         string `short:"o" long:"output-path" description:"Directory to write the file into ('-' for STDOUT)" default:"."`
	Verbose            bool   `short:"v" long:"verbose" description:"Print logging"`
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

	fs := afero.NewOsFs()

	v, is, err := exfat.OpenVolume(fs, rootArguments.FilesystemFilepath)
	log.PanicIf(err)

	defer is.Close()

	if rootArguments.OutputPath == "-" {
		des, err := v.Resolve(rootArguments.ExtractFilepath)
		if errors.Is(err, exfat.ErrPathNotFound) == true {
			fmt.Printf("File not found.\n")
			os.Exit(2)
		}

		log.PanicIf(err)

		_, err = v.WriteFromClusterChain(des.FirstCluster, des.DataLength, des.NoFatChain, os.Stdout)
		log.PanicIf(err)

		return
	}

	_, written, err := v.Extract(rootArguments.ExtractFilepath, fs, rootArguments.OutputPath)
	if errors.Is(err, exfat.ErrPathNotFound) == true {
		fmt.Printf("File not found.\n")
		os.Exit(2)
	}

	log.PanicIf(err)

	fmt.Printf("(%d) bytes written (%s).\n", written, humanize.Bytes(written))
}
