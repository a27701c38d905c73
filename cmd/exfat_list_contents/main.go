package main

import (
	"fmt"
	"os"

	"path/filepath"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"github.com/dsoprea/go-exfat-reader"
)

type rootParameters struct {
	Filepath       string `short:"f" long:"filepath" description:"File-path of exFAT filesystem (may be .zst-compressed)" required:"true"`
	FilenameFilter string `short:"p" long:"pattern" description:"Filename filter (prints full paths)"`
	ShowDetail     bool   `short:"d" long:"detail" description:"Print sizes and full paths instead of the tree"`
	Verbose        bool   `short:"v" long:"verbose" description:"Print logging"`
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

	if rootArguments.FilenameFilter == "" && rootArguments.ShowDetail == false {
		err := v.List(os.Stdout)
		log.PanicIf(err)

		return
	}

	files, sets, err := v.Paths()
	log.PanicIf(err)

	for _, currentFilepath := range files {
		des := sets[currentFilepath]

		if rootArguments.FilenameFilter != "" {
			isMatched, err := filepath.Match(rootArguments.FilenameFilter, des.Name)
			log.PanicIf(err)

			if isMatched != true {
				continue
			}
		}

		if rootArguments.ShowDetail == true {
			size := "<DIR>"
			if des.IsDirectory == false {
				size = humanize.Comma(int64(des.DataLength))
			}

			fmt.Printf("%15s %s\n", size, currentFilepath)
		} else {
			fmt.Printf("%s\n", currentFilepath)
		}
	}
}
