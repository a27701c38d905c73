package exfat

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/dsoprea/go-logging"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

const (
	compressedImageSuffix = ".zst"
)

var (
	imageLogger = log.NewLogger("exfat.image")
)

// ImageSource is an opened volume image.
type ImageSource interface {
	io.ReaderAt
	io.Closer
}

type decompressedImage struct {
	*bytes.Reader
}

func (di decompressedImage) Close() error {
	return nil
}

// OpenImage opens a volume image or device on the given filesystem. A name
// ending in ".zst" is decompressed into memory first, since a zstd stream can
// not be read at arbitrary offsets.
func OpenImage(fs afero.Fs, filepath string) (is ImageSource, err error) {
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

	f, err := fs.Open(filepath)
	if err != nil {
		log.Panic(fmt.Errorf("%w: open [%s]: %w", ErrIoFailure, filepath, err))
	}

	if strings.HasSuffix(filepath, compressedImageSuffix) == false {
		return f, nil
	}

	defer f.Close()

	zr, err := zstd.NewReader(f)
	log.PanicIf(err)

	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		log.Panic(fmt.Errorf("%w: decompress [%s]: %w", ErrIoFailure, filepath, err))
	}

	imageLogger.Debugf(nil, "Decompressed [%s]: (%d) bytes", filepath, len(raw))

	di := decompressedImage{
		Reader: bytes.NewReader(raw),
	}

	return di, nil
}

// OpenVolume opens the image and parses the volume in it. The caller closes
// the returned source when done with the volume.
func OpenVolume(fs afero.Fs, filepath string) (v *Volume, is ImageSource, err error) {
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

	is, err = OpenImage(fs, filepath)
	log.PanicIf(err)

	v = NewVolume(is)

	err = v.Parse()
	if err != nil {
		is.Close()
		log.Panic(err)
	}

	return v, is, nil
}
