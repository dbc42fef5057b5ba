package build

import (
	"bytes"
	"io"

	"github.com/nickng/ssadom/ssa"
	"github.com/pkg/errors"
)

// Builder builds the SSA IR of a program.
type Builder interface {
	Build() (*ssa.Info, error)
}

// FileSrc is the source of a program given as files or package patterns.
type FileSrc struct {
	Files []string
}

// FromFiles returns the build configuration of the files or package patterns
// in files.
func FromFiles(files []string) Configurer {
	return newConfig(&FileSrc{Files: files})
}

// ReaderSrc is the source of a single file program, read in full when the
// configuration is created.
type ReaderSrc struct {
	src []byte
	err error // Reported by Build.
}

// FromReader returns the build configuration of the single file read from r,
// e.g. a test program.
func FromReader(r io.Reader) Configurer {
	src, err := io.ReadAll(r)
	return newConfig(&ReaderSrc{src: src, err: errors.Wrap(err, "cannot read source")})
}

// Reader returns a new reader of the source.
func (s *ReaderSrc) Reader() io.Reader { return bytes.NewReader(s.src) }
