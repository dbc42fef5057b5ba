package ssa

import (
	"bytes"
	"io"

	"golang.org/x/tools/go/ssa"
)

// WriteFuncs writes fns to w in human readable SSA IR instruction format.
func WriteFuncs(w io.Writer, fns []*ssa.Function) (int64, error) {
	var n int64
	for _, f := range fns {
		var buf bytes.Buffer
		ssa.WriteFunction(&buf, f)
		written, err := buf.WriteTo(w)
		n += written
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteTo writes the functions declared in the packages given to the build
// to w in human readable SSA IR instruction format.
func (info *Info) WriteTo(w io.Writer) (int64, error) {
	return WriteFuncs(w, info.SrcFuncs())
}
