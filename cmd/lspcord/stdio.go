package main

import (
	"errors"
	"io"
)

// stdio joins the process's stdin and stdout into the single stream the
// JSON-RPC layer expects.
type stdio struct {
	io.Reader
	io.Writer
	in  io.Closer
	out io.Closer
}

func newStdio(in io.ReadCloser, out io.WriteCloser) *stdio {
	return &stdio{Reader: in, Writer: out, in: in, out: out}
}

func (s *stdio) Close() error {
	return errors.Join(s.in.Close(), s.out.Close())
}
