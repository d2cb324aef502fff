// Command robinpath-lsp is the standalone RobinPath language server,
// equivalent to robinpath -lsp.
package main

import (
	"os"

	"github.com/robinpath/robinpath/pkg/lsp"
	"github.com/robinpath/robinpath/pkg/prog"
)

type program struct{}

func (program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	f.LSP = true
	return (&lsp.Program{}).Run(fds, f, args)
}

func main() {
	os.Exit(prog.Run([3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args, program{}))
}
