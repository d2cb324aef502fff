// Command robinpath is the RobinPath interpreter: a script runner, an
// interactive shell, and (with -lsp) a language server.
package main

import (
	"os"

	"github.com/robinpath/robinpath/pkg/lsp"
	"github.com/robinpath/robinpath/pkg/prog"
	"github.com/robinpath/robinpath/pkg/shell"
)

func main() {
	os.Exit(prog.Run([3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(&lsp.Program{}, &shell.Program{})))
}
