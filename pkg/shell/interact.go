package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/robinpath/robinpath/pkg/diag"
	"github.com/robinpath/robinpath/pkg/eval"
	"github.com/robinpath/robinpath/pkg/parse"
	"github.com/robinpath/robinpath/pkg/prog"
	"github.com/robinpath/robinpath/pkg/store"
)

// interact runs the read-eval loop. Lines accumulate in a buffer for as long
// as parsing classifies the buffer as incomplete; only a complete unit is
// evaluated (exactly once) and recorded in the history.
func interact(ev *eval.Evaler, fds [3]*os.File, cfg Config, f *prog.Flags) error {
	tty := isatty.IsTerminal(fds[0].Fd()) || isatty.IsCygwinTerminal(fds[0].Fd())
	if !tty {
		// Piped input is a script.
		code, err := io.ReadAll(fds[0])
		if err != nil {
			return err
		}
		return evalCode(ev, fds, parse.Source{Name: "stdin", Code: string(code)}, f.AST)
	}

	var hist *store.Store
	if path := historyPath(cfg, f.DB); path != "" {
		os.MkdirAll(filepath.Dir(path), 0o700)
		var err error
		hist, err = store.Open(path)
		if err != nil {
			fmt.Fprintln(fds[2], "warning: cannot open history:", err)
		} else {
			defer hist.Close()
		}
	}

	return repl(ev, fds[0], fds[1], fds[2], cfg, hist)
}

// repl is the loop proper, reading lines until EOF. A unit that parses as
// incomplete stays in the buffer; once it completes, it is recorded in the
// history and evaluated as a whole, exactly once.
func repl(ev *eval.Evaler, in io.Reader, out, errOut io.Writer, cfg Config, hist *store.Store) error {
	sc := bufio.NewScanner(in)
	var buf strings.Builder
	seq := 0

	fmt.Fprint(out, cfg.Prompt)
	for sc.Scan() {
		buf.WriteString(sc.Text())
		buf.WriteString("\n")
		code := buf.String()

		src := parse.Source{Name: fmt.Sprintf("[tty %d]", seq), Code: code}
		tree, err := parse.Parse(src)
		if err != nil {
			if needsMore, _ := parse.Incomplete(err); needsMore {
				fmt.Fprint(out, cfg.ContPrompt)
				continue
			}
			diag.ShowError(errOut, err)
			buf.Reset()
			seq++
			fmt.Fprint(out, cfg.Prompt)
			continue
		}

		buf.Reset()
		seq++
		if hist != nil && strings.TrimSpace(code) != "" {
			hist.AddCmd(strings.TrimRight(code, "\n"))
		}
		val, err := ev.Eval(context.Background(), tree)
		if err != nil {
			diag.ShowError(errOut, err)
		} else if val != nil {
			fmt.Fprintln(out, "▶", eval.ToString(val))
		}
		fmt.Fprint(out, cfg.Prompt)
	}
	fmt.Fprintln(out)
	return sc.Err()
}
