package prog

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

// fixture holds pipes standing in for the process's standard files, so tests
// can inspect what Run writes to stdout and stderr.
type fixture struct {
	fds        [3]*os.File
	outW, errW *os.File
	outR, errR *os.File
	outC, errC chan string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	devnull, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { devnull.Close() })
	f := &fixture{outC: make(chan string, 1), errC: make(chan string, 1)}
	f.outR, f.outW = mustPipe(t)
	f.errR, f.errW = mustPipe(t)
	f.fds = [3]*os.File{devnull, f.outW, f.errW}
	go drain(f.outR, f.outC)
	go drain(f.errR, f.errC)
	return f
}

func mustPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close(); w.Close() })
	return r, w
}

func drain(r *os.File, c chan<- string) {
	b, _ := io.ReadAll(r)
	c <- string(b)
}

// out and err close the write ends and collect everything written.
func (f *fixture) out() string { f.outW.Close(); return <-f.outC }
func (f *fixture) err() string { f.errW.Close(); return <-f.errC }

// program adapts a function to the Program interface.
type program func(fds [3]*os.File, f *Flags, args []string) error

func (p program) Run(fds [3]*os.File, f *Flags, args []string) error {
	return p(fds, f, args)
}

var ok = program(func([3]*os.File, *Flags, []string) error { return nil })

func TestRun_OK(t *testing.T) {
	f := setup(t)
	if exit := Run(f.fds, []string{"robinpath"}, ok); exit != 0 {
		t.Errorf("exit = %d, want 0", exit)
	}
}

func TestRun_BadFlag(t *testing.T) {
	f := setup(t)
	if exit := Run(f.fds, []string{"robinpath", "-bad-flag"}, ok); exit != 2 {
		t.Errorf("exit = %d, want 2", exit)
	}
	if err := f.err(); !strings.Contains(err, "Usage:") {
		t.Errorf("stderr does not show usage: %q", err)
	}
}

func TestRun_Help(t *testing.T) {
	f := setup(t)
	if exit := Run(f.fds, []string{"robinpath", "-help"}, ok); exit != 0 {
		t.Errorf("exit = %d, want 0", exit)
	}
	if out := f.out(); !strings.Contains(out, "Usage:") {
		t.Errorf("stdout does not show usage: %q", out)
	}
}

func TestRun_BadUsage(t *testing.T) {
	f := setup(t)
	p := program(func([3]*os.File, *Flags, []string) error {
		return BadUsage("-c requires exactly one argument")
	})
	if exit := Run(f.fds, []string{"robinpath", "-c"}, p); exit != 2 {
		t.Errorf("exit = %d, want 2", exit)
	}
	err := f.err()
	if !strings.Contains(err, "-c requires exactly one argument") {
		t.Errorf("stderr does not show the message: %q", err)
	}
	if !strings.Contains(err, "Usage:") {
		t.Errorf("stderr does not show usage: %q", err)
	}
}

func TestRun_Exit(t *testing.T) {
	f := setup(t)
	p := program(func([3]*os.File, *Flags, []string) error { return Exit(3) })
	if exit := Run(f.fds, []string{"robinpath"}, p); exit != 3 {
		t.Errorf("exit = %d, want 3", exit)
	}
	// Exit carries no message of its own.
	if err := f.err(); err != "" {
		t.Errorf("stderr = %q, want empty", err)
	}
}

func TestExit_Zero(t *testing.T) {
	if err := Exit(0); err != nil {
		t.Errorf("Exit(0) = %v, want nil", err)
	}
}

func TestRun_PlainError(t *testing.T) {
	f := setup(t)
	p := program(func([3]*os.File, *Flags, []string) error {
		return errors.New("something failed")
	})
	if exit := Run(f.fds, []string{"robinpath"}, p); exit != 2 {
		t.Errorf("exit = %d, want 2", exit)
	}
	err := f.err()
	if !strings.Contains(err, "something failed") {
		t.Errorf("stderr does not show the message: %q", err)
	}
	if strings.Contains(err, "Usage:") {
		t.Errorf("stderr shows usage for a plain error: %q", err)
	}
}

func TestComposite(t *testing.T) {
	f := setup(t)
	notSuitable := program(func([3]*os.File, *Flags, []string) error {
		return ErrNotSuitable
	})
	var ran bool
	second := program(func([3]*os.File, *Flags, []string) error {
		ran = true
		return nil
	})
	if exit := Run(f.fds, []string{"robinpath"}, Composite(notSuitable, second)); exit != 0 {
		t.Errorf("exit = %d, want 0", exit)
	}
	if !ran {
		t.Error("second subprogram did not run")
	}
}

func TestComposite_NoneSuitable(t *testing.T) {
	f := setup(t)
	notSuitable := program(func([3]*os.File, *Flags, []string) error {
		return ErrNotSuitable
	})
	if exit := Run(f.fds, []string{"robinpath"}, Composite(notSuitable)); exit != 2 {
		t.Errorf("exit = %d, want 2", exit)
	}
	if err := f.err(); !strings.Contains(err, "no suitable subprogram") {
		t.Errorf("stderr = %q, want internal error message", err)
	}
}
