package main

import (
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hamed0406/ncprobe/internal/probe"
)

const (
	exitReachable   = 0
	exitUnreachable = 1
	exitUsage       = 2
)

// exitError carries a process exit code out of a command. err may be nil
// when the command already reported what happened.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// deps are the process-level inputs the commands read, swapped in tests.
type deps struct {
	stdout io.Writer
	stderr io.Writer
	env    probe.Environment
}

func defaultDeps() deps {
	return deps{stdout: os.Stdout, stderr: os.Stderr, env: probe.OSEnvironment{}}
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "ncvz",
		Short: "TCP reachability checks, direct or through an HTTP CONNECT proxy",
		Long: `ncvz answers one question: can a TCP connection to host:port be opened
from here, either directly or through an HTTP proxy's CONNECT tunnel?

  ncvz check db.internal 5432
  ncvz check https://example.com --proxy-mode env_auto
  ncvz serve`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if commit != "" {
		root.Version = version + " (" + commit + ")"
	}
	root.SetOut(d.stdout)
	root.SetErr(d.stderr)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})

	root.AddCommand(newCheckCmd(d), newServeCmd(d), newPreflightCmd(d))
	return root
}
