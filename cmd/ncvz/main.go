package main

import (
	"errors"
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = ""
)

// go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse --short HEAD)" -o ncvz ./cmd/ncvz

func main() {
	root := newRootCmd(defaultDeps())
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "ncvz:", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "ncvz:", err)
		os.Exit(exitUsage)
	}
}
