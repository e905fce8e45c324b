package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hamed0406/ncprobe/internal/config"
	"github.com/hamed0406/ncprobe/internal/probe"
)

func newPreflightCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Sanity-check the serve environment before deploying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if failed := preflight(d.stdout, config.FromEnv()); failed > 0 {
				return &exitError{code: exitUnreachable, err: fmt.Errorf("preflight: %d problem(s)", failed)}
			}
			return nil
		},
	}
}

// preflight prints one line per setting and returns the number of failures.
func preflight(w io.Writer, cfg config.Config) int {
	failed := 0
	fail := func(msg string) { failed++; color.New(color.FgRed).Fprintln(w, "✖", msg) }
	warn := func(msg string) { color.New(color.FgYellow).Fprintln(w, "⚠", msg) }
	ok := func(msg string) { color.New(color.FgGreen).Fprintln(w, "✔", msg) }

	switch {
	case len(cfg.AdminAPIKeys) == 0 && len(cfg.PublicAPIKeys) == 0:
		warn("no API keys set; every route is open")
	case len(cfg.AdminAPIKeys) == 0:
		fail("ADMIN_API_KEYS is empty; write routes will reject every request")
	default:
		ok(fmt.Sprintf("%d public / %d admin API key(s)", len(cfg.PublicAPIKeys), len(cfg.AdminAPIKeys)))
	}

	mode, err := probe.ParseProxyMode(cfg.ProxyMode)
	if err != nil {
		fail("PROXY_MODE: " + err.Error())
	} else {
		ok("PROXY_MODE=" + string(mode))
	}
	if cfg.ProxyURL != "" {
		if px, err := probe.ParseProxyURL(cfg.ProxyURL); err != nil {
			fail("PROXY_URL: " + err.Error())
		} else {
			ok("PROXY_URL proxy at " + px.Addr())
		}
	} else if mode == probe.ModeExplicit {
		fail("PROXY_MODE=explicit needs PROXY_URL")
	}
	if len(cfg.InternalDomains) > 0 {
		ok("INTERNAL_DOMAINS=" + strings.Join(cfg.InternalDomains, ","))
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; targets and results are kept in memory only")
	} else {
		ok("DATABASE_URL present")
	}
	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK_URL empty; alerts only go to the log")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may call the API from a browser")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}
	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL_MS=0; periodic rechecks are disabled")
	}

	if failed == 0 {
		ok("preflight passed")
	}
	return failed
}
