// Command fintrack-report prints statistics for one or more users straight
// from the configured backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/cli"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

func main() {
	var (
		users    = flag.String("user", "", "comma-separated user ids (required)")
		recent   = flag.Int("recent", 0, "recent transactions to show (default RECENT_WINDOW)")
		asJSON   = flag.Bool("json", false, "print JSON instead of a table")
		issueTTL = flag.Duration("issue-token", 0, "print a bearer token for -user valid this long, then exit")
		timeout  = flag.Duration("timeout", 30*time.Second, "give up after this long")
	)
	flag.Parse()

	cli.LoadEnvFile()
	// Logs go to stderr so stdout stays clean for the report.
	logger := log.New(log.Config{Level: log.ParseLevel(os.Getenv("LOG_LEVEL")), Component: log.ComponentReport, Output: os.Stderr})
	log.SetDefault(logger)

	ids := splitUsers(*users)
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "fintrack-report: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	if *issueTTL > 0 {
		if err := issueTokens(cfg.JWTSecret, ids, *issueTTL); err != nil {
			logger.Error("Token issue failed", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	window := *recent
	if window <= 0 {
		window = cfg.RecentWindow
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	res, err := cli.BuildBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Backend initialization failed", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	reports, err := report.Load(ctx, res.Backend, ids, window)
	if err != nil {
		logger.Error("Report failed", log.FieldError, err)
		res.Close()
		os.Exit(1)
	}

	if *asJSON {
		err = report.WriteJSON(os.Stdout, reports)
	} else {
		err = report.WriteTable(os.Stdout, reports)
	}
	if err != nil {
		logger.Error("Writing report failed", log.FieldError, err)
		res.Close()
		os.Exit(1)
	}
}

func splitUsers(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func issueTokens(secret string, users []string, ttl time.Duration) error {
	resolver := identity.NewResolver(secret)
	now := time.Now()
	for _, u := range users {
		token, err := resolver.Issue(u, jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		})
		if err != nil {
			return fmt.Errorf("issue token for %s: %w", u, err)
		}
		fmt.Printf("%s\t%s\n", u, token)
	}
	return nil
}
