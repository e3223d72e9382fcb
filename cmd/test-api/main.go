// Package main is a smoke-test utility that verifies a running portal is
// reachable and serving its probes and public pages. It prints one line per
// check and exits non-zero when any check fails, which makes it usable as a
// post-deployment gate without curl or a full integration suite.
//
//	go run ./cmd/test-api [base-url]
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type check struct {
	path   string
	status int
	want   string
}

var checks = []check{
	{"/health", http.StatusOK, `"healthy"`},
	{"/ready", http.StatusOK, `"ready":true`},
	{"/version", http.StatusOK, `"version"`},
	{"/", http.StatusOK, "<html"},
	{"/projects", http.StatusOK, "<html"},
	{"/calendar", http.StatusOK, "<html"},
	{"/admin", http.StatusFound, ""},
}

func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = strings.TrimRight(os.Args[1], "/")
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	failed := 0
	for _, c := range checks {
		if err := run(client, base, c); err != nil {
			failed++
			fmt.Printf("FAIL %-12s %v\n", c.path, err)
			continue
		}
		fmt.Printf("ok   %s\n", c.path)
	}
	if failed > 0 {
		fmt.Printf("%d of %d checks failed\n", failed, len(checks))
		os.Exit(1)
	}
}

func run(client *http.Client, base string, c check) error {
	resp, err := client.Get(base + c.path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != c.status {
		return fmt.Errorf("status %d, want %d", resp.StatusCode, c.status)
	}
	if c.want != "" && !strings.Contains(string(body), c.want) {
		return fmt.Errorf("body does not contain %q", c.want)
	}
	return nil
}
