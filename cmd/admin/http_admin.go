package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultServerURL = "http://127.0.0.1:8080"

// stateCmd prints the running server's game state.
func stateCmd(args []string) {
	remoteCmd("state", http.MethodGet, "/admin/v1/state", args)
}

// flushCmd asks a running server to write its save now.
func flushCmd(args []string) {
	remoteCmd("flush", http.MethodPost, "/admin/v1/save", args)
}

func remoteCmd(name, method, path string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", defaultServerURL, "server base url")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: *timeout}
	if err := callAdmin(cl, *baseURL, method, path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
}

// callAdmin sends one request to the server's loopback admin surface and
// copies the response body to out, indented when it is JSON. A non-2xx
// status is an error after the body has been written.
func callAdmin(cl *http.Client, baseURL, method, path string, out io.Writer) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, b, "", "  ") == nil {
		b = pretty.Bytes()
	}
	if _, err := fmt.Fprintln(out, strings.TrimRight(string(b), "\n")); err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
