package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"eolsweep/internal/server"
)

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run posts a workflow file to a transform server and prints the result to
// outW. Warnings go to errW.
func run(outW, errW io.Writer, args []string) error {
	fs := flag.NewFlagSet("eolsweep-client", flag.ContinueOnError)
	fs.SetOutput(outW)
	endpoint := fs.String("server", "http://localhost:8080", "Transform server base URL.")
	remove := fs.String("remove", "", "Comma separated versions to remove (server default when empty).")
	install := fs.String("install", "", "Comma separated versions to install (server default when empty).")
	fs.Usage = func() {
		fmt.Fprintln(outW, "Usage:")
		fmt.Fprintln(outW, "  client [options] <workflow.yml>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one workflow file")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read workflow: %w", err)
	}

	q := url.Values{}
	if *remove != "" {
		q.Set("remove", *remove)
	}
	if *install != "" {
		q.Set("install", *install)
	}
	target := *endpoint + "/transform"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(target, "application/x-yaml", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var out server.TransformResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, out.Error)
	}
	for _, w := range out.Warnings {
		fmt.Fprintln(errW, "warning:", w)
	}
	fmt.Fprintf(outW, "# status: %s\n", out.Status)
	_, err = io.WriteString(outW, out.Output)
	return err
}
