package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	perr "warcdex/internal/platform/errors"
)

// collectPaths merges the -inputs list file with positional arguments, list first
func collectPaths(listFile string, args []string) ([]string, error) {
	var out []string
	if listFile != "" {
		f, err := os.Open(listFile)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "inputs list %s", listFile)
		}
		defer func() { _ = f.Close() }()
		out, err = readList(f)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeIO, "inputs list %s", listFile)
		}
	}
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// readList returns one path per line, skipping blanks and # comments
func readList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
