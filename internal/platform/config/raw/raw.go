// Package raw reads environment values without logging
// The logger bootstraps from it, so it must not import the logger.
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is the key prefix applied to every lookup
type Conf string

// New returns the unprefixed view
func New() Conf { return "" }

// Prefix nests p under c
func (c Conf) Prefix(p string) Conf { return c + Conf(p) }

// Get returns the trimmed value of key or def
func (c Conf) Get(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(string(c) + key)); v != "" {
		return v
	}
	return def
}

// GetBool accepts strconv.ParseBool values plus yes/no
func (c Conf) GetBool(key string, def bool) bool {
	switch v := strings.ToLower(c.Get(key, "")); v {
	case "":
		return def
	case "yes", "on":
		return true
	case "no", "off":
		return false
	default:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
}

// GetInt returns a non-negative int or def
func (c Conf) GetInt(key string, def int) int {
	n, err := strconv.Atoi(c.Get(key, ""))
	if err != nil || n < 0 {
		return def
	}
	return n
}
