package ch

import (
	"os"
	"strings"

	"warcdex/internal/core/version"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo names this binary in system.query_log
// role is the pipeline stage, e.g. "index"
func BuildClientInfo(role, tag string) clickhouse.ClientInfo {
	bi := version.Info(tag)
	host, _ := os.Hostname()

	type kv = struct{ Name, Version string }
	return clickhouse.ClientInfo{Products: []kv{
		{Name: nonEmpty(tag, "warcdex"), Version: strings.TrimSpace(bi.Version)},
		{Name: "role", Version: strings.TrimSpace(role)},
		{Name: "go", Version: bi.Go},
		{Name: "commit", Version: bi.Commit},
		{Name: "host", Version: host},
	}}
}

func nonEmpty(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
