package store

import (
	"errors"
	"strings"

	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

// Open initializes the configured store.
// A disabled driver degrades to a memory store rather than nil.
func Open(cfg Config, log logx.Logger) (DocStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none", "memory":
		return Memory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
