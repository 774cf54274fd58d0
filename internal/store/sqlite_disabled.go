//go:build !sqlite
// +build !sqlite

package store

import (
	"errors"

	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (DocStore, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite store not built: build with -tags sqlite")
}
