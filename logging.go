package shapekit

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rawbytedev/shapekit/pkg/errs"
)

// NewLogger builds a production logger at level ("debug", "info", ...).
func NewLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", errs.ErrParameters, level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
