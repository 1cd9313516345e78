package shapekit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/shapekit/pkg/errs"
)

const (
	EnvLogLevel = "SHAPEKIT_LOG_LEVEL"
	EnvPageSize = "SHAPEKIT_PAGE_SIZE"
)

// LoadOptions reads Options from YAML, then applies the environment
// overrides. An empty document yields zero Options. Unknown keys are
// rejected.
func LoadOptions(r io.Reader) (Options, error) {
	var opts Options
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w: %v", errs.ErrParameters, err)
	}
	if err := applyEnv(&opts, os.LookupEnv); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func applyEnv(opts *Options, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		opts.LogLevel = v
	}
	if v, ok := lookup(EnvPageSize); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", errs.ErrParameters, EnvPageSize, v)
		}
		opts.PageSize = uint32(n)
	}
	return nil
}
