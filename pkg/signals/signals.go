// Package signals reads named values from YAML and builds each one with a
// progressive.Creator, so that its shape follows the YAML nesting.
package signals

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/shapekit/pkg/anyobject"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/progressive"
)

// Definition is one signal. Value is a scalar, a sequence of scalars or a
// sequence of sequences of scalars.
type Definition struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Value yaml.Node `yaml:"value"`
}

type Document struct {
	Signals []Definition `yaml:"signals"`
}

type Loader struct {
	creator *progressive.Creator
	log     *zap.SugaredLogger
}

func NewLoader(c *progressive.Creator, log *zap.SugaredLogger) *Loader {
	if c == nil {
		c = progressive.NewCreator(progressive.Options{Logger: log})
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loader{creator: c, log: log}
}

// Load decodes a document and builds every signal in it. Either all
// signals are returned or none: on failure the ones already built are
// released.
func (l *Loader) Load(r io.Reader) ([]anyobject.Object, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", errs.ErrParameters, err)
	}
	seen := make(map[string]bool, len(doc.Signals))
	out := make([]anyobject.Object, 0, len(doc.Signals))
	for _, def := range doc.Signals {
		var err error
		switch {
		case def.Name == "":
			err = fmt.Errorf("%w: signal without a name", errs.ErrParameters)
		case seen[def.Name]:
			err = fmt.Errorf("%w: signal %q defined twice", errs.ErrParameters, def.Name)
		}
		var o anyobject.Object
		if err == nil {
			o, err = l.Build(def)
		}
		if err != nil {
			for _, built := range out {
				built.Release()
			}
			return nil, err
		}
		seen[def.Name] = true
		out = append(out, o)
	}
	l.log.Infow("signals loaded", "count", len(out))
	return out, nil
}

// Build drives one definition through the creator.
func (l *Loader) Build(def Definition) (anyobject.Object, error) {
	o, err := l.build(def)
	if err != nil {
		l.creator.Reset()
		return nil, fmt.Errorf("signal %q: %w", def.Name, err)
	}
	o.SetName(def.Name)
	return o, nil
}

func (l *Loader) build(def Definition) (anyobject.Object, error) {
	lt, err := leaf.Parse(def.Type)
	if err != nil {
		return nil, err
	}
	c := l.creator
	if err := c.Start(lt); err != nil {
		return nil, err
	}
	v := &def.Value
	switch v.Kind {
	case yaml.ScalarNode:
		err = c.AddElement(v.Value)
	case yaml.SequenceNode:
		err = l.sequence(v)
	case 0:
		err = fmt.Errorf("%w: no value", errs.ErrParameters)
	default:
		err = fmt.Errorf("%w: value must be a scalar or a sequence (line %d)", errs.ErrUnsupportedFeature, v.Line)
	}
	if err != nil {
		return nil, err
	}
	if err := c.End(); err != nil {
		return nil, err
	}
	return c.GetReference()
}

func (l *Loader) sequence(v *yaml.Node) error {
	c := l.creator
	rows := len(v.Content) > 0 && v.Content[0].Kind == yaml.SequenceNode
	if !rows {
		if err := l.row(v); err != nil {
			return err
		}
		return c.EndVector()
	}
	for _, r := range v.Content {
		if r.Kind != yaml.SequenceNode {
			return fmt.Errorf("%w: rows and scalars mixed (line %d)", errs.ErrParameters, r.Line)
		}
		if err := l.row(r); err != nil {
			return err
		}
		if err := c.EndVector(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) row(v *yaml.Node) error {
	for _, el := range v.Content {
		if el.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: more than two levels of nesting (line %d)", errs.ErrUnsupportedFeature, el.Line)
		}
		if err := l.creator.AddElement(el.Value); err != nil {
			return err
		}
	}
	return nil
}
