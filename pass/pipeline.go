package pass

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrEmptyPipeline = errors.New("pipeline has no passes")

// UnknownPassError is the error when a pipeline names a pass which does not
// exist.
type UnknownPassError struct {
	Name string
}

func (e UnknownPassError) Error() string {
	return fmt.Sprintf("unknown pass: %s (known: %s)", e.Name, strings.Join(Names(), ", "))
}

// Names returns the names of the passes a Pipeline can refer to.
func Names() []string {
	return []string{
		SplitCriticalEdges{}.Name(),
		VerifyDominance{}.Name(),
		(*PrintDomTree)(nil).Name(),
		(*PrintLoops)(nil).Name(),
	}
}

// Pipeline is a list of passes by name, e.g. in YAML
//
//	passes:
//	  - split-critical-edges
//	  - verify-dominance
//	  - print-domtree
//
type Pipeline struct {
	Names []string `yaml:"passes"`
}

// LoadPipeline reads a Pipeline in YAML from r.
func LoadPipeline(r io.Reader) (*Pipeline, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyPipeline
		}
		return nil, errors.Wrap(err, "cannot parse pipeline")
	}
	if len(p.Names) == 0 {
		return nil, ErrEmptyPipeline
	}
	return &p, nil
}

// ParsePipeline returns the Pipeline of a comma separated list of names.
func ParsePipeline(s string) (*Pipeline, error) {
	var p Pipeline
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			p.Names = append(p.Names, name)
		}
	}
	if len(p.Names) == 0 {
		return nil, ErrEmptyPipeline
	}
	return &p, nil
}

// Passes returns the passes of the pipeline. Printing passes write to w.
func (p *Pipeline) Passes(w io.Writer, noColor bool) ([]FunctionPass, error) {
	var passes []FunctionPass
	for _, name := range p.Names {
		switch name {
		case SplitCriticalEdges{}.Name():
			passes = append(passes, SplitCriticalEdges{})
		case VerifyDominance{}.Name():
			passes = append(passes, VerifyDominance{})
		case (*PrintDomTree)(nil).Name():
			passes = append(passes, NewPrintDomTree(w, noColor))
		case (*PrintLoops)(nil).Name():
			passes = append(passes, NewPrintLoops(w, noColor))
		default:
			return nil, UnknownPassError{Name: name}
		}
	}
	return passes, nil
}
