// Package scenariofile loads declarative HTTP scenarios from JSON or YAML
// files and turns them into runnable scenarios.
package scenariofile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
)

// Document is the on-disk form of a scenario.
type Document struct {
	Name        string         `json:"name" yaml:"name" validate:"required"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL     string         `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Variables   map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
	Cleanup     []Step         `json:"cleanup,omitempty" yaml:"cleanup,omitempty" validate:"omitempty,dive"`
}

// Step is one request/expect pair in a Document.
type Step struct {
	Name    string            `json:"name" yaml:"name" validate:"required"`
	Request Request           `json:"request" yaml:"request"`
	Capture map[string]string `json:"capture,omitempty" yaml:"capture,omitempty"`
	Expect  *httpstep.Expect  `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// Request mirrors httpstep.Request with validation rules.
type Request struct {
	Method  string            `json:"method" yaml:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	URL     string            `json:"url" yaml:"url" validate:"required"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    any               `json:"body,omitempty" yaml:"body,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile parses and validates a .json, .yaml or .yml scenario file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var doc Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
		if err == nil {
			doc.normalize()
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	for i := range doc.Steps {
		doc.Steps[i].Request.Method = strings.ToUpper(doc.Steps[i].Request.Method)
	}
	for i := range doc.Cleanup {
		doc.Cleanup[i].Request.Method = strings.ToUpper(doc.Cleanup[i].Request.Method)
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, describe(err))
	}
	return &doc, nil
}

// LoadDir loads every scenario file in dir, sorted by file name.
func LoadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		doc, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Load loads a single file or every file in a directory.
func Load(path string) ([]*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []*Document{doc}, nil
}

// Build turns doc into a runnable scenario whose steps run on exec.
func Build(doc *Document, exec *httpstep.Executor) *scenario.Scenario {
	s := &scenario.Scenario{
		Name:        doc.Name,
		Description: doc.Description,
		Variables:   doc.Variables,
	}
	for _, st := range doc.Steps {
		s.Steps = append(s.Steps, exec.Step(st.Name, st.call()))
	}
	for _, st := range doc.Cleanup {
		s.Cleanup = append(s.Cleanup, exec.Step(st.Name, st.call()))
	}
	return s
}

func (st Step) call() httpstep.Call {
	c := httpstep.Call{
		Request: httpstep.Request{
			Method:  st.Request.Method,
			URL:     st.Request.URL,
			Headers: st.Request.Headers,
			Body:    st.Request.Body,
		},
		Capture: st.Capture,
	}
	if st.Expect != nil {
		c.Expect = *st.Expect
	}
	return c
}

// normalize converts YAML-decoded nested maps into the map[string]any shape
// the JSON encoder and the assertion library expect.
func (d *Document) normalize() {
	for k, v := range d.Variables {
		d.Variables[k] = normalizeValue(v)
	}
	for _, steps := range [][]Step{d.Steps, d.Cleanup} {
		for i := range steps {
			steps[i].Request.Body = normalizeValue(steps[i].Request.Body)
			if steps[i].Expect != nil {
				for k, v := range steps[i].Expect.Body {
					steps[i].Expect.Body[k] = normalizeValue(v)
				}
			}
		}
	}
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeValue(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = normalizeValue(val)
		}
		return x
	default:
		return v
	}
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
