// Package firmware reads and rewrites named numeric layout parameters
// declared in the device firmware source.
package firmware

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrPatternNotFound means the expected `int <name> = <value>;` declaration
// is missing from the firmware source.
var ErrPatternNotFound = errors.New("parameter declaration not found")

// declPattern matches the exact declaration shape the firmware uses for
// tunable layout parameters. Rewrites depend on this textual form and
// report failure rather than guessing when the format drifts.
var declPattern = regexp.MustCompile(`int ([A-Za-z_][A-Za-z0-9_]*) = (\d+);`)

// Param is one tunable declaration.
type Param struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Store holds one firmware source file's text and rewrites parameter
// declarations by exact substitution. Mutation is all-or-nothing per
// parameter: load the whole file, substitute once, save the whole file.
type Store struct {
	path string
	text string
}

// Load reads the firmware source at path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware source: %w", err)
	}
	return &Store{path: path, text: string(data)}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// All returns every parameter declaration in file order.
func (s *Store) All() []Param {
	matches := declPattern.FindAllStringSubmatch(s.text, -1)
	params := make([]Param, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		params = append(params, Param{Name: m[1], Value: v})
	}
	return params
}

// Get returns the current value of a named parameter.
func (s *Store) Get(name string) (int, error) {
	m := namePattern(name).FindStringSubmatch(s.text)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrPatternNotFound, name)
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrPatternNotFound, name)
	}
	return v, nil
}

// Set replaces the declaration of name with value, in memory. Save persists
// the change.
func (s *Store) Set(name string, value int) error {
	cur, err := s.Get(name)
	if err != nil {
		return err
	}
	old := fmt.Sprintf("int %s = %d;", name, cur)
	updated := fmt.Sprintf("int %s = %d;", name, value)
	s.text = strings.Replace(s.text, old, updated, 1)
	return nil
}

// Save rewrites the whole firmware source file.
func (s *Store) Save() error {
	return os.WriteFile(s.path, []byte(s.text), 0644)
}

func namePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`int ` + regexp.QuoteMeta(name) + ` = (\d+);`)
}
