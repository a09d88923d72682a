package period

import (
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/periods.yaml
var dataFS embed.FS

const defaultListPath = "data/periods.yaml"

type listFile struct {
	Periods []string `yaml:"periods"`
}

// List is an immutable, validated set of historical period names.
type List struct {
	names []string
}

// Default returns the built-in period list.
func Default() (List, error) {
	content, err := dataFS.ReadFile(defaultListPath)
	if err != nil {
		return List{}, fmt.Errorf("load built-in periods: %w", err)
	}

	return parse(content)
}

// Load returns the list from path, or the built-in list when path is empty.
func Load(path string) (List, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return List{}, fmt.Errorf("read periods file: %w", err)
	}

	list, err := parse(content)
	if err != nil {
		return List{}, fmt.Errorf("periods file %s: %w", path, err)
	}

	return list, nil
}

func parse(content []byte) (List, error) {
	var file listFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return List{}, fmt.Errorf("parse periods: %w", err)
	}

	names := make([]string, 0, len(file.Periods))
	for _, name := range file.Periods {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		names = append(names, trimmed)
	}

	if len(names) == 0 {
		return List{}, errors.New("period list is empty")
	}

	return List{names: names}, nil
}

// Names returns a copy of the period names in file order.
func (l List) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Len reports how many periods the list holds.
func (l List) Len() int {
	return len(l.names)
}

// Picker chooses one period uniformly at random.
type Picker struct {
	list List
	intn func(int) int
}

// NewPicker returns a picker backed by math/rand/v2. intn may be nil.
func NewPicker(list List, intn func(int) int) (*Picker, error) {
	if list.Len() == 0 {
		return nil, errors.New("period list is empty")
	}
	if intn == nil {
		intn = rand.IntN
	}

	return &Picker{list: list, intn: intn}, nil
}

// Pick returns one period name.
func (p *Picker) Pick() string {
	return p.list.names[p.intn(len(p.list.names))]
}
