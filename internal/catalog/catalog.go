package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Category describes one supported scenario type for form builders.
type Category struct {
	Type        models.ScenarioType `yaml:"type" json:"type"`
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description" json:"description"`
	Factors     []string            `yaml:"factors" json:"factors"`
	Examples    []string            `yaml:"examples" json:"examples"`
}

type document struct {
	Categories []Category `yaml:"categories"`
}

var (
	loadOnce   sync.Once
	categories []Category
	loadErr    error
)

// Categories returns the static catalogue, one entry per supported
// scenario type in catalogue order.
func Categories() ([]Category, error) {
	loadOnce.Do(func() {
		categories, loadErr = parse(catalogYAML)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	out := make([]Category, len(categories))
	copy(out, categories)
	return out, nil
}

func parse(data []byte) ([]Category, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalogue: %w", err)
	}

	byType := make(map[models.ScenarioType]Category, len(doc.Categories))
	for _, c := range doc.Categories {
		if !c.Type.IsValid() {
			return nil, fmt.Errorf("catalogue entry %q has unsupported type", c.Type)
		}
		byType[c.Type] = c
	}

	ordered := make([]Category, 0, len(byType))
	for _, t := range models.AllScenarioTypes() {
		c, ok := byType[t]
		if !ok {
			return nil, fmt.Errorf("catalogue is missing scenario type %q", t)
		}
		ordered = append(ordered, c)
	}
	return ordered, nil
}
