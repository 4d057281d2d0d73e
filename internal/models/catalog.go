package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ResourceCatalog is the fixed set of requestable resources, split by class.
type ResourceCatalog struct {
	Common []string `yaml:"common"`
	Rare   []string `yaml:"rare"`
}

// ClassOf returns the class of a resource key, or false if the key is not in
// the catalog.
func (c *ResourceCatalog) ClassOf(key string) (ResourceClass, bool) {
	for _, r := range c.Common {
		if r == key {
			return ClassCommon, true
		}
	}
	for _, r := range c.Rare {
		if r == key {
			return ClassRare, true
		}
	}
	return "", false
}

// All returns every resource key in the catalog, common first.
func (c *ResourceCatalog) All() []string {
	out := make([]string, 0, len(c.Common)+len(c.Rare))
	out = append(out, c.Common...)
	out = append(out, c.Rare...)
	return out
}

// LoadCatalog reads the resource catalog from a YAML file.
func LoadCatalog(path string) (*ResourceCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var catalog ResourceCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(catalog.Common) == 0 && len(catalog.Rare) == 0 {
		return nil, fmt.Errorf("catalog %s lists no resources", path)
	}
	return &catalog, nil
}

// DefaultCatalog returns the built-in catalog used when no file is configured.
func DefaultCatalog() *ResourceCatalog {
	return &ResourceCatalog{
		Common: []string{
			"iron_ingot",
			"leather_bundle",
			"arcane_dust",
			"timber_stack",
			"healing_herb",
		},
		Rare: []string{
			"dragon_scale",
			"void_crystal",
			"phoenix_feather",
		},
	}
}
