package config

import (
	"fmt"
	"os"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"gopkg.in/yaml.v3"
)

type typesFile struct {
	Types []domain.TypeInfo `yaml:"types"`
}

// LoadTypes reads type declarations from a YAML file of the form
//
//	types:
//	  - name: MemberLink
//	    parent: UnorderedLink
//
// Declarations are returned in file order so parents can precede children.
func LoadTypes(path string) ([]domain.TypeInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f typesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Types, nil
}

// RegisterTypes adds infos to r in order.
func RegisterTypes(r *domain.TypeRegistry, infos []domain.TypeInfo) error {
	for _, info := range infos {
		if _, err := r.RegisterInfo(info); err != nil {
			return err
		}
	}
	return nil
}
