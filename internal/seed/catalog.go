package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ProcessTypeSeed is one entry of the default process-type catalog.
type ProcessTypeSeed struct {
	Name                   string `yaml:"name"`
	Category               string `yaml:"category"`
	Code                   string `yaml:"code"`
	IsLicensing            bool   `yaml:"is_licensing"`
	RequiresAgency         bool   `yaml:"requires_agency"`
	RequiresProtocolNumber bool   `yaml:"requires_protocol_number"`
}

var catalog = mustParseCatalog(catalogYAML)

// Catalog returns a copy of the default process-type catalog.
func Catalog() []ProcessTypeSeed {
	out := make([]ProcessTypeSeed, len(catalog))
	copy(out, catalog)
	return out
}

func parseCatalog(data []byte) ([]ProcessTypeSeed, error) {
	var entries []ProcessTypeSeed
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.Name == "" || e.Code == "" {
			return nil, fmt.Errorf("catalog entry %d: name and code are required", i)
		}
		if seen[e.Code] {
			return nil, fmt.Errorf("catalog entry %d: duplicate code %q", i, e.Code)
		}
		seen[e.Code] = true
	}
	return entries, nil
}

func mustParseCatalog(data []byte) []ProcessTypeSeed {
	entries, err := parseCatalog(data)
	if err != nil {
		panic(err)
	}
	return entries
}
