package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// blocklistFile is the on-disk shape of SCENARIO_REALISM_BLOCKLIST_FILE,
// grounded on the teacher's internal/waitpoint/configs/yaml_intent.go
// pattern of loading a small YAML document into a typed struct rather than
// a raw map.
type blocklistFile struct {
	Terms []string `yaml:"terms"`
}

// LoadBlocklistFile reads a YAML document of the shape `terms: [...]` from
// path. Used as an alternative to the comma-separated
// SCENARIO_REALISM_BLOCKLIST env var when the list is long or needs
// version control of its own.
func LoadBlocklistFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc blocklistFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc.Terms, nil
}
