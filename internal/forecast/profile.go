package forecast

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultProfileName names the profile used when none is configured.
const DefaultProfileName = "default"

// Profile describes one known layout of the forecast export. Exports drift
// between releases (preamble length, merged headers, one or two header rows);
// a profile captures the knobs instead of a code fork per release.
type Profile struct {
	Name            string   `yaml:"name"`
	Sheet           string   `yaml:"sheet,omitempty"`
	SkipRows        *int     `yaml:"skip_rows,omitempty"`
	HeaderRows      int      `yaml:"header_rows,omitempty"`
	Keywords        []string `yaml:"keywords,omitempty"`
	TitlePatterns   []string `yaml:"title_patterns,omitempty"`
	LabelSeparators []string `yaml:"label_separators,omitempty"`
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

//go:embed profiles.yaml
var builtinProfiles []byte

var (
	defaultKeywords      = []string{"forecast"}
	defaultTitlePatterns = []string{
		`(?i)\bversion\b`,
		`(?i)^v\s?\d+(\.\d+)*$`,
		`(?i)fd2w`,
		`(?i)\breport\b`,
		`(?i)^as of\b`,
		`(?i)\bgenerated\b`,
		`(?i)last updated`,
		`(?i)^source\s*:`,
	}
	defaultSeparators = []string{"___", "|", "\n"}
)

// DefaultProfile returns the two-header-row, keyword-scanned layout.
func DefaultProfile() Profile {
	return Profile{Name: DefaultProfileName}.withDefaults()
}

func (p Profile) withDefaults() Profile {
	if p.Name == "" {
		p.Name = DefaultProfileName
	}
	if p.Sheet == "" {
		p.Sheet = "full"
	}
	if p.HeaderRows == 0 {
		p.HeaderRows = 2
	}
	if len(p.Keywords) == 0 {
		p.Keywords = defaultKeywords
	}
	if len(p.TitlePatterns) == 0 {
		p.TitlePatterns = defaultTitlePatterns
	}
	if len(p.LabelSeparators) == 0 {
		p.LabelSeparators = defaultSeparators
	}
	return p
}

// Validate checks the profile values that cannot be defaulted.
func (p Profile) Validate() error {
	if p.HeaderRows < 0 || p.HeaderRows > 2 {
		return fmt.Errorf("profile %s: header_rows must be 1 or 2, got %d", p.Name, p.HeaderRows)
	}
	if p.SkipRows != nil && *p.SkipRows < 0 {
		return fmt.Errorf("profile %s: skip_rows must not be negative", p.Name)
	}
	return nil
}

// ParseProfiles decodes a YAML document with a top-level "profiles" list.
func ParseProfiles(data []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse layout profiles: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, errors.New("parse layout profiles: no profiles defined")
	}
	out := make([]Profile, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		p = p.withDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadProfiles reads layout profiles from path, or the built-in set when path is empty.
func LoadProfiles(path string) ([]Profile, error) {
	if path == "" {
		return ParseProfiles(builtinProfiles)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout profiles %s: %w", path, err)
	}
	return ParseProfiles(data)
}

// FindProfile returns the profile called name.
func FindProfile(profiles []Profile, name string) (Profile, error) {
	if name == "" {
		name = DefaultProfileName
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("layout profile %q not found", name)
}
