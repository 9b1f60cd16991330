package seed

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPreset is the department preset used when none is named.
const DefaultPreset = "default"

//go:embed presets/*.yaml
var presetFS embed.FS

// Department is a teaching department from a preset.
type Department struct {
	Name    string   `yaml:"name"`
	Code    string   `yaml:"code"`
	Courses []string `yaml:"courses"`
}

// Preset describes the campus the seeder populates.
type Preset struct {
	Name            string       `yaml:"name"`
	Campus          string       `yaml:"campus"`
	EmailDomain     string       `yaml:"email_domain"`
	Departments     []Department `yaml:"departments"`
	Venues          []string     `yaml:"venues"`
	ForumCategories []string     `yaml:"forum_categories"`
}

// LoadDepartments reads a built-in preset by name.
func LoadDepartments(name string) (*Preset, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultPreset
	}
	data, err := presetFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	return ParsePreset(data)
}

// ParsePreset decodes and validates a preset document.
func ParsePreset(data []byte) (*Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	if len(p.Departments) == 0 {
		return nil, errors.New("preset must define at least one department")
	}
	for i, d := range p.Departments {
		if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Code) == "" {
			return nil, fmt.Errorf("department %d needs a name and code", i)
		}
		if len(d.Courses) == 0 {
			p.Departments[i].Courses = []string{d.Code + "101"}
		}
	}
	if p.EmailDomain == "" {
		p.EmailDomain = "campus.local"
	}
	if len(p.Venues) == 0 {
		p.Venues = []string{"Main Hall"}
	}
	if len(p.ForumCategories) == 0 {
		p.ForumCategories = []string{"general"}
	}
	return &p, nil
}
