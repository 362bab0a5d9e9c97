// Package planfile reads the planning input: the resources available and the
// work items to place on the calendar. Effort values arrive precomputed; the
// estimation formula that produces them lives outside this module.
package planfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/capaplan/capaplan/core/model"
)

// DateLayout is the expected format for requested start dates.
const DateLayout = "2006-01-02"

// ResourceDef describes one resource in the input file.
type ResourceDef struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name,omitempty" json:"name,omitempty"`
	WeeklyHours float64 `yaml:"weekly_hours" json:"weekly_hours"`
}

// ToModel converts the definition into the domain type.
func (r ResourceDef) ToModel() model.Resource {
	return model.Resource{ID: r.ID, Name: r.Name, WeeklyCapacityHours: r.WeeklyHours}
}

// ItemDef describes one work item in the input file. Start is optional; an
// item without it (or without resources) is carried through and excluded by
// the scheduler.
type ItemDef struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	EffortDays float64  `yaml:"effort_days" json:"effort_days"`
	Start      string   `yaml:"start,omitempty" json:"start,omitempty"`
	Resources  []string `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// ToModel converts the definition into the domain type.
func (i ItemDef) ToModel() (model.WorkItem, error) {
	item := model.WorkItem{
		ID:          i.ID,
		Name:        i.Name,
		RawEffort:   i.EffortDays,
		ResourceIDs: i.Resources,
	}
	if i.Start != "" {
		t, err := time.Parse(DateLayout, i.Start)
		if err != nil {
			return model.WorkItem{}, fmt.Errorf("%w: item %s: bad start date %q", model.ErrInvalidInput, i.ID, i.Start)
		}
		item.RequestedStart = &t
	}
	return item, nil
}

// File is the full planning input.
type File struct {
	Resources []ResourceDef `yaml:"resources" json:"resources"`
	Items     []ItemDef     `yaml:"items" json:"items"`
}

// Load reads a plan from a JSON or YAML file.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var f File
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported plan format: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Decode reads from r to decode a plan in the given format.
func Decode(r io.Reader, format string) (*File, error) {
	var f File
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&f); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return &f, nil
}

// Models converts the file into domain items and resources, preserving input
// order.
func (f *File) Models() ([]model.WorkItem, []model.Resource, error) {
	items := make([]model.WorkItem, 0, len(f.Items))
	for _, def := range f.Items {
		item, err := def.ToModel()
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}
	resources := make([]model.Resource, 0, len(f.Resources))
	for _, def := range f.Resources {
		resources = append(resources, def.ToModel())
	}
	return items, resources, nil
}
