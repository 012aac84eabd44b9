// Package catalog holds the standard process templates, one per deal type.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fentz26/dealflow/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var defaultTemplates embed.FS

// SchemaConstraint is the range of template file versions this build understands.
const SchemaConstraint = "^1"

// ErrUnknownDealType is returned when no template set is configured for a deal type.
var ErrUnknownDealType = fmt.Errorf("%w: no template for deal type", models.ErrNotFound)

// Catalog is a read-only collection of phase definitions and task templates.
type Catalog struct {
	sets map[models.DealType]*templateSet
}

type templateSet struct {
	phases []models.PhaseDefinition
	tasks  []models.TaskTemplate
	byKey  map[string]models.PhaseDefinition
}

type templateFile struct {
	SchemaVersion string      `yaml:"schema_version"`
	DealType      string      `yaml:"deal_type"`
	Phases        []phaseFile `yaml:"phases"`
}

type phaseFile struct {
	models.PhaseDefinition `yaml:",inline"`
	Tasks                  []models.TaskTemplate `yaml:"tasks"`
}

// New returns an empty catalog. Use Add to register template sets.
func New() *Catalog {
	return &Catalog{sets: make(map[models.DealType]*templateSet)}
}

// Default loads the templates compiled into the binary.
func Default() (*Catalog, error) {
	return Load(defaultTemplates, "templates/*.yaml")
}

// LoadDir loads every *.yaml file in dir, falling back to the built-in
// templates for deal types the directory does not define.
func LoadDir(dir string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	override, err := Load(os.DirFS(dir), "*.yaml")
	if err != nil {
		return nil, err
	}
	for dt, set := range override.sets {
		c.sets[dt] = set
	}
	return c, nil
}

// Load parses all files in fsys matching pattern.
func Load(fsys fs.FS, pattern string) (*Catalog, error) {
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}
	sort.Strings(matches)

	c := New()
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if err := c.parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
	}
	return c, nil
}

func (c *Catalog) parse(data []byte) error {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode template: %w", err)
	}
	if err := checkSchema(f.SchemaVersion); err != nil {
		return err
	}
	dt, err := models.ParseDealType(f.DealType)
	if err != nil {
		return err
	}

	phases := make([]models.PhaseDefinition, 0, len(f.Phases))
	var tasks []models.TaskTemplate
	for i, p := range f.Phases {
		def := p.PhaseDefinition
		if def.Order == 0 {
			def.Order = i + 1
		}
		phases = append(phases, def)
		for _, t := range p.Tasks {
			t.Phase = def.Name
			tasks = append(tasks, t)
		}
	}
	return c.Add(dt, phases, tasks)
}

func checkSchema(v string) error {
	if v == "" {
		return fmt.Errorf("%w: schema_version is required", models.ErrValidation)
	}
	version, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: schema_version %q: %v", models.ErrValidation, v, err)
	}
	constraint, err := semver.NewConstraint(SchemaConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(version) {
		return fmt.Errorf("%w: schema_version %s does not satisfy %s", models.ErrValidation, v, SchemaConstraint)
	}
	return nil
}

// Add registers (or replaces) the template set for a deal type after validating it.
// Task templates without an explicit order are numbered in catalog order.
func (c *Catalog) Add(dt models.DealType, phases []models.PhaseDefinition, tasks []models.TaskTemplate) error {
	set := &templateSet{
		phases: append([]models.PhaseDefinition(nil), phases...),
		byKey:  make(map[string]models.PhaseDefinition, len(phases)),
	}
	sort.SliceStable(set.phases, func(i, j int) bool { return set.phases[i].Order < set.phases[j].Order })

	for _, p := range set.phases {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: phase name is required", models.ErrValidation)
		}
		key := PhaseKey(p.Name)
		if _, dup := set.byKey[key]; dup {
			return fmt.Errorf("%w: duplicate phase %q", models.ErrValidation, p.Name)
		}
		set.byKey[key] = p
	}

	// Keep tasks grouped by phase order, stable within a phase.
	rank := make(map[string]int, len(set.phases))
	for i, p := range set.phases {
		rank[PhaseKey(p.Name)] = i
	}
	set.tasks = make([]models.TaskTemplate, 0, len(tasks))
	for _, t := range tasks {
		key := PhaseKey(t.Phase)
		def, ok := set.byKey[key]
		if !ok {
			return fmt.Errorf("%w: task %q references unknown phase %q", models.ErrValidation, t.Title, t.Phase)
		}
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%w: task title is required in phase %q", models.ErrValidation, t.Phase)
		}
		t.DealType = dt
		t.Phase = def.Name
		t.Workstream = models.NormalizeWorkstream(string(t.Workstream))
		set.tasks = append(set.tasks, t)
	}
	sort.SliceStable(set.tasks, func(i, j int) bool {
		return rank[PhaseKey(set.tasks[i].Phase)] < rank[PhaseKey(set.tasks[j].Phase)]
	})
	for i := range set.tasks {
		if set.tasks[i].Order == 0 {
			set.tasks[i].Order = i + 1
		}
	}

	c.sets[dt] = set
	return nil
}

func (c *Catalog) set(dt models.DealType) (*templateSet, error) {
	set, ok := c.sets[dt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDealType, dt)
	}
	return set, nil
}

// DealTypes returns the configured deal types, sorted.
func (c *Catalog) DealTypes() []models.DealType {
	out := make([]models.DealType, 0, len(c.sets))
	for dt := range c.sets {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ListPhases returns the phase definitions for a deal type in display order.
func (c *Catalog) ListPhases(dt models.DealType) ([]models.PhaseDefinition, error) {
	set, err := c.set(dt)
	if err != nil {
		return nil, err
	}
	return append([]models.PhaseDefinition(nil), set.phases...), nil
}

// ListTaskTemplates returns the task templates for a deal type in catalog order.
func (c *Catalog) ListTaskTemplates(dt models.DealType) ([]models.TaskTemplate, error) {
	set, err := c.set(dt)
	if err != nil {
		return nil, err
	}
	return append([]models.TaskTemplate(nil), set.tasks...), nil
}

// MatchPhase resolves a free-form phase name to its definition, ignoring
// case, accents and Unicode composition differences.
func (c *Catalog) MatchPhase(dt models.DealType, name string) (models.PhaseDefinition, bool) {
	set, ok := c.sets[dt]
	if !ok {
		return models.PhaseDefinition{}, false
	}
	def, ok := set.byKey[PhaseKey(name)]
	return def, ok
}
