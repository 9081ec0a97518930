// Package catalog holds the read-only recovery programs: for every surgery
// type and program day, the ordered list of task templates.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sync"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// BuiltinSource names the embedded catalog in logs and listings
const BuiltinSource = "builtin"

// File is the YAML layout of a catalog file
type File struct {
	Version  int                              `yaml:"version"`
	Programs map[recovery.SurgeryType]Program `yaml:"programs"`
}

// Program is the phase list of one surgery type
type Program struct {
	Phases []Phase `yaml:"phases"`
}

// Phase applies its tasks to every day in [From, To]
type Phase struct {
	Name  string                  `yaml:"name"`
	From  int                     `yaml:"from"`
	To    int                     `yaml:"to"`
	Tasks []recovery.TaskTemplate `yaml:"tasks"`
}

// keyPattern restricts explicit task keys. The leading letter keeps them
// apart from positional sequence numbers.
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,47}$`)

// days indexes templates by surgery type; element i holds day i+1
type days map[recovery.SurgeryType][][]recovery.TaskTemplate

// Catalog serves task templates. It is safe for concurrent use and can be
// swapped atomically by Reload.
type Catalog struct {
	mu     sync.RWMutex
	days   days
	source string
}

// Default returns the built-in catalog
func Default() (*Catalog, error) {
	d, err := parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("builtin catalog: %w", err)
	}
	return &Catalog{days: d, source: BuiltinSource}, nil
}

// Parse builds a catalog from YAML data
func Parse(data []byte) (*Catalog, error) {
	d, err := parse(data)
	if err != nil {
		return nil, err
	}
	return &Catalog{days: d}, nil
}

// Load reads the catalog at path, or the built-in one when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	d, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return &Catalog{days: d, source: path}, nil
}

func readFile(path string) (days, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parse(data)
}

// Reload replaces the catalog with the contents of path. On error the
// current catalog stays in place.
func (c *Catalog) Reload(path string) error {
	d, err := readFile(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.days = d
	c.source = path
	c.mu.Unlock()
	return nil
}

// Source returns the file the catalog was loaded from, or BuiltinSource
func (c *Catalog) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Templates returns the templates for one day in sequence order. A day no
// phase covers has no templates.
func (c *Catalog) Templates(ctx context.Context, surgeryType recovery.SurgeryType, day int) ([]recovery.TaskTemplate, error) {
	if !surgeryType.Valid() {
		return nil, apperrors.Invalid(apperrors.ErrInvalidSurgeryType, "unknown surgery type %q", surgeryType)
	}
	if !recovery.ValidDay(day) {
		return nil, apperrors.Invalid(apperrors.ErrInvalidDay, "day %d is outside 1..%d", day, recovery.ProgramLength)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	program := c.days[surgeryType]
	if program == nil {
		return []recovery.TaskTemplate{}, nil
	}
	out := make([]recovery.TaskTemplate, len(program[day-1]))
	copy(out, program[day-1])
	return out, nil
}

// parse decodes and validates a catalog file and expands its phases into
// per-day template lists.
func parse(data []byte) (days, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCatalogInvalid, "failed to parse catalog")
	}
	if len(f.Programs) == 0 {
		return nil, apperrors.Invalid(apperrors.ErrCatalogInvalid, "catalog defines no programs")
	}

	out := make(days, len(f.Programs))
	for surgeryType, program := range f.Programs {
		if !surgeryType.Valid() {
			return nil, apperrors.Invalid(apperrors.ErrCatalogInvalid, "unknown surgery type %q", surgeryType)
		}

		byDay := make([][]recovery.TaskTemplate, recovery.ProgramLength)
		seen := make([]map[string]bool, recovery.ProgramLength)
		for i, phase := range program.Phases {
			if err := validatePhase(surgeryType, i, phase); err != nil {
				return nil, err
			}
			for day := phase.From; day <= phase.To; day++ {
				if seen[day-1] == nil {
					seen[day-1] = make(map[string]bool)
				}
				for _, task := range phase.Tasks {
					seq := len(byDay[day-1]) + 1
					if task.Key != "" {
						if seen[day-1][task.Key] {
							return nil, apperrors.Invalid(apperrors.ErrCatalogInvalid, "%s day %d: duplicate task key %q", surgeryType, day, task.Key)
						}
						seen[day-1][task.Key] = true
						task.Key = NamedTemplateKey(surgeryType, day, task.Key)
					} else {
						task.Key = TemplateKey(surgeryType, day, seq)
					}
					task.SurgeryType = surgeryType
					task.DayNumber = day
					task.Sequence = seq
					byDay[day-1] = append(byDay[day-1], task)
				}
			}
		}
		out[surgeryType] = byDay
	}
	return out, nil
}

func validatePhase(surgeryType recovery.SurgeryType, index int, p Phase) error {
	where := fmt.Sprintf("%s phase %d", surgeryType, index+1)
	if p.Name != "" {
		where = fmt.Sprintf("%s phase %q", surgeryType, p.Name)
	}

	if !recovery.ValidDay(p.From) || !recovery.ValidDay(p.To) || p.From > p.To {
		return apperrors.Invalid(apperrors.ErrCatalogInvalid, "%s: day range [%d, %d] is outside 1..%d", where, p.From, p.To, recovery.ProgramLength)
	}
	for i, t := range p.Tasks {
		switch {
		case t.Title == "":
			return apperrors.Invalid(apperrors.ErrCatalogInvalid, "%s task %d: title is required", where, i+1)
		case !t.Category.Valid():
			return apperrors.Invalid(apperrors.ErrCatalogInvalid, "%s task %d: unknown category %q", where, i+1, t.Category)
		case t.DifficultyLevel < 1 || t.DifficultyLevel > 5:
			return apperrors.Invalid(apperrors.ErrCatalogInvalid, "%s task %d: difficulty %d is outside 1..5", where, i+1, t.DifficultyLevel)
		case t.EstimatedDurationMinutes < 0:
			return apperrors.Invalid(apperrors.ErrCatalogInvalid, "%s task %d: negative duration", where, i+1)
		case t.Key != "" && !keyPattern.MatchString(t.Key):
			return apperrors.Invalid(apperrors.ErrCatalogInvalid, "%s task %d: key %q must match %s", where, i+1, t.Key, keyPattern)
		}
	}
	return nil
}

// TemplateKey builds the key of the seq-th template of a day. It shifts when
// a reload inserts a task ahead of it; give the task an explicit key to pin it.
func TemplateKey(surgeryType recovery.SurgeryType, day, seq int) string {
	return fmt.Sprintf("%s-d%d-%02d", surgeryType, day, seq)
}

// NamedTemplateKey builds the key of a template carrying an explicit key
func NamedTemplateKey(surgeryType recovery.SurgeryType, day int, name string) string {
	return fmt.Sprintf("%s-d%d-%s", surgeryType, day, name)
}
