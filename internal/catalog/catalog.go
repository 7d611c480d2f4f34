// Package catalog provides the data-driven onboarding catalog for BrandOS.
//
// The catalog is an embedded YAML document holding the labels of every wizard screen and the
// ordered question set of each flow variant. The questionnaire tracker and every renderer
// consult the same parsed catalog.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/BTreeMap/BrandOS/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// FieldKind is the input widget used for a questionnaire field.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldTextarea FieldKind = "textarea"
	FieldSelect   FieldKind = "select"
	FieldRadio    FieldKind = "radio"
)

// Field describes one questionnaire input.
type Field struct {
	Name        string    `yaml:"name" json:"name"`
	Label       string    `yaml:"label" json:"label"`
	Kind        FieldKind `yaml:"kind" json:"kind"`
	Placeholder string    `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Options     []string  `yaml:"options,omitempty" json:"options,omitempty"`
}

// Step is one page of a questionnaire.
type Step struct {
	Title  string  `yaml:"title" json:"title"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// CompanyOption is a company-type card.
type CompanyOption struct {
	Type     models.CompanyType `yaml:"type" json:"type"`
	Title    string             `yaml:"title" json:"title"`
	Subtitle string             `yaml:"subtitle" json:"subtitle"`
}

// StageOption is a company-stage card.
type StageOption struct {
	Stage       models.CompanyStage `yaml:"stage" json:"stage"`
	Title       string              `yaml:"title" json:"title"`
	Description string              `yaml:"description" json:"description"`
}

// FlowOption is a flow-variant card.
type FlowOption struct {
	Type        models.FlowType `yaml:"type" json:"type"`
	Title       string          `yaml:"title" json:"title"`
	Description string          `yaml:"description" json:"description"`
	Detail      string          `yaml:"detail" json:"detail"`
}

// PlanOption is a pricing card.
type PlanOption struct {
	Type     models.PlanType `yaml:"type" json:"type"`
	Name     string          `yaml:"name" json:"name"`
	Price    string          `yaml:"price" json:"price"`
	Amount   int             `yaml:"amount" json:"amount"`
	Period   string          `yaml:"period" json:"period"`
	Tag      string          `yaml:"tag,omitempty" json:"tag,omitempty"`
	Features []string        `yaml:"features" json:"features"`
}

// Catalog is the parsed onboarding catalog.
type Catalog struct {
	Companies      []CompanyOption                      `yaml:"companies" json:"companies"`
	Stages         map[models.CompanyType][]StageOption `yaml:"stages" json:"stages"`
	Flows          []FlowOption                         `yaml:"flows" json:"flows"`
	Plans          []PlanOption                         `yaml:"plans" json:"plans"`
	StepLibrary    map[string]Step                      `yaml:"steps" json:"-"`
	Questionnaires map[models.FlowType][]Step           `yaml:"questionnaires" json:"questionnaires"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Load parses the embedded catalog once and returns the cached result.
func Load() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embeddedCatalog)
		if defaultErr != nil {
			slog.Error("catalog Load failed", "error", defaultErr)
		}
	})
	return defaultCatalog, defaultErr
}

// Default returns the embedded catalog. It panics if the embedded document is invalid,
// which the package tests rule out.
func Default() *Catalog {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadFile parses a catalog document from disk, replacing the embedded one.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	slog.Info("catalog loaded from file", "path", path)
	return c, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("catalog parsed", "companies", len(c.Companies), "flows", len(c.Flows), "plans", len(c.Plans))
	return &c, nil
}

// Validate checks that every flow has a question set with uniquely named fields and that
// every stage card sits under its owning company type.
func (c *Catalog) Validate() error {
	var errs []error
	for _, ft := range models.AllFlowTypes() {
		steps := c.Questionnaires[ft]
		if len(steps) == 0 {
			errs = append(errs, fmt.Errorf("flow %q has no questionnaire steps", ft))
			continue
		}
		seen := make(map[string]bool)
		for i, st := range steps {
			if len(st.Fields) == 0 {
				errs = append(errs, fmt.Errorf("flow %q step %d has no fields", ft, i+1))
			}
			for _, f := range st.Fields {
				if f.Name == "" {
					errs = append(errs, fmt.Errorf("flow %q step %d has an unnamed field", ft, i+1))
					continue
				}
				if seen[f.Name] {
					errs = append(errs, fmt.Errorf("flow %q repeats field %q", ft, f.Name))
				}
				seen[f.Name] = true
				if (f.Kind == FieldSelect || f.Kind == FieldRadio) && len(f.Options) == 0 {
					errs = append(errs, fmt.Errorf("flow %q field %q needs options", ft, f.Name))
				}
			}
		}
	}
	for ct, stages := range c.Stages {
		for _, s := range stages {
			if !s.Stage.BelongsTo(ct) {
				errs = append(errs, fmt.Errorf("stage %q listed under %q: %w", s.Stage, ct, models.ErrStageOwnerMismatch))
			}
		}
	}
	for _, p := range c.Plans {
		if !p.Type.Valid() {
			errs = append(errs, fmt.Errorf("plan card: %w: %q", models.ErrUnknownPlanType, p.Type))
		}
	}
	return errors.Join(errs...)
}

// Steps returns the ordered question set of ft. An unset flow uses the complete set.
func (c *Catalog) Steps(ft models.FlowType) []Step {
	if ft == models.FlowTypeUnset {
		ft = models.FlowTypeCompleto
	}
	return c.Questionnaires[ft]
}

// TotalSteps returns the number of questionnaire steps of ft.
func (c *Catalog) TotalSteps(ft models.FlowType) int {
	return len(c.Steps(ft))
}

// Step returns the 1-based step n of ft.
func (c *Catalog) Step(ft models.FlowType, n int) (Step, bool) {
	steps := c.Steps(ft)
	if n < 1 || n > len(steps) {
		return Step{}, false
	}
	return steps[n-1], true
}

// FieldNames lists every field asked by ft, in order.
func (c *Catalog) FieldNames(ft models.FlowType) []string {
	var names []string
	for _, st := range c.Steps(ft) {
		for _, f := range st.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}

// StagesFor returns the stage cards of ct.
func (c *Catalog) StagesFor(ct models.CompanyType) []StageOption {
	return c.Stages[ct]
}

// StageLabel returns the display title of a stage, or "" when unknown.
func (c *Catalog) StageLabel(stage models.CompanyStage) string {
	for _, s := range c.Stages[stage.Owner()] {
		if s.Stage == stage {
			return s.Title
		}
	}
	return ""
}

// CompanyLabel returns the display title of a company type.
func (c *Catalog) CompanyLabel(ct models.CompanyType) string {
	for _, co := range c.Companies {
		if co.Type == ct {
			return co.Title
		}
	}
	return ""
}

// Flow returns the card of ft.
func (c *Catalog) Flow(ft models.FlowType) (FlowOption, bool) {
	for _, f := range c.Flows {
		if f.Type == ft {
			return f, true
		}
	}
	return FlowOption{}, false
}

// Plan returns the card of pt.
func (c *Catalog) Plan(pt models.PlanType) (PlanOption, bool) {
	for _, p := range c.Plans {
		if p.Type == pt {
			return p, true
		}
	}
	return PlanOption{}, false
}
