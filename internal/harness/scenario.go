package harness

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Scenario defines a binding scenario: a sequence of steps against a fresh
// store followed by assertions on the resulting state and event trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Namespaces registers prefix → namespace URI pairs before any step.
	Namespaces map[string]string `yaml:"namespaces,omitempty"`

	// Specs lists CUE files whose namespaces and views the steps may use.
	// Relative paths resolve against the scenario file's directory.
	Specs []string `yaml:"specs,omitempty"`

	// ModifyMode selects how attribute updates are written ("atomic" or
	// "two-phase"). Empty means atomic.
	ModifyMode string `yaml:"modify_mode,omitempty"`

	// Steps run in order. A step that fails without expect_error stops the run.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Exactly one operation field is set; As names the
// entity or view it binds so later steps and assertions can refer to it.
type Step struct {
	Execute   string         `yaml:"execute,omitempty"`
	Entity    string         `yaml:"entity,omitempty"`
	NewEntity map[string]any `yaml:"new_entity,omitempty"`
	Set       *SetStep       `yaml:"set,omitempty"`
	Unset     *UnsetStep     `yaml:"unset,omitempty"`
	View      *ViewStep      `yaml:"view,omitempty"`
	Add       *MembersStep   `yaml:"add,omitempty"`
	Remove    *MembersStep   `yaml:"remove,omitempty"`
	Destroy   string         `yaml:"destroy,omitempty"`

	// As is the alias for the entity or view bound by this step.
	As string `yaml:"as,omitempty"`

	// ExpectError makes the step pass only if it fails with this binding
	// error code (e.g. READ_ONLY_MUTATION) or a message containing it.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SetStep writes one attribute.
type SetStep struct {
	Target string `yaml:"target"`
	Key    string `yaml:"key"`
	Value  any    `yaml:"value"`
}

// UnsetStep removes attributes.
type UnsetStep struct {
	Target string   `yaml:"target"`
	Keys   []string `yaml:"keys"`
}

// ViewStep binds a view, either by the name of a declared view or from an
// inline query or generator.
type ViewStep struct {
	Name       string         `yaml:"name,omitempty"`
	URI        string         `yaml:"uri,omitempty"`
	Query      string         `yaml:"query,omitempty"`
	Generator  map[string]any `yaml:"generator,omitempty"`
	Order      string         `yaml:"order,omitempty"`
	Limit      int            `yaml:"limit,omitempty"`
	Offset     int            `yaml:"offset,omitempty"`
	IDVariable string         `yaml:"id_variable,omitempty"`
	Members    []any          `yaml:"members,omitempty"`
}

// MembersStep adds or removes view members. A member is an alias, a URI or
// CURIE, or an attribute map for a new entity.
type MembersStep struct {
	Target  string `yaml:"target"`
	Members []any  `yaml:"members"`
}

// Step operations.
const (
	OpExecute   = "execute"
	OpEntity    = "entity"
	OpNewEntity = "new_entity"
	OpSet       = "set"
	OpUnset     = "unset"
	OpView      = "view"
	OpAdd       = "add"
	OpRemove    = "remove"
	OpDestroy   = "destroy"
)

// Op returns the step's operation, or an error unless exactly one is set.
func (s *Step) Op() (string, error) {
	var ops []string
	if s.Execute != "" {
		ops = append(ops, OpExecute)
	}
	if s.Entity != "" {
		ops = append(ops, OpEntity)
	}
	if s.NewEntity != nil {
		ops = append(ops, OpNewEntity)
	}
	if s.Set != nil {
		ops = append(ops, OpSet)
	}
	if s.Unset != nil {
		ops = append(ops, OpUnset)
	}
	if s.View != nil {
		ops = append(ops, OpView)
	}
	if s.Add != nil {
		ops = append(ops, OpAdd)
	}
	if s.Remove != nil {
		ops = append(ops, OpRemove)
	}
	if s.Destroy != "" {
		ops = append(ops, OpDestroy)
	}
	switch len(ops) {
	case 0:
		return "", errors.New("no operation")
	case 1:
		return ops[0], nil
	default:
		return "", errors.Newf("several operations %v", ops)
	}
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type is one of attribute, membership, query_count, event_count.
	Type string `yaml:"type"`

	// Target is an alias (attribute, membership, and optionally event_count).
	Target string `yaml:"target,omitempty"`

	// Key and Value describe the expected attribute. Absent expects the key
	// to be unset.
	Key    string `yaml:"key,omitempty"`
	Value  any    `yaml:"value,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`

	// Members are the expected view members in order (aliases or URIs).
	Members []string `yaml:"members,omitempty"`

	// Query is a SELECT whose row count is compared with Count.
	Query string `yaml:"query,omitempty"`

	// Event is the event name counted by event_count.
	Event string `yaml:"event,omitempty"`

	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAttribute  = "attribute"
	AssertMembership = "membership"
	AssertQueryCount = "query_count"
	AssertEventCount = "event_count"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths resolve
// against the file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving relative spec paths
// against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return errors.Newf("spec file not found: %s", specPath)
		}
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	op, err := s.Op()
	if err != nil {
		return errors.Wrapf(err, "steps[%d]", index)
	}
	switch op {
	case OpSet:
		if s.Set.Target == "" || s.Set.Key == "" {
			return errors.Newf("steps[%d]: set needs target and key", index)
		}
	case OpUnset:
		if s.Unset.Target == "" || len(s.Unset.Keys) == 0 {
			return errors.Newf("steps[%d]: unset needs target and keys", index)
		}
	case OpView:
		v := s.View
		if v.Name == "" && v.Query == "" && v.Generator == nil {
			return errors.Newf("steps[%d]: view needs name, query or generator", index)
		}
		if v.Query != "" && v.Generator != nil {
			return errors.Newf("steps[%d]: view query and generator are mutually exclusive", index)
		}
	case OpAdd:
		if s.Add.Target == "" {
			return errors.Newf("steps[%d]: add needs a target", index)
		}
	case OpRemove:
		if s.Remove.Target == "" {
			return errors.Newf("steps[%d]: remove needs a target", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return errors.Newf("assertions[%d]: type is required", index)
	case AssertAttribute:
		if a.Target == "" || a.Key == "" {
			return errors.Newf("assertions[%d]: target and key are required for attribute", index)
		}
		if a.Absent && a.Value != nil {
			return errors.Newf("assertions[%d]: value and absent are mutually exclusive", index)
		}
	case AssertMembership:
		if a.Target == "" {
			return errors.Newf("assertions[%d]: target is required for membership", index)
		}
	case AssertQueryCount:
		if a.Query == "" {
			return errors.Newf("assertions[%d]: query is required for query_count", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return errors.Newf("assertions[%d]: event is required for event_count", index)
		}
	default:
		return errors.Newf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return errors.Newf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
