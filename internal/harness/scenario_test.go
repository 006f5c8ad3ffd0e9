package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "specs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "specs", "views.cue"), []byte(`view: Shelf: generator: predicate: "ex:holds"`), 0644))

	content := `
name: test_scenario
description: "Test scenario for validation"
namespaces:
  ex: http://example.org/
specs:
  - specs/views.cue
steps:
  - entity: ex:dune
    as: dune
  - set: { target: dune, key: "ex:title", value: Dune }
assertions:
  - type: attribute
    target: dune
    key: ex:title
    value: Dune
`
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "http://example.org/", scenario.Namespaces["ex"])
	assert.Equal(t, []string{filepath.Join(dir, "specs", "views.cue")}, scenario.Specs)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "dune", scenario.Steps[0].As)
	assert.Equal(t, &SetStep{Target: "dune", Key: "ex:title", Value: "Dune"}, scenario.Steps[1].Set)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: d
step:
  - execute: 'INSERT DATA { <a> <b> <c> . }'
`), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	const header = "name: s\ndescription: d\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nsteps: [{destroy: x}]\n", "name is required"},
		{"missing description", "name: s\nsteps: [{destroy: x}]\n", "description is required"},
		{"no steps", header, "steps list is required"},
		{"empty step", header + "steps: [{as: x}]\n", "no operation"},
		{"two operations", header + "steps: [{entity: 'ex:a', destroy: a}]\n", "several operations"},
		{"set without key", header + "steps: [{set: {target: a}}]\n", "set needs target and key"},
		{"unset without keys", header + "steps: [{unset: {target: a}}]\n", "unset needs target and keys"},
		{"view without pattern", header + "steps: [{view: {uri: 'ex:v'}}]\n", "view needs name, query or generator"},
		{"view query and generator", header + "steps: [{view: {query: 'SELECT ?id WHERE { ?id <p> ?o }', generator: {predicate: 'ex:p'}}}]\n", "mutually exclusive"},
		{"add without target", header + "steps: [{add: {members: [a]}}]\n", "add needs a target"},
		{"remove without target", header + "steps: [{remove: {members: [a]}}]\n", "remove needs a target"},
		{"missing spec", header + "specs: [/nonexistent/views.cue]\nsteps: [{destroy: x}]\n", "spec file not found"},
		{"assertion without type", header + "steps: [{destroy: x}]\nassertions: [{target: a}]\n", "type is required"},
		{"unknown assertion", header + "steps: [{destroy: x}]\nassertions: [{type: trace_order}]\n", "unknown assertion type"},
		{"attribute without key", header + "steps: [{destroy: x}]\nassertions: [{type: attribute, target: a}]\n", "target and key are required"},
		{"value and absent", header + "steps: [{destroy: x}]\nassertions: [{type: attribute, target: a, key: k, value: 1, absent: true}]\n", "mutually exclusive"},
		{"membership without target", header + "steps: [{destroy: x}]\nassertions: [{type: membership}]\n", "target is required"},
		{"query_count without query", header + "steps: [{destroy: x}]\nassertions: [{type: query_count, count: 1}]\n", "query is required"},
		{"event_count without event", header + "steps: [{destroy: x}]\nassertions: [{type: event_count}]\n", "event is required"},
		{"negative count", header + "steps: [{destroy: x}]\nassertions: [{type: event_count, event: add, count: -1}]\n", "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStep_Op(t *testing.T) {
	tests := []struct {
		step Step
		want string
	}{
		{Step{Execute: "INSERT DATA { <a> <b> <c> . }"}, OpExecute},
		{Step{Entity: "ex:a"}, OpEntity},
		{Step{NewEntity: map[string]any{}}, OpNewEntity},
		{Step{Set: &SetStep{}}, OpSet},
		{Step{Unset: &UnsetStep{}}, OpUnset},
		{Step{View: &ViewStep{}}, OpView},
		{Step{Add: &MembersStep{}}, OpAdd},
		{Step{Remove: &MembersStep{}}, OpRemove},
		{Step{Destroy: "a"}, OpDestroy},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			op, err := tt.step.Op()
			require.NoError(t, err)
			assert.Equal(t, tt.want, op)
		})
	}
}
