package cmd

import (
	"testing"
	"time"

	"aegis/core"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewRulesCmd tests the creation of the rules command
func TestNewRulesCmd(t *testing.T) {
	cmd := NewRulesCmd()
	assert.NotNil(t, cmd)
	assert.Equal(t, "rules", cmd.Use)
	assert.True(t, len(cmd.Commands()) > 0, "Should have subcommands")
}

// TestRulesCommandStructure tests the command hierarchy
func TestRulesCommandStructure(t *testing.T) {
	cmd := NewRulesCmd()

	expectedCommands := []string{
		"list", "show", "enable", "disable", "delete", "import", "export",
	}

	actualCommands := make(map[string]bool)
	for _, subCmd := range cmd.Commands() {
		actualCommands[subCmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		assert.True(t, actualCommands[expected], "Missing command: %s", expected)
	}
}

// TestRulesCommandFlags tests persistent flags
func TestRulesCommandFlags(t *testing.T) {
	cmd := NewRulesCmd()

	assert.NotNil(t, cmd.PersistentFlags().Lookup("json"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("quiet"))
}

func TestListCommandFlags(t *testing.T) {
	cmd := NewRulesCmd()
	listCmd := findCommand(cmd, "list")
	require.NotNil(t, listCmd)

	assert.NotNil(t, listCmd.Flags().Lookup("all"))
}

func findCommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple file", "rules.yaml", false},
		{"subdirectory", "exports/rules.yaml", false},
		{"parent traversal", "../rules.yaml", true},
		{"embedded traversal", "exports/../../rules.yaml", true},
		{"encoded traversal", "%2e%2e%2frules.yaml", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateFilePath(tc.path)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleSpecToRule(t *testing.T) {
	enabled := false
	spec := ruleSpec{
		RuleName:  "brute force",
		Keyword:   "failed password",
		Threshold: 5,
		Interval:  "5m",
		Severity:  "high",
		Enabled:   &enabled,
	}

	rule, err := spec.toRule()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, rule.Interval)
	assert.Equal(t, core.SeverityHigh, rule.Severity)
	assert.False(t, rule.Enabled)
}

func TestRuleSpecToRule_EnabledDefaultsTrue(t *testing.T) {
	spec := ruleSpec{
		RuleName:  "brute force",
		Keyword:   "failed password",
		Threshold: 5,
		Interval:  "5m",
		Severity:  "high",
	}

	rule, err := spec.toRule()
	require.NoError(t, err)
	assert.True(t, rule.Enabled)
}

func TestRuleSpecToRule_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec ruleSpec
	}{
		{"bad interval", ruleSpec{RuleName: "r", Keyword: "k", Threshold: 1, Interval: "soon", Severity: "low"}},
		{"zero threshold", ruleSpec{RuleName: "r", Keyword: "k", Threshold: 0, Interval: "5m", Severity: "low"}},
		{"bad severity", ruleSpec{RuleName: "r", Keyword: "k", Threshold: 1, Interval: "5m", Severity: "urgent"}},
		{"empty keyword", ruleSpec{RuleName: "r", Keyword: "", Threshold: 1, Interval: "5m", Severity: "low"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.spec.toRule()
			assert.Error(t, err)
		})
	}
}

func TestRulesFileRoundTrip(t *testing.T) {
	rule := &core.CorrelationRule{
		ID:          7,
		RuleName:    "brute force",
		Keyword:     "failed password",
		Threshold:   5,
		Interval:    5 * time.Minute,
		Severity:    core.SeverityHigh,
		Description: "repeated password failures",
		Enabled:     true,
	}

	doc := rulesFile{Rules: []ruleSpec{specFromRule(rule)}}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	var parsed rulesFile
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Len(t, parsed.Rules, 1)

	restored, err := parsed.Rules[0].toRule()
	require.NoError(t, err)
	assert.Equal(t, rule.RuleName, restored.RuleName)
	assert.Equal(t, rule.Interval, restored.Interval)
	assert.Equal(t, rule.Severity, restored.Severity)
	assert.True(t, restored.Enabled)
}

func TestParseRuleID(t *testing.T) {
	id, err := parseRuleID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseRuleID("abc")
	assert.Error(t, err)

	_, err = parseRuleID("0")
	assert.Error(t, err)
}
