// Package cmd provides command-line interface commands for aegis.
package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"aegis/config"
	"aegis/core"
	"aegis/storage"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for rules commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

const (
	maxImportFileSize = 10 * 1024 * 1024 // 10MB
	maxListedRules    = 10000
)

// ruleSpec is the YAML representation of one correlation rule, as used by
// import and export files.
type ruleSpec struct {
	RuleName    string `yaml:"rule_name"`
	Keyword     string `yaml:"keyword"`
	Threshold   int    `yaml:"threshold"`
	Interval    string `yaml:"interval"` // Go duration string, e.g. "5m"
	Severity    string `yaml:"severity"`
	Description string `yaml:"description,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

// rulesFile is the top-level import/export document.
type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

func (spec *ruleSpec) toRule() (*core.CorrelationRule, error) {
	interval, err := time.ParseDuration(spec.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval %q: %w", spec.Interval, err)
	}

	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}

	rule := &core.CorrelationRule{
		RuleName:    spec.RuleName,
		Keyword:     spec.Keyword,
		Threshold:   spec.Threshold,
		Interval:    interval,
		Severity:    core.Severity(spec.Severity),
		Description: spec.Description,
		Enabled:     enabled,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func specFromRule(rule *core.CorrelationRule) ruleSpec {
	enabled := rule.Enabled
	return ruleSpec{
		RuleName:    rule.RuleName,
		Keyword:     rule.Keyword,
		Threshold:   rule.Threshold,
		Interval:    rule.Interval.String(),
		Severity:    string(rule.Severity),
		Description: rule.Description,
		Enabled:     &enabled,
	}
}

// validateFilePath rejects paths that traverse out of the working directory.
func validateFilePath(filename string) error {
	decoded, err := url.QueryUnescape(filename)
	if err != nil {
		decoded = filename
	}

	if strings.Contains(decoded, "..") || strings.Contains(filename, "..") {
		return fmt.Errorf("path traversal detected: '..' not allowed in file path")
	}

	cleanPath := filepath.Clean(decoded)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	if !strings.HasPrefix(absPath, workDir) {
		return fmt.Errorf("path escapes current directory")
	}

	return nil
}

// NewRulesCmd creates the root rules command with all subcommands.
func NewRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage correlation rules",
		Long: `Manage correlation rules including listing, enabling, and bulk import/export.

Correlation rules match incoming log events by keyword and raise a correlated
alert once a threshold of matches is seen inside a time window.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rulesCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rulesCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rulesCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	rulesCmd.AddCommand(newListCmd())
	rulesCmd.AddCommand(newShowCmd())
	rulesCmd.AddCommand(newEnableCmd())
	rulesCmd.AddCommand(newDisableCmd())
	rulesCmd.AddCommand(newDeleteCmd())
	rulesCmd.AddCommand(newImportCmd())
	rulesCmd.AddCommand(newExportCmd())

	return rulesCmd
}

// newListCmd creates the 'list' subcommand
func newListCmd() *cobra.Command {
	var showDisabled bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all correlation rules",
		Long:    "Display a table of all correlation rules with their parameters and status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			allRules, err := rules.GetRules(maxListedRules, 0)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if !showDisabled {
				filtered := make([]core.CorrelationRule, 0, len(allRules))
				for _, r := range allRules {
					if r.Enabled {
						filtered = append(filtered, r)
					}
				}
				allRules = filtered
			}

			if outputJSON {
				return outputAsJSON(allRules)
			}

			renderRulesTable(allRules)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDisabled, "all", false, "Show disabled rules")

	return cmd
}

// newShowCmd creates the 'show' subcommand
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show detailed rule information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			rules, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := rules.GetRule(id)
			if err != nil {
				return fmt.Errorf("failed to get rule: %w", err)
			}

			if outputJSON {
				return outputAsJSON(rule)
			}

			renderRuleDetails(rule)
			return nil
		},
	}
}

// newEnableCmd creates the 'enable' subcommand
func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <rule-id>",
		Short: "Enable a correlation rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRuleEnabled(args[0], true)
		},
	}
}

// newDisableCmd creates the 'disable' subcommand
func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a correlation rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRuleEnabled(args[0], false)
		},
	}
}

func setRuleEnabled(arg string, enabled bool) error {
	id, err := parseRuleID(arg)
	if err != nil {
		return err
	}

	rules, cleanup, err := initRuleStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	rule, err := rules.GetRule(id)
	if err != nil {
		return fmt.Errorf("failed to get rule: %w", err)
	}

	rule.Enabled = enabled
	if err := rules.UpdateRule(id, rule); err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	if !quiet {
		state := "enabled"
		if !enabled {
			state = "disabled"
		}
		successColor.Printf("✓ Rule %s: %s\n", state, rule.RuleName)
	}
	return nil
}

// newDeleteCmd creates the 'delete' subcommand
func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <rule-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a correlation rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			rules, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := rules.DeleteRule(id); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			if !quiet {
				successColor.Printf("✓ Rule %d deleted\n", id)
			}
			return nil
		},
	}
}

// newImportCmd creates the 'import' subcommand
func newImportCmd() *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules from YAML file",
		Long:  "Import multiple correlation rules from a YAML configuration file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			if err := validateFilePath(filename); err != nil {
				return fmt.Errorf("invalid file path: %w", err)
			}

			fileInfo, err := os.Stat(filename)
			if err != nil {
				return fmt.Errorf("failed to stat file: %w", err)
			}
			if fileInfo.Size() > maxImportFileSize {
				return fmt.Errorf("file too large: maximum size is %d MB, got %d bytes",
					maxImportFileSize/(1024*1024), fileInfo.Size())
			}

			data, err := os.ReadFile(filename)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			var doc rulesFile
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse YAML: %w", err)
			}

			rules, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			var s *spinner.Spinner
			if showProgress && !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " Importing rules..."
				s.Start()
			}

			imported := 0
			failed := 0
			for _, spec := range doc.Rules {
				rule, err := spec.toRule()
				if err != nil {
					if s != nil {
						s.Stop()
						s = nil
					}
					errorColor.Printf("✗ Skipping rule %q: %v\n", spec.RuleName, err)
					failed++
					continue
				}

				if err := rules.CreateRule(rule); err != nil {
					if s != nil {
						s.Stop()
						s = nil
					}
					errorColor.Printf("✗ Failed to import rule %q: %v\n", spec.RuleName, err)
					failed++
					continue
				}
				imported++
			}

			if s != nil {
				s.Stop()
			}

			if !quiet {
				fmt.Printf("Imported %d rules, %d failed\n", imported, failed)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rules failed to import", failed, imported+failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress indicator")

	return cmd
}

// newExportCmd creates the 'export' subcommand
func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export rules to YAML file",
		Long:  "Export all correlation rules to a YAML file. If no file is specified, output to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			allRules, err := rules.GetRules(maxListedRules, 0)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			doc := rulesFile{Rules: make([]ruleSpec, 0, len(allRules))}
			for i := range allRules {
				doc.Rules = append(doc.Rules, specFromRule(&allRules[i]))
			}

			data, err := yaml.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to marshal YAML: %w", err)
			}

			if len(args) > 0 {
				filename := args[0]
				if err := validateFilePath(filename); err != nil {
					return fmt.Errorf("invalid file path: %w", err)
				}
				if err := os.WriteFile(filename, data, 0644); err != nil {
					return fmt.Errorf("failed to write file: %w", err)
				}
				if !quiet {
					successColor.Printf("✓ Exported %d rules to %s\n", len(allRules), filename)
				}
			} else {
				fmt.Print(string(data))
			}

			return nil
		},
	}
}

func parseRuleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", arg)
	}
	return id, nil
}

// initRuleStorage opens the configured database and returns the rule storage
// with a cleanup function.
func initRuleStorage() (storage.RuleStorageInterface, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar := logger.Sugar()

	sqlite, err := storage.NewSQLite(cfg.Storage.SQLitePath, sugar)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cleanup := func() {
		sqlite.Close()
		logger.Sync()
	}
	return storage.NewSQLiteRuleStorage(sqlite, sugar), cleanup, nil
}
