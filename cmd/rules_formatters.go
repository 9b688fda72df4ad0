package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"aegis/core"
)

// outputAsJSON prints any value as indented JSON to stdout.
func outputAsJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// renderRulesTable displays rules in a formatted table
func renderRulesTable(rules []core.CorrelationRule) {
	if len(rules) == 0 {
		warningColor.Println("No correlation rules configured")
		return
	}

	headerColor.Println("CORRELATION RULES")
	headerColor.Println(strings.Repeat("=", 100))
	fmt.Printf("%-6s %-30s %-20s %-10s %-10s %-10s %-8s\n",
		"ID", "Name", "Keyword", "Threshold", "Interval", "Severity", "Enabled")
	fmt.Println(strings.Repeat("-", 100))

	for _, rule := range rules {
		name := rule.RuleName
		if len(name) > 29 {
			name = name[:26] + "..."
		}
		keyword := rule.Keyword
		if len(keyword) > 19 {
			keyword = keyword[:16] + "..."
		}

		enabled := "No"
		if rule.Enabled {
			enabled = "Yes"
		}

		fmt.Printf("%-6d %-30s %-20s %-10d %-10s %-10s %-8s\n",
			rule.ID, name, keyword, rule.Threshold, rule.Interval, rule.Severity, enabled)
	}

	fmt.Println(strings.Repeat("=", 100))
}

// renderRuleDetails displays detailed rule information
func renderRuleDetails(rule *core.CorrelationRule) {
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	headerColor.Printf("  Rule Details: %s\n", rule.RuleName)
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	printField("ID", fmt.Sprintf("%d", rule.ID))
	printField("Name", rule.RuleName)
	printField("Keyword", rule.Keyword)
	printField("Threshold", fmt.Sprintf("%d", rule.Threshold))
	printField("Interval", rule.Interval.String())
	printField("Severity", string(rule.Severity))
	printField("Enabled", formatBool(rule.Enabled))
	if rule.Description != "" {
		printField("Description", rule.Description)
	}
	printField("Created", rule.CreatedAt.Format("2006-01-02 15:04:05"))
	printField("Updated", rule.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println()
}

// printField prints a labeled field with consistent alignment
func printField(label, value string) {
	infoColor.Printf("  %-14s", label+":")
	fmt.Printf(" %s\n", value)
}

// formatBool formats a boolean with color
func formatBool(b bool) string {
	if b {
		return successColor.Sprint("Yes")
	}
	return warningColor.Sprint("No")
}
