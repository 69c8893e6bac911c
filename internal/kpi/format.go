package kpi

import "fmt"

func formatFloat(v float64, suffix string) string { return fmt.Sprintf("%.1f%s", v, suffix) }

func formatInt(v float64) string { return fmt.Sprintf("%d", int64(v)) }

// FormatChange renders a change as a signed percentage, or "" when nil.
func FormatChange(c *float64) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%+.1f%%", *c)
}
