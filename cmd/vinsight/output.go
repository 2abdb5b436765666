package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/vinsight/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr receives notices and tables; stdout stays machine-readable.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func notice(w io.Writer, mark, color, format string, args ...any) {
	fmt.Fprintln(w, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notice(stderr, "✓", colorGreen, format, args...) }
func printError(format string, args ...any) { notice(stderr, "✗", colorRed, format, args...) }
func printWarning(format string, args ...any) { notice(stderr, "⚠", colorYellow, format, args...) }

// statusTable collects label/value rows and prints them with the values
// lined up.
type statusTable struct {
	rows [][2]string
}

func (t *statusTable) add(label, format string, args ...any) {
	t.rows = append(t.rows, [2]string{label, fmt.Sprintf(format, args...)})
}

func (t *statusTable) write(w io.Writer) {
	width := 0
	for _, r := range t.rows {
		width = max(width, utf8.RuneCountInString(r[0]))
	}
	for _, r := range t.rows {
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", colorize(colorBold, r[0]+":"), pad, r[1])
	}
}

func writeSearchResults(w io.Writer, res *searchResponse) {
	if res.Count == 0 {
		fmt.Fprintf(w, "No vehicles match %q.\n", res.Query)
		return
	}
	for _, r := range res.Results {
		year := "----"
		if r.Year != nil {
			year = strconv.Itoa(*r.Year)
		}
		fmt.Fprintf(w, "%s  %-8s %-17s %s %s %s\n",
			colorize(colorCyan, fmt.Sprintf("#%d", r.ID)), r.VRM, r.VIN, year, r.Make, r.Model)
	}
	fmt.Fprintf(w, "%d of at most %d matches for %q\n", res.Count, storage.SearchLimit, res.Query)
}

// writeLookupSummary prints a one-glance header for a lookup payload: the
// vehicle, and where its insights came from.
func writeLookupSummary(w io.Writer, payload map[string]any) {
	detailed, _ := payload["detailed_data"].(map[string]any)
	basic, _ := detailed["basic"].(map[string]any)
	ai, _ := payload["ai_insights"].(map[string]any)

	title := strings.Join(strings.Fields(fmt.Sprintf("%s %s %s", yearOf(basic), str(basic, "make"), str(basic, "model"))), " ")
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, str(basic, "vrm")), title)

	var t statusTable
	t.add("VIN", "%s", orDash(str(basic, "vin")))
	t.add("Insights", "%s", insightsSource(ai))
	t.write(w)
}

func insightsSource(ai map[string]any) string {
	model := str(ai, "model_version")
	switch {
	case ai == nil:
		return "missing"
	case ai["error"] == true:
		return colorize(colorYellow, fmt.Sprintf("degraded (%s)", orDash(str(ai, "error_kind"))))
	case ai["cached"] == true:
		return fmt.Sprintf("cached, %s", model)
	default:
		return fmt.Sprintf("generated, %s", model)
	}
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func yearOf(basic map[string]any) string {
	if y, ok := basic["year"].(float64); ok {
		return strconv.Itoa(int(y))
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
