package sheet

// rollupAliases maps historical rollup labels to their canonical names so
// queries behave identically regardless of which sheet a row came from.
// The 2025 budget, 2026 budget and actuals sheets disagree on a handful
// of names; the canonical form is the one the current sheets use.
var rollupAliases = map[string]string{
	"Marketing AI Revenue":    "Postscript AI Revenue",
	"Hosting Costs":           "Hosting",
	"PS Plus Servicing Costs": "Postscript Plus Servicing Costs",
}

// NormalizeRollup maps a rollup label to its canonical form. Unknown
// labels pass through unchanged, so the function is total and idempotent.
// It is applied exactly once, at load time, before records are cached;
// downstream consumers only ever see canonical labels.
func NormalizeRollup(rollup string) string {
	if canonical, ok := rollupAliases[rollup]; ok {
		return canonical
	}
	return rollup
}
