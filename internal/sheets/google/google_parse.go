package google

import (
	"fmt"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

// parseTaxonomy converts the rubros tab into entries. The first row holds
// headers; id, description and category are required, expense_line_text,
// labor and aliases are optional. Aliases are separated by ";" or "|".
// Blank rows and rows whose id starts with "#" are skipped.
func parseTaxonomy(values [][]interface{}) ([]core.TaxonomyEntry, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := normalizeHeaders(toStrings(values[0]))
	colID := indexOf(headers, "id")
	colDesc := indexOf(headers, "description")
	colCat := indexOf(headers, "category")
	if colID == -1 || colDesc == -1 || colCat == -1 {
		missing := make([]string, 0, 3)
		if colID == -1 {
			missing = append(missing, "id")
		}
		if colDesc == -1 {
			missing = append(missing, "description")
		}
		if colCat == -1 {
			missing = append(missing, "category")
		}
		return nil, fmt.Errorf("unexpected taxonomy header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}
	colLong := indexOf(headers, "expense_line_text")
	colLabor := indexOf(headers, "labor")
	colAliases := indexOf(headers, "aliases")

	var out []core.TaxonomyEntry
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		id := safeGet(row, colID)
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		e := core.TaxonomyEntry{
			ID:              id,
			Description:     safeGet(row, colDesc),
			Category:        safeGet(row, colCat),
			ExpenseLineText: safeGet(row, colLong),
			Aliases:         splitAliases(safeGet(row, colAliases)),
		}
		if v := safeGet(row, colLabor); v != "" {
			b, err := parseFlag(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			e.Labor = &b
		}
		out = append(out, e)
	}
	return out, nil
}

// parseAliases converts the alias tab (alias, id) into definitions.
func parseAliases(values [][]interface{}) ([]core.AliasDefinition, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := normalizeHeaders(toStrings(values[0]))
	colAlias := indexOf(headers, "alias")
	colID := indexOf(headers, "id")
	if colAlias == -1 || colID == -1 {
		return nil, fmt.Errorf("unexpected alias header: want alias,id; got headers=%v", headers)
	}
	var out []core.AliasDefinition
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		alias, id := safeGet(row, colAlias), safeGet(row, colID)
		if alias == "" || id == "" {
			continue
		}
		out = append(out, core.AliasDefinition{Alias: alias, ID: id})
	}
	return out, nil
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "si", "sí", "yes", "x", "mod":
		return true, nil
	case "no":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid labor flag %q", v)
	}
	return b, nil
}

func splitAliases(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeHeaders(in []string) []string {
	out := make([]string, len(in))
	for i, h := range in {
		out[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if v == target {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
