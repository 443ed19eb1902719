package snapshot

import (
	"sort"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/rubros"
)

// laborTokens must match a whole token of the normalized description.
var laborTokens = map[string]bool{
	"mod": true,
	"pm":  true,
	"sdm": true,
}

// laborStems match anywhere in the normalized description.
var laborStems = []string{
	"ingenier",
	"engineer",
	"manager",
	"lider",
	"leader",
	"developer",
	"desarrollador",
	"analista",
	"analyst",
	"consultor",
	"arquitect",
	"architect",
	"tecnico",
	"coordinador",
	"mano-de-obra",
}

// InferCostType classifies a cell. An explicit category wins, then the
// caller's id to category map, then labor keywords in the description.
// Anything else is non-labor.
func InferCostType(cell core.ForecastCell, categories map[string]string) core.CostType {
	if c := strings.TrimSpace(cell.Category); c != "" {
		return fromCategory(c)
	}
	if c, ok := categories[cellID(cell)]; ok && strings.TrimSpace(c) != "" {
		return fromCategory(c)
	}
	if hasLaborKeyword(cell.Description) {
		return core.Labor
	}
	return core.NonLabor
}

func fromCategory(c string) core.CostType {
	if core.IsLaborCategory(c) {
		return core.Labor
	}
	return core.NonLabor
}

func hasLaborKeyword(description string) bool {
	key := rubros.NormalizeKey(description)
	if key == "" {
		return false
	}
	for _, tok := range strings.Split(key, "-") {
		if laborTokens[tok] {
			return true
		}
	}
	for _, stem := range laborStems {
		if strings.Contains(key, stem) {
			return true
		}
	}
	return false
}

func cellID(c core.ForecastCell) string {
	if id := strings.TrimSpace(c.CanonicalID); id != "" {
		return id
	}
	return strings.TrimSpace(c.RubroCode)
}

func projectName(c core.ForecastCell) string {
	if n := strings.TrimSpace(c.ProjectName); n != "" {
		return n
	}
	return c.ProjectID
}

func rubroName(c core.ForecastCell) string {
	if d := strings.TrimSpace(c.Description); d != "" {
		return d
	}
	return cellID(c)
}

type node struct {
	row      core.SnapshotRow
	children map[string]*node
}

func (n *node) add(c core.ForecastCell) {
	n.row.Planned += c.Planned
	n.row.Forecast += c.Forecast
	n.row.Actual += c.Actual
}

// build groups the month's cells into a two-level tree. Cells sharing a
// parent and child key are merged by summing. Rows come back ordered by key.
func build(cells []core.ForecastCell, month int, mode core.GroupMode, categories map[string]string) []core.SnapshotRow {
	parents := make(map[string]*node)

	for _, c := range cells {
		if c.Month != month {
			continue
		}
		id := cellID(c)
		project := strings.TrimSpace(c.ProjectID)

		var pKey, pName, cKey, cName string
		if mode == core.GroupByRubro {
			pKey, pName = id, rubroName(c)
			cKey, cName = project, projectName(c)
		} else {
			pKey, pName = project, projectName(c)
			cKey, cName = id, rubroName(c)
		}

		p, ok := parents[pKey]
		if !ok {
			p = &node{
				row:      core.SnapshotRow{Key: pKey, Name: pName, Code: pKey},
				children: make(map[string]*node),
			}
			parents[pKey] = p
		}
		p.add(c)

		ch, ok := p.children[cKey]
		if !ok {
			ch = &node{row: core.SnapshotRow{
				Key:      pKey + "/" + cKey,
				Name:     cName,
				Code:     cKey,
				CostType: InferCostType(c, categories),
			}}
			p.children[cKey] = ch
		}
		ch.add(c)
	}

	rows := make([]core.SnapshotRow, 0, len(parents))
	for _, p := range parents {
		row := p.row
		row.Children = make([]core.SnapshotRow, 0, len(p.children))
		for _, ch := range p.children {
			row.Children = append(row.Children, ch.row)
		}
		sort.Slice(row.Children, func(i, j int) bool {
			return row.Children[i].Key < row.Children[j].Key
		})
		row.CostType = parentCostType(row.Children)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// parentCostType is the children's common type, or Mixed when they differ.
func parentCostType(children []core.SnapshotRow) core.CostType {
	var ct core.CostType
	for _, ch := range children {
		switch {
		case ct == "":
			ct = ch.CostType
		case ct != ch.CostType:
			return core.Mixed
		}
	}
	if ct == "" {
		return core.NonLabor
	}
	return ct
}
