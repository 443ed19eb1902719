package snapshot

import (
	"math"
	"testing"

	"finanzas/internal/core"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestBuildEndToEndByRubro(t *testing.T) {
	cells := []core.ForecastCell{
		{ProjectID: "P1", CanonicalID: "MOD-SDM", Month: 3, Forecast: 1000, Actual: 900},
		{ProjectID: "P2", CanonicalID: "MOD-SDM", Month: 3, Forecast: 2000, Actual: 2100},
		{ProjectID: "P2", CanonicalID: "MOD-SDM", Month: 4, Forecast: 9999, Actual: 9999},
	}
	rows := Build(cells, Options{
		Month:      3,
		GroupBy:    core.GroupByRubro,
		Budget:     Budget(3000),
		Categories: map[string]string{"MOD-SDM": "Mano de Obra Directa"},
	})

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.Key != "MOD-SDM" || r.Forecast != 3000 || r.Actual != 3000 || r.Budget != 3000 || !r.BudgetSet {
		t.Fatalf("unexpected parent: %+v", r)
	}
	if r.VarianceBudget != 0 || r.VarianceForecast != 0 {
		t.Fatalf("expected zero variances, got %v %v", r.VarianceBudget, r.VarianceForecast)
	}
	if r.Status != core.StatusOnTrack {
		t.Fatalf("status = %q, want %q", r.Status, core.StatusOnTrack)
	}
	if len(r.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(r.Children))
	}
	p1, p2 := r.Children[0], r.Children[1]
	if p1.Code != "P1" || p1.Forecast != 1000 || p1.Actual != 900 {
		t.Errorf("unexpected P1 child: %+v", p1)
	}
	if p2.Code != "P2" || p2.Forecast != 2000 || p2.Actual != 2100 {
		t.Errorf("unexpected P2 child: %+v", p2)
	}
	if r.CostType != core.Labor {
		t.Errorf("expected labor parent from the category map, got %q", r.CostType)
	}
}

func TestBuildByProjectMergesCells(t *testing.T) {
	cells := []core.ForecastCell{
		{ProjectID: "P1", ProjectName: "Banco Andino", CanonicalID: "INF-CLOUD", Description: "Servicios cloud", Month: 1, Planned: 10, Forecast: 50, Actual: 20},
		{ProjectID: "P1", CanonicalID: "INF-CLOUD", Month: 1, Forecast: 50, Actual: 5},
		{ProjectID: "P1", CanonicalID: "MOD-ING", Description: "Ingenieros de soporte", Month: 1, Forecast: 100},
	}
	rows := Build(cells, Options{Month: 1, GroupBy: core.GroupByProject})
	if len(rows) != 1 {
		t.Fatalf("expected 1 project, got %d", len(rows))
	}
	r := rows[0]
	if r.Name != "Banco Andino" || r.Forecast != 200 || r.Actual != 25 || r.Planned != 10 {
		t.Fatalf("unexpected parent: %+v", r)
	}
	if r.BudgetSet || r.Budget != 0 || r.Status != core.StatusNoBudget {
		t.Fatalf("budget must be unset: %+v", r)
	}
	if len(r.Children) != 2 || r.Children[0].Code != "INF-CLOUD" || r.Children[0].Forecast != 100 {
		t.Fatalf("cells must merge per rubro: %+v", r.Children)
	}
	if r.Children[0].CostType != core.NonLabor || r.Children[1].CostType != core.Labor || r.CostType != core.Mixed {
		t.Fatalf("unexpected cost types: %q %q %q", r.Children[0].CostType, r.Children[1].CostType, r.CostType)
	}
}

func TestAllocation(t *testing.T) {
	cases := []struct {
		name      string
		forecasts []float64
		budget    float64
		want      []float64
	}{
		{"proportional", []float64{100, 200, 700}, 1000, []float64{100, 200, 700}},
		{"proportional scaled", []float64{100, 300}, 2000, []float64{500, 1500}},
		{"equal split", []float64{0, 0, 0}, 1200, []float64{400, 400, 400}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := make([]core.SnapshotRow, len(tc.forecasts))
			for i, f := range tc.forecasts {
				rows[i].Forecast = f
			}
			allocate(rows, Budget(tc.budget))
			sum := 0.0
			for i, r := range rows {
				if !approx(r.Budget, tc.want[i]) || !r.BudgetSet {
					t.Errorf("row %d budget = %v, want %v", i, r.Budget, tc.want[i])
				}
				sum += r.Budget
			}
			if !approx(sum, tc.budget) {
				t.Errorf("allocation sum = %v, want %v", sum, tc.budget)
			}
		})
	}
}

func TestAllocateNilBudget(t *testing.T) {
	rows := []core.SnapshotRow{{Forecast: 10}}
	allocate(rows, nil)
	if rows[0].BudgetSet || rows[0].Budget != 0 {
		t.Fatalf("nil budget must leave rows unset: %+v", rows[0])
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name                     string
		budget, forecast, actual float64
		want                     core.Status
	}{
		{"no data", 0, 0, 0, core.StatusNoData},
		{"no budget", 0, 500, 0, core.StatusNoBudget},
		{"no budget actual only", 0, 0, 10, core.StatusNoBudget},
		{"at risk", 1000, 1000, 950, core.StatusAtRisk},
		{"consumption over", 1000, 1000, 1050, core.StatusOverBudget},
		{"forecast over overrides consumption", 1000, 1100, 900, core.StatusOverBudget},
		{"exactly on budget", 1000, 1000, 1000, core.StatusOnTrack},
		{"ninety percent", 1000, 800, 900, core.StatusOnTrack},
		{"on track", 1000, 800, 400, core.StatusOnTrack},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.budget, tc.forecast, tc.actual); got != tc.want {
				t.Fatalf("Classify(%v, %v, %v) = %q, want %q", tc.budget, tc.forecast, tc.actual, got, tc.want)
			}
		})
	}
}

func TestZeroDenominatorIsNull(t *testing.T) {
	row := core.SnapshotRow{Budget: 0, Forecast: 500}
	derive(&row)
	if row.VarianceBudgetPercent != nil {
		t.Fatalf("expected nil budget percent, got %v", *row.VarianceBudgetPercent)
	}
	if row.VarianceBudget != 500 {
		t.Fatalf("variance = %v", row.VarianceBudget)
	}
	if row.VarianceForecastPercent == nil || *row.VarianceForecastPercent != -100 {
		t.Fatalf("expected -100%% forecast variance")
	}

	empty := core.SnapshotRow{}
	derive(&empty)
	if empty.VarianceBudgetPercent != nil || empty.VarianceForecastPercent != nil {
		t.Fatalf("both percents must be nil on an empty row")
	}
}

func TestInferCostType(t *testing.T) {
	cats := map[string]string{"X-1": "Mano de Obra Directa", "X-2": "Infraestructura"}
	cases := []struct {
		name string
		cell core.ForecastCell
		want core.CostType
	}{
		{"explicit category wins over text", core.ForecastCell{CanonicalID: "X-1", Category: "Infraestructura", Description: "Project Manager"}, core.NonLabor},
		{"explicit labor category", core.ForecastCell{Category: "MOD"}, core.Labor},
		{"category map", core.ForecastCell{CanonicalID: "X-1"}, core.Labor},
		{"category map beats keywords", core.ForecastCell{CanonicalID: "X-2", Description: "Ingeniero"}, core.NonLabor},
		{"raw code lookup", core.ForecastCell{RubroCode: "X-1"}, core.Labor},
		{"token keyword", core.ForecastCell{Description: "PM part-time"}, core.Labor},
		{"stem keyword", core.ForecastCell{Description: "Ingeniería de campo"}, core.Labor},
		{"token not substring", core.ForecastCell{Description: "Hosting Compartido"}, core.NonLabor},
		{"default", core.ForecastCell{Description: "Licencias"}, core.NonLabor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferCostType(tc.cell, cats); got != tc.want {
				t.Fatalf("InferCostType = %q, want %q", got, tc.want)
			}
		})
	}
}

func sampleCells() []core.ForecastCell {
	return []core.ForecastCell{
		{ProjectID: "P1", CanonicalID: "MOD-SDM", Description: "Service Delivery Manager", Category: "Mano de Obra Directa", Month: 5, Forecast: 1000, Actual: 1000},
		{ProjectID: "P1", CanonicalID: "INF-CLOUD", Description: "Servicios cloud", Category: "Infraestructura", Month: 5, Forecast: 500, Actual: 700},
		{ProjectID: "P2", CanonicalID: "VIA-NAC", Description: "Viajes nacionales", Category: "Viajes", Month: 5, Forecast: 200, Actual: 200},
		{ProjectID: "P3", CanonicalID: "MOD-ING", Description: "Ingenieros", Category: "Mano de Obra Directa", Month: 5, Forecast: 3000, Actual: 1000},
	}
}

func keys(rows []core.SnapshotRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key
	}
	return out
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilters(t *testing.T) {
	cases := []struct {
		name     string
		filters  Filters
		want     []string
		children map[string]int
	}{
		{"none sorted by deviation", Filters{}, []string{"P3", "P1", "P2"}, map[string]int{"P1": 2}},
		{"labor prunes children", Filters{CostType: core.Labor}, []string{"P3", "P1"}, map[string]int{"P1": 1}},
		{"non-labor", Filters{CostType: core.NonLabor}, []string{"P1", "P2"}, map[string]int{"P1": 1}},
		{"search child code", Filters{Search: "cloud"}, []string{"P1"}, map[string]int{"P1": 1}},
		{"search parent keeps children", Filters{Search: "p1"}, []string{"P1"}, map[string]int{"P1": 2}},
		{"search no hit", Filters{Search: "zzz"}, []string{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := Build(sampleCells(), Options{Month: 5, GroupBy: core.GroupByProject, Budget: Budget(2350), Filters: tc.filters})
			if got := keys(rows); !equalKeys(got, tc.want) {
				t.Fatalf("keys = %v, want %v", got, tc.want)
			}
			for _, r := range rows {
				if n, ok := tc.children[r.Key]; ok && len(r.Children) != n {
					t.Errorf("%s children = %d, want %d", r.Key, len(r.Children), n)
				}
			}
		})
	}
}

func TestOnlyVariance(t *testing.T) {
	cells := []core.ForecastCell{
		{ProjectID: "A", CanonicalID: "R1", Month: 1},
		{ProjectID: "B", CanonicalID: "R1", Month: 1, Forecast: 100, Actual: 120},
	}
	// A receives no budget and has nothing planned; B lands on its budget
	// but overspends its forecast.
	rows := Build(cells, Options{Month: 1, Budget: Budget(100), Filters: Filters{OnlyVariance: true}})
	if got := keys(rows); !equalKeys(got, []string{"B"}) {
		t.Fatalf("keys = %v, want [B]", got)
	}
}

func TestInvalidGroupModeFallsBack(t *testing.T) {
	rows := Build(sampleCells(), Options{Month: 5, GroupBy: "weekly"})
	if len(rows) != 3 {
		t.Fatalf("expected project grouping, got %v", keys(rows))
	}
}

func TestTotals(t *testing.T) {
	rows := Build(sampleCells(), Options{Month: 5, Budget: Budget(4700)})
	tot := Totals(rows)
	if !approx(tot.Budget, 4700) || tot.Forecast != 4700 || tot.Actual != 2900 || !tot.BudgetSet {
		t.Fatalf("unexpected totals: %+v", tot)
	}
	if tot.CostType != core.Mixed || tot.Status != core.StatusOnTrack {
		t.Fatalf("unexpected totals classification: %q %q", tot.CostType, tot.Status)
	}
	if empty := Totals(nil); empty.Status != core.StatusNoData || empty.VarianceBudgetPercent != nil {
		t.Fatalf("unexpected empty totals: %+v", empty)
	}
}
