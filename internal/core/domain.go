package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Labor    CostType = "labor"
	NonLabor CostType = "non-labor"
	Mixed    CostType = "mixed"

	GroupByProject GroupMode = "project"
	GroupByRubro   GroupMode = "rubro"

	StatusNoData     Status = "Sin Datos"
	StatusNoBudget   Status = "Sin Presupuesto"
	StatusOverBudget Status = "Sobre Presupuesto"
	StatusAtRisk     Status = "En Riesgo"
	StatusOnTrack    Status = "En Meta"
)

type (
	CostType  string
	GroupMode string
	Status    string

	// TaxonomyEntry is one canonical cost line (rubro).
	TaxonomyEntry struct {
		ID              string   `json:"id" yaml:"id"`
		Description     string   `json:"description" yaml:"description"`
		Category        string   `json:"category" yaml:"category"`
		ExpenseLineText string   `json:"expenseLineText,omitempty" yaml:"expense_line_text,omitempty"`
		Labor           *bool    `json:"labor,omitempty" yaml:"labor,omitempty"`
		Aliases         []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	}

	// AliasDefinition maps a free-text synonym to a canonical rubro id.
	AliasDefinition struct {
		Alias string `json:"alias" yaml:"alias"`
		ID    string `json:"id" yaml:"id"`
	}

	// RawLineItem is an estimate row as captured by the input forms.
	RawLineItem struct {
		Kind        CostType `json:"kind,omitempty"`
		RubroID     string   `json:"rubroId,omitempty"`
		Role        string   `json:"role,omitempty"`
		Category    string   `json:"category,omitempty"`
		Description string   `json:"description,omitempty"`
		ProjectID   string   `json:"projectId,omitempty"`
		Quantity    float64  `json:"quantity,omitempty"`
		UnitCost    float64  `json:"unitCost,omitempty"`
		Amount      float64  `json:"amount,omitempty"`
		Currency    string   `json:"currency,omitempty"`
		StartMonth  int      `json:"startMonth,omitempty"`
		EndMonth    int      `json:"endMonth,omitempty"`
	}

	// NormalizedLineItem is a RawLineItem projected onto the taxonomy.
	// When Resolved is false CanonicalID is nil (null in JSON) and RubroID
	// keeps the caller's original identifier.
	NormalizedLineItem struct {
		CanonicalID *string  `json:"canonicalId"`
		Resolved    bool     `json:"resolved"`
		RubroID     string   `json:"rubroId"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Kind        CostType `json:"kind"`
		ProjectID   string   `json:"projectId,omitempty"`
		Quantity    float64  `json:"quantity"`
		UnitCost    float64  `json:"unitCost"`
		Amount      float64  `json:"amount"`
		Currency    string   `json:"currency,omitempty"`
		StartMonth  int      `json:"startMonth"`
		EndMonth    int      `json:"endMonth"`
	}

	// ForecastCell is the planned/forecast/actual triple of one rubro, one
	// project and one month.
	ForecastCell struct {
		LineItemID  string  `json:"lineItemId,omitempty" yaml:"line_item_id,omitempty"`
		CanonicalID string  `json:"canonicalId" yaml:"canonical_id"`
		RubroCode   string  `json:"rubroCode,omitempty" yaml:"rubro_code,omitempty"`
		ProjectID   string  `json:"projectId" yaml:"project_id"`
		ProjectName string  `json:"projectName,omitempty" yaml:"project_name,omitempty"`
		Month       int     `json:"month" yaml:"month"`
		Planned     float64 `json:"planned" yaml:"planned"`
		Forecast    float64 `json:"forecast" yaml:"forecast"`
		Actual      float64 `json:"actual" yaml:"actual"`
		Description string  `json:"description,omitempty" yaml:"description,omitempty"`
		Category    string  `json:"category,omitempty" yaml:"category,omitempty"`
	}

	// InvoiceRecord is an externally reported cost. Identification fields
	// arrive under several names depending on the producing system.
	InvoiceRecord struct {
		ID          string `json:"id,omitempty"`
		ProjectID   string `json:"projectId,omitempty"`
		LineItemID  string `json:"lineItemId,omitempty"`
		RubroID     string `json:"rubroId,omitempty"`
		RubroIDAlt  string `json:"rubro_id,omitempty"`
		LineaCodigo string `json:"linea_codigo,omitempty"`
		CodigoRubro string `json:"codigo_rubro,omitempty"`
		Description string `json:"description,omitempty"`
		Descripcion string `json:"descripcion,omitempty"`
		Amount      Amount `json:"amount"`
		Month       int    `json:"month,omitempty"`
		Vendor      string `json:"vendor,omitempty"`
	}

	// UnmatchedInvoice is an invoice parked for an operator because no
	// forecast cell matched it.
	UnmatchedInvoice struct {
		ID        string        `json:"id"`
		Invoice   InvoiceRecord `json:"invoice"`
		Attempts  int           `json:"attempts"`
		CreatedAt time.Time     `json:"createdAt"`
		UpdatedAt time.Time     `json:"updatedAt"`
	}

	// SnapshotRow is one node of the monthly report tree.
	SnapshotRow struct {
		Key                     string        `json:"key"`
		Name                    string        `json:"name"`
		Code                    string        `json:"code"`
		Planned                 float64       `json:"planned"`
		Budget                  float64       `json:"budget"`
		BudgetSet               bool          `json:"budgetSet"`
		Forecast                float64       `json:"forecast"`
		Actual                  float64       `json:"actual"`
		VarianceBudget          float64       `json:"varianceBudget"`
		VarianceBudgetPercent   *float64      `json:"varianceBudgetPercent"`
		VarianceForecast        float64       `json:"varianceForecast"`
		VarianceForecastPercent *float64      `json:"varianceForecastPercent"`
		Status                  Status        `json:"status"`
		CostType                CostType      `json:"costType"`
		Children                []SnapshotRow `json:"children,omitempty"`
	}
)

var (
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyRubroID     = errors.New("empty rubro id")
	ErrEmptyProjectID   = errors.New("empty project id")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidGroupMode = errors.New("invalid grouping mode")
	ErrInvalidCostType  = errors.New("invalid cost type")
)

// IsLabor reports whether the rubro is direct labor (MOD). An explicit flag
// wins; otherwise the MOD- id prefix or a labor category decides.
func (t TaxonomyEntry) IsLabor() bool {
	if t.Labor != nil {
		return *t.Labor
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(t.ID)), "MOD-") {
		return true
	}
	return IsLaborCategory(t.Category)
}

// CostType returns Labor or NonLabor for the entry.
func (t TaxonomyEntry) CostType() CostType {
	if t.IsLabor() {
		return Labor
	}
	return NonLabor
}

func (t TaxonomyEntry) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyRubroID
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("rubro %s: %w", t.ID, ErrEmptyDescription)
	}
	return nil
}

// IsLaborCategory reports whether a category label denotes direct labor.
func IsLaborCategory(category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	switch c {
	case "mod", "labor", "mano de obra", "mano de obra directa", "direct labor":
		return true
	}
	return strings.HasPrefix(c, "mod ") || strings.HasPrefix(c, "mod-")
}

func (m GroupMode) IsValid() bool {
	return m == GroupByProject || m == GroupByRubro
}

func (c CostType) IsValid() bool {
	return c == Labor || c == NonLabor
}

// ParseGroupMode accepts the query-string spellings of a grouping mode.
// An empty value defaults to grouping by project.
func ParseGroupMode(s string) (GroupMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "project", "proyecto":
		return GroupByProject, nil
	case "rubro", "line-item", "lineitem":
		return GroupByRubro, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGroupMode, s)
}

// ParseCostType accepts the query-string spellings of a cost type. An empty
// value means no filter and returns "".
func ParseCostType(s string) (CostType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "todos":
		return "", nil
	case "labor", "mod":
		return Labor, nil
	case "non-labor", "nonlabor", "no-mod", "indirect":
		return NonLabor, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCostType, s)
}

func (c ForecastCell) Validate() error {
	if c.Month < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, c.Month)
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return ErrEmptyProjectID
	}
	if strings.TrimSpace(c.CanonicalID) == "" && strings.TrimSpace(c.RubroCode) == "" {
		return ErrEmptyRubroID
	}
	return nil
}

// Key identifies a cell by project, rubro and month.
func (c ForecastCell) Key() string {
	id := c.CanonicalID
	if id == "" {
		id = c.RubroCode
	}
	return fmt.Sprintf("%s|%s|%d", c.ProjectID, id, c.Month)
}
