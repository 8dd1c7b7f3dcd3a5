package nlq

import (
	"fmt"
	"regexp"

	"github.com/sadopc/askql/internal/schema"
)

// Contract names the two tables and the columns the generated query joins,
// filters and aggregates on. Every name is checked against the catalog on
// each compile.
type Contract struct {
	// Fact table holding one row per metric observation.
	MetricsTable     string `yaml:"metrics_table" json:"metrics_table"`
	MetricDepartment string `yaml:"metric_department" json:"metric_department"`
	MetricName       string `yaml:"metric_name" json:"metric_name"`
	MetricValue      string `yaml:"metric_value" json:"metric_value"`
	MetricChange     string `yaml:"metric_change" json:"metric_change"`
	MetricDate       string `yaml:"metric_date" json:"metric_date"`

	// Dimension table of departments.
	DepartmentsTable string `yaml:"departments_table" json:"departments_table"`
	DepartmentID     string `yaml:"department_id" json:"department_id"`
	DepartmentCode   string `yaml:"department_code" json:"department_code"`
	DepartmentName   string `yaml:"department_name" json:"department_name"`
}

// DefaultContract matches the reference business metrics schema.
func DefaultContract() Contract {
	return Contract{
		MetricsTable:     "metrics",
		MetricDepartment: "department_id",
		MetricName:       "metric_name",
		MetricValue:      "metric_value",
		MetricChange:     "percentage_change",
		MetricDate:       "metric_date",
		DepartmentsTable: "departments",
		DepartmentID:     "id",
		DepartmentCode:   "code",
		DepartmentName:   "name",
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// withDefaults fills empty fields from DefaultContract.
func (c Contract) withDefaults() Contract {
	d := DefaultContract()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.MetricsTable, d.MetricsTable)
	fill(&c.MetricDepartment, d.MetricDepartment)
	fill(&c.MetricName, d.MetricName)
	fill(&c.MetricValue, d.MetricValue)
	fill(&c.MetricChange, d.MetricChange)
	fill(&c.MetricDate, d.MetricDate)
	fill(&c.DepartmentsTable, d.DepartmentsTable)
	fill(&c.DepartmentID, d.DepartmentID)
	fill(&c.DepartmentCode, d.DepartmentCode)
	fill(&c.DepartmentName, d.DepartmentName)
	return c
}

// requirements lists the required columns per table, in check order.
func (c Contract) requirements() []struct {
	table   string
	columns []string
} {
	return []struct {
		table   string
		columns []string
	}{
		{c.MetricsTable, []string{c.MetricDepartment, c.MetricName, c.MetricValue, c.MetricChange, c.MetricDate}},
		{c.DepartmentsTable, []string{c.DepartmentID, c.DepartmentCode, c.DepartmentName}},
	}
}

// checkIdentifiers rejects any name that could not be concatenated into SQL
// unquoted.
func (c Contract) checkIdentifiers() error {
	for _, req := range c.requirements() {
		if !identPattern.MatchString(req.table) {
			return fmt.Errorf("%w: table name %q", ErrInvalidContract, req.table)
		}
		for _, col := range req.columns {
			if !identPattern.MatchString(col) {
				return fmt.Errorf("%w: column name %q", ErrInvalidContract, col)
			}
		}
	}
	return nil
}

// Check verifies that the catalog provides every table and column of the
// contract.
func (c Contract) Check(cat *schema.Catalog) error {
	if cat == nil {
		return ErrSchemaRequired
	}
	for _, req := range c.requirements() {
		t, ok := cat.Table(req.table)
		if !ok {
			return fmt.Errorf("%w: missing table %q", ErrSchemaMismatch, req.table)
		}
		for _, col := range req.columns {
			if _, ok := t.Column(col); !ok {
				return fmt.Errorf("%w: table %q has no column %q", ErrSchemaMismatch, req.table, col)
			}
		}
	}
	return nil
}
