package nlq

import (
	"reflect"
	"testing"
)

func TestExtractorsAreIndependent(t *testing.T) {
	c := newTestCompiler(t, Options{})
	questions := []string{
		"top 5 pipeline deals in q4",
		"3 worst events last month",
		"average burn and budget this year",
		"hello",
	}
	for _, q := range questions {
		t.Run(q, func(t *testing.T) {
			want := c.extract(q, Request{}, "")

			// Run the sub-extractors in reverse order.
			limit, _ := c.extractLimit(q)
			cmp, _ := c.extractComparison(q)
			metrics, _ := c.extractMetrics(q)
			agg, _ := c.extractAggregation(q)
			dr, _ := c.extractDateRange(q, "")
			dept, _ := c.extractDepartment(q, "")

			if limit != want.limit || cmp != want.comparison || agg != want.aggregation || dept != want.department {
				t.Errorf("reverse order disagrees: limit %d/%d cmp %v/%v agg %v/%v dept %q/%q",
					limit, want.limit, cmp, want.comparison, agg, want.aggregation, dept, want.department)
			}
			if !reflect.DeepEqual(metrics, want.metrics) {
				t.Errorf("metrics = %v, want %v", metrics, want.metrics)
			}
			if dr.kind != want.dateRange.kind || dr.predicate != want.dateRange.predicate {
				t.Errorf("date range = %v, want %v", dr, want.dateRange)
			}
		})
	}
}

func TestExtractMetricsOncePerKeyword(t *testing.T) {
	c := newTestCompiler(t, Options{})
	got, notes := c.extractMetrics("budget vs budget")
	want := []string{"budget_allocated", "budget_spent"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("metrics = %v, want %v", got, want)
	}
	if len(notes) != 1 {
		t.Errorf("notes = %v, want one", notes)
	}

	got, _ = c.extractMetrics("pipeline arr revenue")
	want = []string{"total_pipeline", "channel_partner_pipeline", "arr", "net_new_arr", "revenue"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("metrics = %v, want %v", got, want)
	}
}

func TestDepartmentTieBreak(t *testing.T) {
	c := newTestCompiler(t, Options{})
	tests := []struct {
		question string
		want     Department
	}{
		// sales precedes finance in enumeration order
		{"budget for deals", DepartmentSales},
		{"community incident", DepartmentDevRel},
		{"webinar attendee audit", DepartmentEvents},
		{"soc2 status", DepartmentCompliance},
		{"nothing relevant", ""},
	}
	for _, tt := range tests {
		got, _ := c.extractDepartment(tt.question, "")
		if got != tt.want {
			t.Errorf("extractDepartment(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}

func TestParseDepartment(t *testing.T) {
	for _, d := range Departments {
		got, err := ParseDepartment("  " + string(d) + " ")
		if err != nil || got != d {
			t.Errorf("ParseDepartment(%q) = %q, %v", d, got, err)
		}
	}
	if got, err := ParseDepartment("SALES"); err != nil || got != DepartmentSales {
		t.Errorf("ParseDepartment(SALES) = %q, %v", got, err)
	}
	if got, err := ParseDepartment(""); err != nil || got != "" {
		t.Errorf("ParseDepartment(empty) = %q, %v", got, err)
	}
	if _, err := ParseDepartment("legal"); err == nil {
		t.Error("ParseDepartment(legal) succeeded")
	}
}
