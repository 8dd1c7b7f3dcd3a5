package nlq

import (
	"strconv"
	"strings"
)

// Aggregate column aliases, also used by ORDER BY.
var aggregateAliases = map[AggregationKind]string{
	AggregationSum:    "total_value",
	AggregationAvg:    "average_value",
	AggregationCount:  "record_count",
	AggregationGrowth: "average_growth",
}

// assembly accumulates the clauses, bound values and pattern trail of one
// query. Bound values are written as ? and rebound at the end.
type assembly struct {
	clauses  []string
	args     []any
	patterns []string
}

func (a *assembly) bind(v any) string {
	a.args = append(a.args, v)
	return "?"
}

func (a *assembly) fired(tag string) {
	a.patterns = append(a.patterns, tag)
}

func (c *Compiler) col(alias, name string) string {
	return alias + "." + name
}

// assemble renders x in the fixed clause order SELECT, FROM/JOIN, WHERE,
// GROUP BY, ORDER BY, LIMIT. Only contract identifiers and fixed fragments
// are concatenated; every user-derived value is bound.
func (c *Compiler) assemble(x *extraction) (sql string, args []any, patterns []string) {
	ct := c.contract
	a := &assembly{}
	aggregated := x.aggregation.kind != AggregationNone
	alias := aggregateAliases[x.aggregation.kind]

	deptName := c.col("d", ct.DepartmentName)
	metricName := c.col("m", ct.MetricName)
	metricValue := c.col("m", ct.MetricValue)
	metricDate := c.col("m", ct.MetricDate)

	// SELECT
	if aggregated {
		a.fired("aggregation_" + string(x.aggregation.kind))
		target := metricValue
		if x.aggregation.kind == AggregationGrowth {
			target = c.col("m", ct.MetricChange)
		}
		department := deptName + " AS department"
		if x.department != "" {
			// Not a group key once narrowed to one department.
			department = "MAX(" + deptName + ") AS department"
		}
		a.clauses = append(a.clauses, "SELECT "+department+", "+metricName+", "+
			x.aggregation.sqlFunction+"("+target+") AS "+alias)
	} else {
		a.clauses = append(a.clauses, "SELECT "+deptName+" AS department, "+metricName+", "+metricValue+", "+metricDate)
	}

	// FROM / JOIN
	a.clauses = append(a.clauses,
		"FROM "+ct.MetricsTable+" m",
		"JOIN "+ct.DepartmentsTable+" d ON "+c.col("m", ct.MetricDepartment)+" = "+c.col("d", ct.DepartmentID))

	// WHERE
	var conds []string
	if x.department != "" {
		conds = append(conds, c.col("d", ct.DepartmentCode)+" = "+a.bind(string(x.department)))
		a.fired("department_filter")
	}
	if x.dateRange.kind != DateNone && x.dateRange.predicate != "" {
		conds = append(conds, x.dateRange.predicate)
		a.args = append(a.args, x.dateRange.params...)
		a.fired("date_filter_" + string(x.dateRange.kind))
	}
	if len(x.metrics) > 0 {
		marks := make([]string, len(x.metrics))
		for i, name := range x.metrics {
			marks[i] = a.bind(name)
		}
		conds = append(conds, metricName+" IN ("+strings.Join(marks, ", ")+")")
		a.fired("metric_filter")
	}
	if len(conds) > 0 {
		a.clauses = append(a.clauses, "WHERE "+strings.Join(conds, " AND "))
	}

	// GROUP BY
	if aggregated {
		if x.department != "" {
			a.clauses = append(a.clauses, "GROUP BY "+metricName)
		} else {
			a.clauses = append(a.clauses, "GROUP BY "+deptName+", "+metricName)
		}
	}

	// ORDER BY
	switch {
	case x.comparison.kind != ComparisonNone:
		a.fired("comparison_" + string(x.comparison.kind))
		key := metricValue
		if aggregated {
			key = alias
		}
		a.clauses = append(a.clauses, "ORDER BY "+key+" "+string(x.comparison.direction))
	case aggregated:
		a.clauses = append(a.clauses, "ORDER BY MAX("+metricDate+") DESC")
	default:
		a.clauses = append(a.clauses, "ORDER BY "+metricDate+" DESC")
	}

	// LIMIT
	if x.limit > 0 {
		if lit, ok := limitLiteral(x.limit); ok {
			if c.bindLimit {
				a.clauses = append(a.clauses, "LIMIT "+a.bind(x.limit))
			} else {
				a.clauses = append(a.clauses, "LIMIT "+lit)
			}
			a.fired("limit_results")
		}
	}

	return c.dialect.rebind(strings.Join(a.clauses, "\n")), a.args, a.patterns
}

// limitLiteral formats n and re-checks the digits-only form before it is
// concatenated into the statement.
func limitLiteral(n int) (string, bool) {
	if n <= 0 {
		return "", false
	}
	s := strconv.Itoa(n)
	if !digitsOnly.MatchString(s) {
		return "", false
	}
	return s, true
}
