package nlq

import (
	"fmt"
	"slices"
	"strings"
)

var aggregationVerbs = map[AggregationKind]string{
	AggregationNone:   "Retrieving",
	AggregationSum:    "Calculating the total of",
	AggregationAvg:    "Calculating the average of",
	AggregationCount:  "Counting",
	AggregationGrowth: "Calculating the average growth of",
}

// explain composes the summary sentence from the same decisions the
// assembler makes: verb, metrics, department, date, then ordering.
func explain(x *extraction) string {
	var b strings.Builder
	b.WriteString(aggregationVerbs[x.aggregation.kind])
	b.WriteByte(' ')

	switch {
	case len(x.metrics) > 0:
		b.WriteString("metrics ")
		b.WriteString(strings.Join(uniqueOrdered(x.metrics), ", "))
	case x.aggregation.kind == AggregationNone:
		b.WriteString("all metric records")
	default:
		b.WriteString("all metrics")
	}

	if x.department != "" {
		fmt.Fprintf(&b, " for the %s department", x.department)
	}
	if x.dateRange.kind != DateNone {
		b.WriteByte(' ')
		b.WriteString(x.dateRange.label)
	}
	if x.department == "" && x.dateRange.kind == DateNone && len(x.metrics) == 0 {
		b.WriteString(" without filters")
	}

	switch {
	case x.comparison.kind == ComparisonTop && x.limit > 0:
		fmt.Fprintf(&b, ", showing the top %d by highest value", x.limit)
	case x.comparison.kind == ComparisonTop:
		b.WriteString(", ranked by highest value")
	case x.comparison.kind == ComparisonBottom && x.limit > 0:
		fmt.Fprintf(&b, ", showing the bottom %d by lowest value", x.limit)
	case x.comparison.kind == ComparisonBottom:
		b.WriteString(", ranked by lowest value")
	default:
		b.WriteString(", most recent first")
		if x.limit > 0 {
			fmt.Fprintf(&b, ", limited to %d results", x.limit)
		}
	}

	if x.aggregation.kind != AggregationNone {
		if x.department != "" {
			b.WriteString(", grouped by metric")
		} else {
			b.WriteString(", grouped by department and metric")
		}
	}

	b.WriteByte('.')
	return b.String()
}

func uniqueOrdered(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
