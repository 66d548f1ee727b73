package features

import "fmt"

// Tenure bins are left-inclusive and right-exclusive, twelve periods wide,
// with edges 1, 13, ..., 73.
const (
	tenureStart = 1
	tenureWidth = 12
	tenureBins  = 6
)

// TenureGroupColumn is the derived categorical column.
const TenureGroupColumn = "tenure_group"

var tenureLabels = func() []string {
	labels := make([]string, tenureBins)
	for i := range labels {
		start := tenureStart + i*tenureWidth
		labels[i] = fmt.Sprintf("%d - %d", start, start+tenureWidth-1)
	}
	return labels
}()

// TenureGroups returns every group label in bin order.
func TenureGroups() []string {
	out := make([]string, len(tenureLabels))
	copy(out, tenureLabels)
	return out
}

// TenureGroup returns the label of the bin holding tenure. Values below 1
// or at and above 73 belong to no bin.
func TenureGroup(tenure int64) (string, bool) {
	if tenure < tenureStart {
		return "", false
	}
	i := (tenure - tenureStart) / tenureWidth
	if i >= tenureBins {
		return "", false
	}
	return tenureLabels[i], true
}
