package tsvar

import "fmt"

// errFromVersions reports a monotonicity violation observed by a
// reader (spec §8 invariant 1: "V_1 <= V_2 <= ... strictly increases
// across distinct values").
func errFromVersions(last, got uint64) error {
	return fmt.Errorf("version went backwards: had %d, observed %d", last, got)
}
