package registry

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ImageMarkup/isic/doi/doitypes"
)

// TestFlattenGroupsByRelationType verifies Flatten never interleaves relation
// types, whatever order the entries were added in.
func TestFlattenGroupsByRelationType(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	order := map[doitypes.RelationType]int{}
	for i, cfg := range RelationTypes() {
		order[cfg.Type] = i
	}

	properties.Property("flatten keeps relation type order", prop.ForAll(
		func(picks []int) bool {
			r := New()
			types := RelationTypes()
			for _, p := range picks {
				_, _ = r.Add(types[p].Type)
			}

			flat := r.Flatten()
			for i := 1; i < len(flat); i++ {
				if order[flat[i-1].RelationType] > order[flat[i].RelationType] {
					return false
				}
			}
			return len(r.List(doitypes.RelationIsDescribedBy)) <= 1 && len(flat) == r.Len()
		},
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
