package tracker

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ImageMarkup/isic/doi/internal/testutil"
)

// TestTrackerSequencesStayAligned verifies the file, description and handle
// sequences have equal length after every add or remove.
// Values below 12 add a file, larger values remove index value-13.
func TestTrackerSequencesStayAligned(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("parallel sequences stay aligned", prop.ForAll(
		func(ops []int) bool {
			tr, err := New(Config{Client: &testutil.MockUploadClient{}})
			if err != nil {
				return false
			}
			ctx := context.Background()
			defer func() { _ = tr.Wait(ctx) }()

			for i, op := range ops {
				if op < 12 {
					_, _ = tr.Add(ctx, file(fmt.Sprintf("f%d.txt", i)))
				} else {
					_ = tr.Remove(op - 13)
				}

				n := tr.Len()
				if n > 10 {
					return false
				}
				if len(tr.Files()) != n || len(tr.Descriptions()) != n || len(tr.Handles()) != n {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 24)),
	))

	properties.TestingRun(t)
}
