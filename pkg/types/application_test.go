package types_test

import (
	"testing"

	"driverhub/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestDocuments_Merge(t *testing.T) {
	existing := types.Documents{
		types.DocBadge:     "https://files.test/badge.pdf",
		types.DocInsurance: "https://files.test/insurance.pdf",
	}

	merged := existing.Merge(types.Documents{
		types.DocInsurance: "https://files.test/insurance-v2.pdf",
		types.DocV5C:       "https://files.test/v5c.pdf",
	})

	assert.Equal(t, "https://files.test/badge.pdf", merged[types.DocBadge], "untouched slots survive")
	assert.Equal(t, "https://files.test/insurance-v2.pdf", merged[types.DocInsurance], "explicit replacement wins")
	assert.Equal(t, "https://files.test/v5c.pdf", merged[types.DocV5C])
	assert.Len(t, merged, 3)
}

func TestDocuments_MergeIgnoresEmptyValues(t *testing.T) {
	existing := types.Documents{types.DocBadge: "https://files.test/badge.pdf"}

	merged := existing.Merge(types.Documents{types.DocBadge: ""})
	assert.Equal(t, "https://files.test/badge.pdf", merged[types.DocBadge], "an empty value never clears a slot")

	merged = existing.Merge(nil)
	assert.Equal(t, existing, merged)
}

func TestUnlicensedProgress_AllComplete(t *testing.T) {
	var p types.UnlicensedProgress
	assert.False(t, p.AllComplete())

	for _, m := range types.Milestones {
		assert.NoError(t, p.SetChecked(m, true))
	}
	assert.True(t, p.AllComplete())

	assert.NoError(t, p.SetChecked(types.MilestoneMedicalBooked, false))
	assert.False(t, p.AllComplete())
}
