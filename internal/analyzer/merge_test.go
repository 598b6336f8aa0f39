package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docextract/pkg/types"
)

func partial(mutate func(*types.Legislation)) *types.Legislation {
	doc := types.NewLegislation()
	mutate(doc)
	return doc
}

func TestMergeScalarFirstWins(t *testing.T) {
	results := []types.ChunkResult{
		types.Success(10, 5, partial(func(d *types.Legislation) { d.ShortTitle = "Act Y" })),
		types.Success(0, 5, partial(func(d *types.Legislation) { d.ShortTitle = "Act X" })),
	}

	merged, err := Merge(results)
	require.NoError(t, err)
	assert.Equal(t, "Act X", merged.ShortTitle)
}

func TestMergeEmptyScalarDoesNotBlock(t *testing.T) {
	results := []types.ChunkResult{
		types.Success(0, 5, partial(func(d *types.Legislation) { d.EffectiveDate = "  " })),
		types.Success(5, 5, partial(func(d *types.Legislation) { d.EffectiveDate = "January 1, 2027" })),
		types.Success(9, 5, partial(func(d *types.Legislation) { d.EffectiveDate = "upon enactment" })),
	}

	merged, err := Merge(results)
	require.NoError(t, err)
	assert.Equal(t, "January 1, 2027", merged.EffectiveDate)
}

func TestMergeListConcatenationOrder(t *testing.T) {
	results := []types.ChunkResult{
		types.Success(10, 5, partial(func(d *types.Legislation) { d.Definitions = []string{"foo"} })),
		types.Success(0, 5, partial(func(d *types.Legislation) { d.Definitions = []string{"bar"} })),
	}

	merged, err := Merge(results)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, merged.Definitions)
}

func TestMergeKeepsDuplicates(t *testing.T) {
	sec := types.Section{SectionNumber: "2", Title: "Definitions"}
	results := []types.ChunkResult{
		types.Success(0, 5, partial(func(d *types.Legislation) { d.Sections = []types.Section{sec} })),
		types.Success(4, 5, partial(func(d *types.Legislation) { d.Sections = []types.Section{sec} })),
	}

	merged, err := Merge(results)
	require.NoError(t, err)
	assert.Len(t, merged.Sections, 2, "overlap duplicates are not removed")
}

func TestMergeLegalese(t *testing.T) {
	results := []types.ChunkResult{
		types.Success(20, 5, partial(func(d *types.Legislation) {
			d.Legalese.SunsetClause = "expires 2030"
			d.Legalese.ReportingRequirements = []string{"annual report"}
			d.Legalese.SeverabilityClause = "late severability"
		})),
		types.Success(0, 5, partial(func(d *types.Legislation) {
			d.Legalese.SeverabilityClause = "held invalid"
			d.Legalese.ReportingRequirements = []string{"quarterly report"}
			d.Legalese.EnforcementProvisions = []string{"civil penalty"}
		})),
	}

	merged, err := Merge(results)
	require.NoError(t, err)
	assert.Equal(t, "held invalid", merged.Legalese.SeverabilityClause)
	assert.Equal(t, "expires 2030", merged.Legalese.SunsetClause)
	assert.Empty(t, merged.Legalese.RegulatoryAuthority)
	assert.Equal(t, []string{"quarterly report", "annual report"}, merged.Legalese.ReportingRequirements)
	assert.Equal(t, []string{"civil penalty"}, merged.Legalese.EnforcementProvisions)
	assert.NotNil(t, merged.Legalese.ConformingAmendments)
}

func TestMergeDeterministic(t *testing.T) {
	a := types.Success(0, 5, partial(func(d *types.Legislation) {
		d.ShortTitle = "A"
		d.Amendments = []string{"a1", "a2"}
	}))
	b := types.Success(7, 5, partial(func(d *types.Legislation) {
		d.ShortTitle = "B"
		d.TableOfContents = "toc"
		d.Amendments = []string{"b1"}
		d.Sections = []types.Section{{SectionNumber: "3"}}
	}))
	c := types.Success(14, 5, partial(func(d *types.Legislation) {
		d.FindingsOrPurpose = "purpose"
		d.Amendments = []string{"c1"}
		d.Sections = []types.Section{{SectionNumber: "4"}}
	}))
	failed := types.Failure(3, 5, types.ErrExtractionFailed)

	orderings := [][]types.ChunkResult{
		{a, b, c, failed},
		{c, b, a, failed},
		{failed, b, c, a},
		{b, failed, a, c},
		{c, a, failed, b},
	}

	want, err := Merge(orderings[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1", "c1"}, want.Amendments)
	assert.Equal(t, "A", want.ShortTitle)
	assert.Equal(t, "toc", want.TableOfContents)

	for _, order := range orderings[1:] {
		got, err := Merge(order)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMergeDoesNotMutatePartials(t *testing.T) {
	first := partial(func(d *types.Legislation) { d.Definitions = make([]string, 1, 8) })
	first.Definitions[0] = "one"
	second := partial(func(d *types.Legislation) { d.Definitions = []string{"two"} })

	merged, err := Merge([]types.ChunkResult{types.Success(0, 1, first), types.Success(1, 1, second)})
	require.NoError(t, err)

	merged.Definitions[0] = "changed"
	assert.Equal(t, []string{"one"}, first.Definitions)
	assert.Equal(t, []string{"two"}, second.Definitions)
}

func TestMergeNoSuccesses(t *testing.T) {
	_, err := Merge(nil)
	assert.ErrorIs(t, err, types.ErrNoChunksSucceeded)

	_, err = Merge([]types.ChunkResult{
		types.Failure(0, 5, errors.New("boom")),
		types.Failure(5, 5, types.ErrRetryExhausted),
	})
	assert.ErrorIs(t, err, types.ErrNoChunksSucceeded)
}

func TestMergeEmptyPartialsSucceed(t *testing.T) {
	merged, err := Merge([]types.ChunkResult{types.Success(0, 5, types.NewLegislation())})
	require.NoError(t, err)
	assert.True(t, merged.IsEmpty())
	assert.NotNil(t, merged.Sections)
}
