package analyzer

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dshills/docextract/pkg/types"
)

// Merge aggregates the successful results into one record. Results are
// ordered by position first, so the output is identical for any input
// order. Lists are concatenated in position order without de-duplication;
// each scalar keeps the first non-empty value. Partial documents are read,
// never modified.
func Merge(results []types.ChunkResult) (*types.Legislation, error) {
	ordered := make([]types.ChunkResult, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			ordered = append(ordered, r)
		}
	}
	if len(ordered) == 0 {
		return nil, types.ErrNoChunksSucceeded
	}

	slices.SortStableFunc(ordered, func(a, b types.ChunkResult) int {
		return cmp.Compare(a.Position, b.Position)
	})

	merged := types.NewLegislation()
	for _, r := range ordered {
		mergeInto(merged, r.Document)
	}
	return merged, nil
}

func mergeInto(dst, src *types.Legislation) {
	setFirst(&dst.ShortTitle, src.ShortTitle)
	setFirst(&dst.TableOfContents, src.TableOfContents)
	setFirst(&dst.FindingsOrPurpose, src.FindingsOrPurpose)
	setFirst(&dst.AuthorizationOfAppropriations, src.AuthorizationOfAppropriations)
	setFirst(&dst.EffectiveDate, src.EffectiveDate)

	dst.Definitions = append(dst.Definitions, src.Definitions...)
	dst.Amendments = append(dst.Amendments, src.Amendments...)
	dst.Sections = append(dst.Sections, src.Sections...)

	setFirst(&dst.Legalese.SeverabilityClause, src.Legalese.SeverabilityClause)
	setFirst(&dst.Legalese.SunsetClause, src.Legalese.SunsetClause)
	setFirst(&dst.Legalese.RegulatoryAuthority, src.Legalese.RegulatoryAuthority)
	dst.Legalese.ReportingRequirements = append(dst.Legalese.ReportingRequirements, src.Legalese.ReportingRequirements...)
	dst.Legalese.EnforcementProvisions = append(dst.Legalese.EnforcementProvisions, src.Legalese.EnforcementProvisions...)
	dst.Legalese.ConformingAmendments = append(dst.Legalese.ConformingAmendments, src.Legalese.ConformingAmendments...)
}

// setFirst assigns v only while dst is still empty. Whitespace-only values
// count as empty.
func setFirst(dst *string, v string) {
	if *dst == "" && strings.TrimSpace(v) != "" {
		*dst = v
	}
}
