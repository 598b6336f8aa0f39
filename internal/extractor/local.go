package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/dshills/docextract/pkg/types"
)

// LocalModel is the model name reported by LocalProvider
const LocalModel = "heuristic-v1"

var (
	shortTitleRe   = regexp.MustCompile(`(?i)may be cited as (?:the )?["“]([^"”]+)["”]`)
	sectionRe      = regexp.MustCompile(`(?m)^\s*(?:SEC\.|SECTION|Sec\.)\s+(\d+[A-Za-z]?)\.\s*(.*)$`)
	definitionRe   = regexp.MustCompile(`(?i)the term ["“]([^"”]+)["”] means`)
	effectiveRe    = regexp.MustCompile(`(?i)[^.]*\btake(?:s)? effect\b[^.]*\.`)
	amendmentRe    = regexp.MustCompile(`(?i)[^.]*\bis (?:hereby )?amended\b[^.]*\.`)
	appropriateRe  = regexp.MustCompile(`(?i)[^.]*\bauthorized to be appropriated\b[^.]*\.`)
	findingsRe     = regexp.MustCompile(`(?i)[^.]*\b(?:congress finds|the purposes? of this act)\b[^.]*\.`)
	severabilityRe = regexp.MustCompile(`(?i)[^.]*\b(?:held (?:to be )?invalid|are severable)\b[^.]*\.`)
	sunsetRe       = regexp.MustCompile(`(?i)[^.]*\b(?:shall cease to (?:be in )?effect|sunset|shall expire)\b[^.]*\.`)
	regulationsRe  = regexp.MustCompile(`(?i)[^.]*\bshall (?:promulgate|issue) (?:such )?regulations\b[^.]*\.`)
	reportRe       = regexp.MustCompile(`(?i)[^.]*\bshall submit (?:to [^.]*)?(?:a )?report\b[^.]*\.`)
	penaltyRe      = regexp.MustCompile(`(?i)[^.]*\b(?:civil penalty|shall be fined|imprisoned)\b[^.]*\.`)
	conformingRe   = regexp.MustCompile(`(?i)[^.]*\bconforming amendment[^.]*\.`)
	legislativeRe  = regexp.MustCompile(`(?i)\b(?:be it enacted|sec\.\s+\d+|this act|congress|is amended|shall take effect|united states code)\b`)
)

// commonHeadings are section titles found in most bills; anything else is
// flagged as uncommon
var commonHeadings = []string{
	"short title", "table of contents", "findings", "purpose", "definitions",
	"authorization of appropriations", "effective date", "severability",
	"regulations", "rule of construction", "conforming amendments", "report",
}

// LocalProvider extracts with regular expressions over common drafting
// conventions. It needs no network access and is deterministic, which makes
// it the fallback when no API key is configured.
type LocalProvider struct{}

// NewLocalProvider creates a heuristic extractor
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// Extract implements Extractor
func (p *LocalProvider) Extract(ctx context.Context, instructions, text string) (*types.Legislation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}

	doc := types.NewLegislation()
	if m := shortTitleRe.FindStringSubmatch(text); m != nil {
		doc.ShortTitle = strings.TrimSpace(m[1])
	}
	doc.FindingsOrPurpose = firstMatch(findingsRe, text)
	doc.EffectiveDate = firstMatch(effectiveRe, text)
	doc.AuthorizationOfAppropriations = firstMatch(appropriateRe, text)
	doc.Amendments = allMatches(amendmentRe, text)

	for _, m := range definitionRe.FindAllStringSubmatch(text, -1) {
		doc.Definitions = append(doc.Definitions, strings.TrimSpace(m[1]))
	}

	doc.Sections = extractSections(text)
	if len(doc.Sections) > 1 {
		titles := make([]string, 0, len(doc.Sections))
		for _, s := range doc.Sections {
			titles = append(titles, "Sec. "+s.SectionNumber+". "+s.Title)
		}
		doc.TableOfContents = strings.Join(titles, "\n")
	}

	doc.Legalese.SeverabilityClause = firstMatch(severabilityRe, text)
	doc.Legalese.SunsetClause = firstMatch(sunsetRe, text)
	doc.Legalese.RegulatoryAuthority = firstMatch(regulationsRe, text)
	doc.Legalese.ReportingRequirements = allMatches(reportRe, text)
	doc.Legalese.EnforcementProvisions = allMatches(penaltyRe, text)
	doc.Legalese.ConformingAmendments = allMatches(conformingRe, text)

	return doc, nil
}

// Validate implements Validator by counting legislative markers
func (p *LocalProvider) Validate(ctx context.Context, text string) (*types.Validation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}

	distinct := make(map[string]struct{})
	for _, m := range legislativeRe.FindAllString(text, -1) {
		marker := strings.ToLower(strings.Join(strings.Fields(m), " "))
		if strings.HasPrefix(marker, "sec.") {
			marker = "sec."
		}
		distinct[marker] = struct{}{}
	}
	score := float64(len(distinct)) / 4
	if score > 1 {
		score = 1
	}
	return &types.Validation{
		IsLegislation:   len(distinct) >= 2,
		ConfidenceScore: score,
	}, nil
}

// Provider implements Extractor
func (p *LocalProvider) Provider() string {
	return ProviderLocal
}

// Model implements Extractor
func (p *LocalProvider) Model() string {
	return LocalModel
}

func extractSections(text string) []types.Section {
	locs := sectionRe.FindAllStringSubmatchIndex(text, -1)
	sections := make([]types.Section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		title := strings.TrimSpace(text[loc[4]:loc[5]])
		sections = append(sections, types.Section{
			SectionNumber:   text[loc[2]:loc[3]],
			Title:           title,
			Content:         strings.TrimSpace(text[loc[1]:end]),
			UncommonSection: !isCommonHeading(title),
		})
	}
	return sections
}

func isCommonHeading(title string) bool {
	t := strings.ToLower(title)
	for _, h := range commonHeadings {
		if strings.Contains(t, h) {
			return true
		}
	}
	return false
}

func firstMatch(re *regexp.Regexp, text string) string {
	return strings.TrimSpace(re.FindString(text))
}

func allMatches(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}
