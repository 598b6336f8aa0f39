package types

// Legislation is the structured record extracted from a bill or act. A single
// chunk yields a partially populated Legislation; the analyzer merges the
// partials into one record of the same shape.
type Legislation struct {
	ShortTitle                    string    `json:"short_title"`
	TableOfContents               string    `json:"table_of_contents"`
	FindingsOrPurpose             string    `json:"findings_or_purpose"`
	Definitions                   []string  `json:"definitions"`
	Amendments                    []string  `json:"amendments"`
	AuthorizationOfAppropriations string    `json:"authorization_of_appropriations"`
	EffectiveDate                 string    `json:"effective_date"`
	Sections                      []Section `json:"sections"`
	Legalese                      Legalese  `json:"legalese"`
}

// Section is one substantive provision of the legislation
type Section struct {
	SectionNumber   string `json:"section_number"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	Notes           string `json:"notes,omitempty"`
	UncommonSection bool   `json:"uncommon_section"`
}

// Legalese holds the specialised legal clauses of the legislation
type Legalese struct {
	SeverabilityClause    string   `json:"severability_clause,omitempty"`
	SunsetClause          string   `json:"sunset_clause,omitempty"`
	ReportingRequirements []string `json:"reporting_requirements"`
	RegulatoryAuthority   string   `json:"regulatory_authority,omitempty"`
	EnforcementProvisions []string `json:"enforcement_provisions"`
	ConformingAmendments  []string `json:"conforming_amendments"`
}

// NewLegislation returns an empty record with non-nil lists so that JSON
// output always carries arrays rather than nulls.
func NewLegislation() *Legislation {
	return &Legislation{
		Definitions: []string{},
		Amendments:  []string{},
		Sections:    []Section{},
		Legalese: Legalese{
			ReportingRequirements: []string{},
			EnforcementProvisions: []string{},
			ConformingAmendments:  []string{},
		},
	}
}

// Clone returns a deep copy
func (l *Legislation) Clone() *Legislation {
	if l == nil {
		return nil
	}
	c := *l
	c.Definitions = append([]string(nil), l.Definitions...)
	c.Amendments = append([]string(nil), l.Amendments...)
	c.Sections = append([]Section(nil), l.Sections...)
	c.Legalese.ReportingRequirements = append([]string(nil), l.Legalese.ReportingRequirements...)
	c.Legalese.EnforcementProvisions = append([]string(nil), l.Legalese.EnforcementProvisions...)
	c.Legalese.ConformingAmendments = append([]string(nil), l.Legalese.ConformingAmendments...)
	return &c
}

// IsEmpty reports whether no field carries any content
func (l *Legislation) IsEmpty() bool {
	if l == nil {
		return true
	}
	return l.ShortTitle == "" && l.TableOfContents == "" && l.FindingsOrPurpose == "" &&
		l.AuthorizationOfAppropriations == "" && l.EffectiveDate == "" &&
		len(l.Definitions) == 0 && len(l.Amendments) == 0 && len(l.Sections) == 0 &&
		l.Legalese.SeverabilityClause == "" && l.Legalese.SunsetClause == "" &&
		l.Legalese.RegulatoryAuthority == "" && len(l.Legalese.ReportingRequirements) == 0 &&
		len(l.Legalese.EnforcementProvisions) == 0 && len(l.Legalese.ConformingAmendments) == 0
}

// Normalize replaces nil lists with empty ones, as decoded model output may
// carry nulls for missing arrays
func (l *Legislation) Normalize() {
	if l.Definitions == nil {
		l.Definitions = []string{}
	}
	if l.Amendments == nil {
		l.Amendments = []string{}
	}
	if l.Sections == nil {
		l.Sections = []Section{}
	}
	if l.Legalese.ReportingRequirements == nil {
		l.Legalese.ReportingRequirements = []string{}
	}
	if l.Legalese.EnforcementProvisions == nil {
		l.Legalese.EnforcementProvisions = []string{}
	}
	if l.Legalese.ConformingAmendments == nil {
		l.Legalese.ConformingAmendments = []string{}
	}
}
