package rag

// Trigger maps a literal substring of a snippet preview to a canned query.
// Matching is case-sensitive.
type Trigger struct {
	Contains string `yaml:"contains" json:"contains"`
	Query    string `yaml:"query" json:"query"`
}

// Vocabulary holds the domain word lists and result limits used by the
// heuristic. The zero value is not useful; start from DefaultVocabulary.
type Vocabulary struct {
	Keywords    []string  `yaml:"keywords"`
	Triggers    []Trigger `yaml:"triggers"`
	MaxTopics   int       `yaml:"max_topics"`
	MaxBroad    int       `yaml:"max_broad"`
	MaxSpecific int       `yaml:"max_specific"`
}

// DefaultVocabulary is the mortgage-lending vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Keywords: []string{
			"borrower", "loan", "mortgage", "income", "eligibility", "requirements",
			"rental", "property", "financing", "homeready", "qualifying", "ltv",
			"cltv", "hcltv", "subordinate", "buydown", "appraisal", "credit",
		},
		Triggers: []Trigger{
			{"Monthly Qualifying Rental Income", "How to calculate monthly qualifying rental income?"},
			{"Borrower Eligibility Requirements", "What are the general borrower eligibility requirements?"},
			{"HomeReady Transactions", "What are HomeReady transaction requirements for high LTV ratios?"},
			{"first-time homebuyer", "What are the first-time homebuyer criteria?"},
			{"subordinate financing", "Rules for subordinate financing in mortgages"},
			{"credit report", "Credit report requirements for loan applications"},
		},
		MaxTopics:   10,
		MaxBroad:    4,
		MaxSpecific: 6,
	}
}

// withDefaults fills empty fields from DefaultVocabulary, so a partial YAML
// section only overrides what it names.
func (v Vocabulary) withDefaults() Vocabulary {
	d := DefaultVocabulary()
	if v.Keywords == nil {
		v.Keywords = d.Keywords
	}
	if v.Triggers == nil {
		v.Triggers = d.Triggers
	}
	if v.MaxTopics <= 0 {
		v.MaxTopics = d.MaxTopics
	}
	if v.MaxBroad <= 0 {
		v.MaxBroad = d.MaxBroad
	}
	if v.MaxSpecific <= 0 {
		v.MaxSpecific = d.MaxSpecific
	}
	return v
}
