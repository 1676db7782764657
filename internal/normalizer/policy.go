package normalizer

import "gemini-extract/internal/model"

// TabularPolicy says, per file category, whether the reply should be turned
// into a spreadsheet instead of being returned as text.
type TabularPolicy map[model.FileCategory]bool

// DefaultTabularPolicy extracts tables from PDFs and mail containers only.
func DefaultTabularPolicy() TabularPolicy {
	return TabularPolicy{
		model.CategoryMail:  true,
		model.CategoryPDF:   true,
		model.CategoryImage: false,
		model.CategoryText:  false,
	}
}

// PolicyFromConfig builds a policy from the yaml `tabular_output` table,
// starting from the defaults so that missing categories keep their default.
func PolicyFromConfig(cfg map[string]bool) TabularPolicy {
	p := DefaultTabularPolicy()
	for category, enabled := range cfg {
		p[model.FileCategory(category)] = enabled
	}
	return p
}

func (p TabularPolicy) clone() TabularPolicy {
	out := make(TabularPolicy, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
