package model

// Category is the topic a user question was classified into.
type Category string

const (
	CategoryFiscalite      Category = "fiscalite"
	CategoryImmobilier     Category = "immobilier"
	CategoryInvestissement Category = "investissement"
	CategoryAdministration Category = "administration"
	CategoryFormation      Category = "formation"
	CategoryOther          Category = "other"
)

// Categories lists every category, off-topic last.
func Categories() []Category {
	return []Category{
		CategoryFiscalite,
		CategoryImmobilier,
		CategoryInvestissement,
		CategoryAdministration,
		CategoryFormation,
		CategoryOther,
	}
}

// AnalyticsColumn is the DailyAnalytics counter credited for the category.
func (c Category) AnalyticsColumn() string {
	switch c {
	case CategoryFiscalite:
		return "fiscalite_questions"
	case CategoryImmobilier:
		return "immobilier_questions"
	case CategoryInvestissement:
		return "investissement_questions"
	case CategoryAdministration:
		return "administration_questions"
	case CategoryFormation:
		return "formation_questions"
	default:
		return "off_topic_questions"
	}
}

// StatsKey names the category in analytics read models; off-topic questions
// are reported as "off_topic".
func (c Category) StatsKey() string {
	if c == CategoryOther {
		return "off_topic"
	}
	return string(c)
}
