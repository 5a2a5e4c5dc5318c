package chatbot

import (
	"strings"

	"bladi-assistant/internal/model"
)

type keywordRule struct {
	category model.Category
	keywords []string
}

// Rules are tested in order and the first category with a matching keyword
// wins. Keywords match as substrings, so short ones like "ir" are greedy.
var keywordRules = []keywordRule{
	{model.CategoryFiscalite, []string{"impôt", "taxe", "déclaration", "fiscal", "tva", "ir", "is", "convention"}},
	{model.CategoryImmobilier, []string{"maison", "appartement", "terrain", "achat", "vente", "location", "immobilier"}},
	{model.CategoryInvestissement, []string{"investir", "placement", "bourse", "opcvm", "action", "obligation", "projet"}},
	{model.CategoryAdministration, []string{"consulat", "passeport", "visa", "état civil", "document", "carte"}},
	{model.CategoryFormation, []string{"formation", "diplôme", "certification", "cours", "apprentissage", "métier"}},
}

// Classify maps free text to a topic category, CategoryOther when nothing
// matches.
func Classify(text string) model.Category {
	lowered := strings.ToLower(text)
	for _, rule := range keywordRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.category
			}
		}
	}
	return model.CategoryOther
}
