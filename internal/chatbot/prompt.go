package chatbot

import (
	"fmt"
	"strings"

	"bladi-assistant/internal/ai"
	"bladi-assistant/internal/model"
)

const (
	questionPrefix = "Question: "
	answerPrefix   = "Réponse: "
)

var stopSequences = []string{"Question:", "Réponse:", "User:", "Assistant:"}

// artifactMarkers are stripped from model output before validation.
var artifactMarkers = []string{"Réponse:", "Assistant:"}

const ClarificationText = `🇲🇦 Je remarque que vous avez posé une question similaire.

Pour vous aider au mieux, pourriez-vous :
• Préciser votre question
• Donner plus de détails sur votre situation
• Me dire si ma réponse précédente n'était pas claire

Je suis là pour vous aider avec précision !`

const FallbackText = `🇲🇦 Je rencontre une difficulté technique temporaire.

En attendant, je peux vous orienter vers nos ressources :

• 📊 Questions fiscales → Consultez notre guide fiscal MRE
• 🏠 Immobilier → Découvrez nos opportunités d'investissement
• 💰 Placements → Explorez nos solutions d'épargne
• 📋 Administration → Trouvez les formulaires consulaires
• 🎓 Formation → Parcourez notre catalogue de formations

💡 Pour une assistance personnalisée immédiate, n'hésitez pas à vous inscrire sur notre plateforme ou à contacter directement nos experts.`

const systemPromptTemplate = `Tu es un expert des services aux Marocains Résidant à l'Étranger (MRE).

DOMAINES D'EXPERTISE EXCLUSIFS:
- 📊 Fiscalité (impôts, déclarations, conventions fiscales)
- 🏠 Immobilier au Maroc (achat, vente, investissement)
- 💰 Investissements (OPCVM, bourse, projets)
- 📋 Administration (documents, visas, consulats)
- 🎓 Formation professionnelle (certifications, reconversion)

INSTRUCTIONS STRICTES:
1. Réponds UNIQUEMENT aux questions liées à ces 5 domaines
2. Si la question est hors sujet, réponds poliment que tu ne peux traiter que les sujets MRE
3. Si tu ne peux pas répondre précisément, propose une assistance personnalisée
4. L'utilisateur est actuellement: %s

LOGIQUE CONDITIONNELLE:
- Si nouveau visiteur → propose inscription sur la plateforme
- Si client inscrit → propose de remplir une demande de service

STYLE DE RÉPONSE:
- Utilise le drapeau 🇲🇦 dans tes messages
- Reste professionnel mais chaleureux
- Sois concis et précis
- Utilise des puces pour organiser l'information
- Propose toujours une action concrète

Réponds en français uniquement.`

func SystemPrompt(registered bool) string {
	status := "nouveau visiteur"
	if registered {
		status = "client inscrit"
	}
	return fmt.Sprintf(systemPromptTemplate, status)
}

// BuildPrompt assembles the system entry, the recent messages in
// chronological order and the current question.
func BuildPrompt(registered bool, recent []model.Message, userText string) []ai.Content {
	contents := make([]ai.Content, 0, len(recent)+2)
	contents = append(contents, ai.TextContent(ai.RoleSystem, SystemPrompt(registered)))
	for _, msg := range recent {
		if msg.Role == model.RoleBot {
			contents = append(contents, ai.TextContent(ai.RoleModel, answerPrefix+msg.Content))
			continue
		}
		contents = append(contents, ai.TextContent(ai.RoleUser, questionPrefix+msg.Content))
	}
	contents = append(contents, ai.TextContent(ai.RoleUser, questionPrefix+userText))
	return contents
}

func GenerationConfig() ai.GenerationConfig {
	return ai.GenerationConfig{
		Temperature:     0.7,
		TopK:            20,
		TopP:            0.8,
		MaxOutputTokens: 800,
		StopSequences:   append([]string(nil), stopSequences...),
	}
}

func stripArtifacts(text string) string {
	for _, marker := range artifactMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	return strings.TrimSpace(text)
}
