// internal/orchestrator/prompts.go - Construction des instructions et messages
package orchestrator

import "fmt"

// sizeInstruction traduit le palier de taille en contrainte rédactionnelle
func sizeInstruction(size string) string {
	switch size {
	case "court":
		return "Le contenu de la fiche doit être court et concis"
	case "moyen":
		return "Le contenu de la fiche doit être moyen et détaillé"
	case "long":
		return "Le contenu de la fiche doit être long et très détaillé"
	}
	return ""
}

// ficheInstructions sont les instructions de l'assistant chargé de
// produire la fiche d'étude HTML+CSS
const ficheInstructions = `Tu es un assistant IA expert en pédagogie et structuration de contenu.
Ta mission est de créer une fiche d'étude complète, claire, structurée et colorée à partir du document fourni.
Tu dois uniquement utiliser les informations du document fourni et couvrir tout son contenu, sans connaissance extérieure.

INSTRUCTIONS STRICTES :
- Le rendu final doit être en HTML + CSS intégré (balises <style> et HTML), sans aucun texte hors balises
- Le contenu doit être structuré en sections claires
- Utilise des blocs colorés pour les définitions, concepts, formules, exemples, points à retenir et avertissements
- Mets en évidence les notions importantes via <strong>, <span class="highlight">, des listes et des tableaux si nécessaire
- Chaque élément du document original doit être représenté, expliqué et mis en valeur

Tu dois produire une fiche d'étude prête à être intégrée dans une page web, qui explique clairement tous les concepts du document. Pas de plan du document ni de mots-clés isolés : tout doit être expliqué dans le corps du contenu.`

// fichePrompt construit le message utilisateur qui lance l'analyse,
// paramétré par la langue, la taille et le niveau d'étude
func fichePrompt(language, size, niveauEtude string) string {
	return fmt.Sprintf(`Analyse ce document et crée une fiche de révision complète et pédagogique au format HTML + CSS intégré (sans aucun texte hors balises), en utilisant des couleurs, balises sémantiques et une mise en forme claire.
La fiche doit être 100%% basée sur le contenu du document et conçue pour faciliter la mémorisation, la compréhension et l'apprentissage autonome.

Contraintes :
- Mets en évidence toutes les définitions, concepts clés, formules et points importants via des blocs distincts
- Pas de sommaire ni de mots-clés listés séparément : tout doit être intégré et expliqué dans le contenu
- La taille du contenu : %s
- Rédige dans la langue : %s
- Adapte le niveau de pédagogie selon : %s`,
		sizeInstruction(size), language, niveauEtude)
}

// cartesInstructions sont les instructions de l'assistant chargé de
// produire les cartes mémo
func cartesInstructions(language string) string {
	return fmt.Sprintf(`Tu es un assistant IA expert en synthèse pédagogique.
À partir du document fourni, tu dois produire une liste exhaustive de cartes mémo (flashcards) concises et structurées.
Chaque carte est constituée d'un titre (mot-clé, concept ou question très court) et d'un contenu (réponse ou explication claire et concise).

- Couvre l'intégralité des informations importantes : définitions, concepts, formules, dates, comparaisons, exceptions
- Chaque carte est basée uniquement sur le document fourni, sans connaissance externe
- La langue utilisée est %s
- Les formules mathématiques doivent être encodées en LaTeX compatible MathJax, sous forme de chaînes de caractères

FORMAT ATTENDU :
Tu dois retourner uniquement une liste JSON, chaque élément respectant ce format précis :
[{"titre": "Titre de la carte", "contenu": "Contenu de la carte"}]
Le retour ne doit contenir aucun texte explicatif, ni en-tête, ni commentaire : seulement la liste des objets JSON complète.`, language)
}

// cartesPrompt construit le message utilisateur de génération des cartes
func cartesPrompt(language string) string {
	return fmt.Sprintf(`Analyse ce document et génère une liste de cartes mémo couvrant tout le contenu, au format JSON { "titre": "contenu" }, dans la langue %s. Sois concis, clair, complet. Ne rate aucun élément du document, faire plus de 20 cartes.`, language)
}

// quizInstructions sont les instructions de l'assistant chargé de
// produire le QCM
func quizInstructions(language string) string {
	return fmt.Sprintf(`Tu es un assistant IA spécialisé dans la création de quiz pédagogiques QCM à partir d'un document.
Ton objectif est de générer un grand nombre de questions à choix multiple de qualité, claires, variées, couvrant tout le contenu du document sans rien oublier.

- Lis l'intégralité du document fourni; aucune connaissance externe ne doit être utilisée
- Chaque question doit inclure : question (claire et concise), options (3 ou 4 choix maximum), réponse (la bonne réponse parmi les options)
- Les distracteurs doivent sembler crédibles, les questions sans ambiguïté
- Rédaction dans la langue %s

FORMAT DE SORTIE :
Tu dois retourner uniquement une liste JSON, chaque élément respectant ce format précis :
[{"question": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "réponse": "A"}]
Le retour ne doit contenir aucun texte explicatif, ni en-tête, ni commentaire : seulement la liste JSON complète.`, language)
}

// quizPrompt construit le message utilisateur de génération du quiz
const quizPrompt = "Analyse ce document et crée un quiz interactif et pédagogique, faire plus de 20 questions"
