// internal/validation/sanitize_filename_test.go - Tests pour la sanitisation
package validation

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	validator := NewAPIValidator(nil)

	tests := []struct {
		input    string
		expected string
		name     string
	}{
		{
			input:    "cours.pdf",
			expected: "cours.pdf",
			name:     "normal filename",
		},
		{
			input:    "géométrie.pdf",
			expected: "geometrie.pdf",
			name:     "accents are stripped",
		},
		{
			input:    "Contrôle N°3 – Électricité.pdf",
			expected: "Controle_N_3_Electricite.pdf",
			name:     "mixed accents and symbols",
		},
		{
			input:    "mon cours de maths.pdf",
			expected: "mon_cours_de_maths.pdf",
			name:     "spaces become underscores",
		},
		{
			input:    "a   b.pdf",
			expected: "a_b.pdf",
			name:     "consecutive replacements collapse",
		},
		{
			input:    "chapitre_1__suite.pdf",
			expected: "chapitre_1_suite.pdf",
			name:     "existing double underscores collapse",
		},
		{
			input:    "fiche-revision.2024.pdf",
			expected: "fiche-revision.2024.pdf",
			name:     "dots and dashes preserved",
		},
		{
			input:    "数学ノート.pdf",
			expected: "_.pdf",
			name:     "non-latin characters collapse to one underscore",
		},
		{
			input:    "",
			expected: "unnamed_file",
			name:     "empty filename falls back",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validator.SanitizeFilename(tt.input)
			assert.Equal(t, tt.expected, result, "Input: %s", tt.input)
		})
	}
}

func TestSanitizeFilenameIdempotent(t *testing.T) {
	validator := NewAPIValidator(nil)

	inputs := []string{
		"géométrie élémentaire.pdf",
		"cours (version finale) [2].pdf",
		"été_à_la_plage.png",
		"___.pdf",
		"",
		"déjà-sanitisé.pdf",
	}

	for _, input := range inputs {
		once := validator.SanitizeFilename(input)
		twice := validator.SanitizeFilename(once)
		assert.Equal(t, once, twice, "Sanitize must be idempotent for %q", input)
	}
}

func TestSanitizeFilenameOutputAlphabet(t *testing.T) {
	validator := NewAPIValidator(nil)

	// Sortie totale: toujours non vide, alphabet restreint, pas de doubles underscores
	pattern := regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

	inputs := []string{
		"cours.pdf",
		"résumé d'histoire.pdf",
		"💡notes💡.png",
		"\t\n.pdf",
		"ça/va\\bien?.jpeg",
		"",
	}

	for _, input := range inputs {
		result := validator.SanitizeFilename(input)
		assert.Regexp(t, pattern, result, "Input: %q", input)
		assert.NotContains(t, result, "__", "Input: %q", input)
	}
}
