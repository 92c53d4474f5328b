// internal/validation/api_validation.go - Validation spécifique à l'API
package validation

import (
	"mime/multipart"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// APIValidator gère la validation des requêtes API
type APIValidator struct {
	validationService *ValidationService
}

// NewAPIValidator crée un nouveau validateur d'API
func NewAPIValidator(config *ValidationConfig) *APIValidator {
	return &APIValidator{
		validationService: NewValidationService(config),
	}
}

// SubmitParams contient les champs du formulaire de soumission
type SubmitParams struct {
	Language    string
	Size        string
	NiveauEtude string
	MatiereID   string
	FicheName   string
}

// ValidateSubmitRequest valide la requête de soumission complète
func (av *APIValidator) ValidateSubmitRequest(file *multipart.FileHeader, params SubmitParams) *ValidationResult {
	result := &ValidationResult{Valid: true}

	result.Merge(av.validationService.ValidateFileHeader(file))
	result.Merge(av.validationService.ValidateGenerationParams(params.Language, params.Size, params.NiveauEtude))
	result.Merge(av.validationService.ValidateMatiereID(params.MatiereID))

	return result
}

// ValidateJobIDParam valide un paramètre job id depuis l'URL
func (av *APIValidator) ValidateJobIDParam(jobIDStr string) (uuid.UUID, *ValidationResult) {
	result := av.validationService.ValidateJobID(jobIDStr)

	if !result.Valid {
		return uuid.Nil, result
	}

	jobID, _ := uuid.Parse(jobIDStr)
	return jobID, result
}

var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename normalise un nom de fichier pour le stockage: les
// accents sont supprimés (décomposition NFD), tout caractère hors
// [A-Za-z0-9.-] devient un underscore, et les underscores consécutifs
// sont fusionnés. Idempotente: sanitiser un nom déjà sanitisé ne change rien.
func (av *APIValidator) SanitizeFilename(filename string) string {
	decomposed := norm.NFD.String(filename)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Marque combinante issue de la décomposition: l'accent lui-même
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	sanitized := multiUnderscore.ReplaceAllString(b.String(), "_")
	if sanitized == "" {
		sanitized = "unnamed_file"
	}

	return sanitized
}
