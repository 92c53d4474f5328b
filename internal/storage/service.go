// internal/storage/service.go - Service de stockage des documents soumis
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"fiche-worker/internal/retry"
	"fiche-worker/pkg/storage"
)

const (
	uploadAttempts = 3
	fetchAttempts  = 3
	fetchTimeout   = 8 * time.Second
)

// DocumentService écrit les documents soumis dans le storage et les
// rapatrie via leur URL publique pour alimenter le service génératif.
type DocumentService struct {
	backend    storage.Storage
	httpClient *http.Client
	now        func() time.Time

	uploadPolicy retry.Policy
	fetchPolicy  retry.Policy
}

func NewDocumentService(backend storage.Storage) *DocumentService {
	return &DocumentService{
		backend:      backend,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		now:          time.Now,
		uploadPolicy: retry.Exponential{Base: time.Second},
		fetchPolicy:  retry.Exponential{Base: time.Second},
	}
}

// StoreDocument écrit le document sous la clé docs/<timestamp>-<nom>.
// Le nom doit déjà être sanitisé. Trois tentatives avec backoff
// exponentiel (base 1s); l'épuisement retourne une *StorageError et
// aucune trace du job ne doit être persistée par l'appelant.
func (s *DocumentService) StoreDocument(ctx context.Context, filename, contentType string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", &StorageError{Path: filename, Err: fmt.Errorf("failed to read document: %w", err)}
	}

	path := fmt.Sprintf("docs/%d-%s", s.now().UnixMilli(), filename)

	err = retry.Do(ctx, uploadAttempts, s.uploadPolicy, func(ctx context.Context) error {
		if err := s.backend.Upload(ctx, path, contentType, bytes.NewReader(content)); err != nil {
			log.Printf("Upload attempt failed for %s: %v", path, err)
			return err
		}
		return nil
	})
	if err != nil {
		return "", &StorageError{Path: path, Err: err}
	}

	return path, nil
}

// FetchPublic rapatrie un document via son URL publique. Le flux passe
// par un fichier temporaire, supprimé sur tous les chemins de sortie.
// URL invalide, contenu vide ou tentatives épuisées → *FetchError.
func (s *DocumentService) FetchPublic(ctx context.Context, path string) ([]byte, error) {
	publicURL, err := s.backend.PublicURL(ctx, path)
	if err != nil {
		return nil, &FetchError{URL: path, Err: err}
	}

	parsed, err := url.ParseRequestURI(publicURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &FetchError{URL: publicURL, Err: fmt.Errorf("invalid public URL")}
	}

	tmp, err := os.CreateTemp("", "fiche-doc-*")
	if err != nil {
		return nil, &FetchError{URL: publicURL, Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	err = retry.Do(ctx, fetchAttempts, s.fetchPolicy, func(ctx context.Context) error {
		return s.downloadTo(ctx, publicURL, tmp)
	})
	if err != nil {
		return nil, &FetchError{URL: publicURL, Err: err}
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, &FetchError{URL: publicURL, Err: fmt.Errorf("failed to rewind temp file: %w", err)}
	}
	content, err := io.ReadAll(tmp)
	if err != nil {
		return nil, &FetchError{URL: publicURL, Err: fmt.Errorf("failed to read temp file: %w", err)}
	}
	if len(content) == 0 {
		return nil, &FetchError{URL: publicURL, Err: fmt.Errorf("downloaded document is empty")}
	}

	return content, nil
}

// downloadTo écrit le corps de la réponse dans dst, tronqué à chaque
// tentative pour qu'un téléchargement partiel ne pollue pas le suivant
func (s *DocumentService) downloadTo(ctx context.Context, publicURL string, dst *os.File) error {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, publicURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: http %d", resp.StatusCode)
	}

	if err := dst.Truncate(0); err != nil {
		return retry.Permanent(fmt.Errorf("failed to truncate temp file: %w", err))
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return retry.Permanent(fmt.Errorf("failed to rewind temp file: %w", err))
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}

	return nil
}
