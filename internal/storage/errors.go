package storage

import "fmt"

// StorageError signale l'échec définitif d'une écriture vers le
// storage, après épuisement des tentatives. Aucun job n'est créé
// dans ce cas.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure for %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FetchError signale l'échec du rapatriement d'un document via son
// URL publique: URL invalide, téléchargement vide ou tentatives
// épuisées.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failure for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
