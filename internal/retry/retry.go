// internal/retry/retry.go - Utilitaire partagé de retry/backoff
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy calcule l'attente avant la prochaine tentative. attempt est le
// numéro (1-based) de la tentative qui vient d'échouer; err est l'erreur
// retournée, ce qui permet un traitement spécifique du rate limiting.
type Policy interface {
	Wait(attempt int, err error) time.Duration
}

// Exponential double l'attente à chaque tentative: Base, 2*Base, 4*Base...
type Exponential struct {
	Base          time.Duration
	Cap           time.Duration // 0 = pas de plafond
	RateLimitWait time.Duration // attente dédiée sur erreur 429
}

func (p Exponential) Wait(attempt int, err error) time.Duration {
	if p.RateLimitWait > 0 && IsRateLimited(err) {
		return p.RateLimitWait
	}
	wait := p.Base << uint(attempt-1)
	if p.Cap > 0 && wait > p.Cap {
		wait = p.Cap
	}
	return wait
}

// Fixed attend le même intervalle entre chaque tentative
type Fixed struct {
	Interval      time.Duration
	RateLimitWait time.Duration
}

func (p Fixed) Wait(attempt int, err error) time.Duration {
	if p.RateLimitWait > 0 && IsRateLimited(err) {
		return p.RateLimitWait
	}
	return p.Interval
}

// Progressive fait croître l'attente doucement: Base * (1 + attempt/5),
// plafonnée à Cap. C'est le calendrier utilisé pour l'attente d'indexation.
type Progressive struct {
	Base          time.Duration
	Cap           time.Duration
	RateLimitWait time.Duration
}

func (p Progressive) Wait(attempt int, err error) time.Duration {
	if p.RateLimitWait > 0 && IsRateLimited(err) {
		return p.RateLimitWait
	}
	wait := time.Duration(float64(p.Base) * (1 + float64(attempt)/5))
	if p.Cap > 0 && wait > p.Cap {
		wait = p.Cap
	}
	return wait
}

// BudgetExhaustedError est retournée quand toutes les tentatives sont
// épuisées. Les erreurs intermédiaires sont absorbées: seule la dernière
// est conservée.
type BudgetExhaustedError struct {
	Attempts int
	Last     error
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("attempt budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *BudgetExhaustedError) Unwrap() error {
	return e.Last
}

// permanentError marque une erreur qui ne doit pas être retentée
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent enveloppe une erreur pour court-circuiter le retry: Do la
// retourne immédiatement, déballée.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// rateLimited est implémentée par les erreurs signalant un 429 distant
type rateLimited interface {
	IsRateLimited() bool
}

// IsRateLimited retourne true si err signale un rate limit distant
func IsRateLimited(err error) bool {
	var rl rateLimited
	return errors.As(err, &rl) && rl.IsRateLimited()
}

// Do exécute op jusqu'à maxAttempts fois. Entre deux tentatives, l'attente
// est donnée par policy. Une erreur Permanent stoppe immédiatement; une
// annulation de contexte aussi. L'épuisement du budget retourne une
// *BudgetExhaustedError enveloppant la dernière erreur observée.
func Do(ctx context.Context, maxAttempts int, policy Policy, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Wait(attempt, err)):
		}
	}

	return &BudgetExhaustedError{Attempts: maxAttempts, Last: lastErr}
}
