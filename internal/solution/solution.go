// Package solution turns a photo and a description of a broken item into a
// Markdown repair guide.
package solution

import (
	"context"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"
)

// Request is what the caller knows about the broken item.
type Request struct {
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// Generator produces a repair solution.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Provider names accepted by SOLUTION_PROVIDER.
const (
	ProviderTemplate = "template"
	ProviderQuick    = "quick"
	ProviderGemini   = "gemini"
)

// lockedRand serialises access to a *rand.Rand, which is not safe for
// concurrent use on its own.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(r *rand.Rand) *lockedRand {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &lockedRand{r: r}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// excerpt returns the first n characters of s. Characters are runes, so an
// emoji counts once and is never cut in half.
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
