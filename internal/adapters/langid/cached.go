package langid

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type guesser interface {
	Guess(ctx context.Context, text string) (*Guess, error)
}

// CachedGuesser memoizes guesses of a slower backend. Errors are not cached.
type CachedGuesser struct {
	next  guesser
	cache *expirable.LRU[string, cachedGuess]
}

type cachedGuess struct {
	guess *Guess
}

func NewCachedGuesser(next guesser, size int, ttl time.Duration) *CachedGuesser {
	return &CachedGuesser{
		next:  next,
		cache: expirable.NewLRU[string, cachedGuess](size, nil, ttl),
	}
}

func (c *CachedGuesser) Guess(ctx context.Context, text string) (*Guess, error) {
	if hit, ok := c.cache.Get(text); ok {
		return hit.guess, nil
	}
	guess, err := c.next.Guess(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, cachedGuess{guess: guess})
	return guess, nil
}
