package musicinfo

import (
	"context"

	"musicinfo/internal/logger"
)

// Chain tries artist providers in order and returns the first partial that
// carries an image. Later providers are not called once one succeeds.
type Chain struct {
	providers []ArtistProvider
	logger    *logger.Logger
}

// NewChain creates a Chain that queries providers in order.
func NewChain(providers []ArtistProvider, log *logger.Logger) *Chain {
	return &Chain{providers: providers, logger: log}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) FetchArtist(ctx context.Context, artist string) (Partial, bool) {
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return Partial{}, false
		}
		partial, ok := p.FetchArtist(ctx, artist)
		if ok && partial.ImageURL != "" {
			c.logger.Debug("artist image for %q from %s", artist, p.Name())
			return partial, true
		}
		c.logger.Debug("provider %s has no image for %q", p.Name(), artist)
	}
	return Partial{}, false
}
