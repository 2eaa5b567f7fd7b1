package pagetext

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgallion1/citecheck/internal/cache"
)

const cacheKind = "pages"

// Indexer builds PageMaps from PDF bytes. It tries the Go PDF library first,
// optionally falls back to pdftotext, and caches results by content hash so
// repeated runs over the same PDF skip parsing.
type Indexer struct {
	FallbackPdftotext bool

	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewIndexer(c cache.Cache, ttl time.Duration, fallback bool, log *slog.Logger) *Indexer {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		FallbackPdftotext: fallback,
		cache:             c,
		ttl:               ttl,
		log:               log,
	}
}

// Index returns the PageMap for data.
func (ix *Indexer) Index(ctx context.Context, data []byte) (PageMap, error) {
	key := cache.Key(cacheKind, data)
	if raw, ok := ix.cache.Get(key); ok {
		var pm PageMap
		if err := json.Unmarshal(raw, &pm); err == nil {
			ix.log.Debug("page map cache hit", "pages", pm.Len())
			return pm, nil
		}
		ix.log.Warn("discarding corrupt cached page map")
		_ = ix.cache.Delete(key)
	}

	pm, err := FromPDF(data)
	if err != nil && ix.FallbackPdftotext {
		ix.log.Debug("go pdf extraction failed, trying pdftotext", "error", err)
		fallback, ferr := FromPdftotext(ctx, data)
		switch {
		case ferr == nil:
			pm, err = fallback, nil
		case isUnreadable(ferr):
			err = ferr
		}
	}
	if err != nil {
		return PageMap{}, err
	}

	if raw, merr := json.Marshal(pm); merr == nil {
		if serr := ix.cache.Set(key, raw, ix.ttl); serr != nil {
			ix.log.Warn("page map cache write failed", "error", serr)
		}
	}
	return pm, nil
}
