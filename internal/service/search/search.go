package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
)

const (
	serviceName = "search"

	DefaultMoreLimit = 15

	// A drop in seeds is significant when the next result has this many times fewer.
	significantDrop = 2.0
	maxPopular      = 10
)

type Tracker interface {
	Search(ctx context.Context, query string) ([]entity.SearchResult, error)
}

type ResultCache interface {
	Create(ctx context.Context, results []entity.SearchResult) (string, error)
	Get(ctx context.Context, token string) ([]entity.SearchResult, bool, error)
}

// More points to the cached overflow of a search.
type More struct {
	Token string
	Count int
}

type Found struct {
	Results []entity.RankedSearchResult
	More    *More
}

type searchService struct {
	tracker   Tracker
	cache     ResultCache
	moreLimit int
	log       *slog.Logger
}

func NewSearchService(tracker Tracker, cache ResultCache, moreLimit int, log *slog.Logger) *searchService {
	if moreLimit <= 0 {
		moreLimit = DefaultMoreLimit
	}

	return &searchService{
		tracker:   tracker,
		cache:     cache,
		moreLimit: moreLimit,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// Search returns the popular cluster ranked. The rest, up to the more limit,
// is cached and can be fetched with More.
func (s *searchService) Search(ctx context.Context, query string) (*Found, error) {
	items, err := s.tracker.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("cannot search %q: %w", query, err)
	}

	clusters := Cluster(items)
	if len(clusters) == 0 {
		return nil, common.ErrNoSearchResults
	}

	found := &Found{Results: Rank(clusters[0])}

	if len(clusters) > 1 {
		other := clusters[1]
		if len(other) > s.moreLimit {
			other = other[:s.moreLimit]
		}

		token, err := s.cache.Create(ctx, other)
		if err != nil {
			s.log.Error("Cannot cache search results", slog.String("query", query), slog.Any("error", err))
		} else {
			found.More = &More{Token: token, Count: len(other)}
		}
	}

	s.log.Debug("Search", slog.String("query", query), slog.Int("found", len(items)), slog.Int("shown", len(found.Results)))

	return found, nil
}

func (s *searchService) More(ctx context.Context, token string) ([]entity.RankedSearchResult, error) {
	results, ok, err := s.cache.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if !ok || len(results) == 0 {
		return nil, common.ErrSearchResultsExpired
	}

	return Rank(results), nil
}

// Cluster sorts results by seeds and splits them at the largest relative drop
// within the first results. The first cluster holds the popular ones.
func Cluster(results []entity.SearchResult) [][]entity.SearchResult {
	if len(results) == 0 {
		return nil
	}

	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b entity.SearchResult) int {
		return cmp.Compare(b.Seeds, a.Seeds)
	})

	split := min(len(sorted), maxPopular)
	best, at := 0.0, 0
	for i := 1; i < split; i++ {
		ratio := float64(sorted[i-1].Seeds+1) / float64(sorted[i].Seeds+1)
		if ratio > best {
			best, at = ratio, i
		}
	}
	if best >= significantDrop {
		split = at
	}

	if split == len(sorted) {
		return [][]entity.SearchResult{sorted}
	}

	return [][]entity.SearchResult{sorted[:split], sorted[split:]}
}

// Rank scores results by their moderation mark. Higher rank goes first.
func Rank(results []entity.SearchResult) []entity.RankedSearchResult {
	ranked := make([]entity.RankedSearchResult, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, entity.RankedSearchResult{
			SearchResult: r,
			Rank:         rankOf(r.Verification),
		})
	}

	slices.SortStableFunc(ranked, func(a, b entity.RankedSearchResult) int {
		return cmp.Compare(b.Rank, a.Rank)
	})

	return ranked
}

func rankOf(v entity.Verification) int {
	switch v {
	case entity.VerificationApproved:
		return 1
	case entity.VerificationDoubtful, entity.VerificationDuplicate, entity.VerificationNotFormatted:
		return -1
	default:
		return 0
	}
}
