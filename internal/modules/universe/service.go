package universe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors for expression resolution. Callers branch on these with
// errors.Is to map them to distinct submission rejections.
var (
	// ErrUnknownUniverse means a segment of the expression names a key
	// that is not in the relationship index.
	ErrUnknownUniverse = errors.New("unknown universe key")

	// ErrIndexUnavailable means the relationship index could not be
	// reached and no cached entry could answer the lookup.
	ErrIndexUnavailable = errors.New("universe index unavailable")
)

// ExpressionDelimiter joins universe keys into a union expression,
// "sp500:nasdaq100" resolves to the deduplicated union of both sets.
const ExpressionDelimiter = ":"

// cacheEntry holds one resolved universe. Entries past ttl are refreshed
// from the index on the next lookup but kept around as a stale fallback
// for when the index is down.
type cacheEntry struct {
	record   Record
	members  []string
	cachedAt time.Time
}

// Service resolves universe expressions against the relationship index,
// caching per-key lookups with a TTL so repeated resolutions of the same
// expression stay off the database.
type Service struct {
	repo *Repository
	ttl  time.Duration
	log  zerolog.Logger

	mu       sync.RWMutex
	cache    map[string]*cacheEntry
	listing  []Record
	listedAt time.Time
}

// NewService creates a universe resolver backed by the given repository.
// ttl bounds how long cached lookups are served without consulting the
// index; zero or negative falls back to one hour.
func NewService(repo *Repository, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		repo:  repo,
		ttl:   ttl,
		log:   log.With().Str("service", "universe").Logger(),
		cache: make(map[string]*cacheEntry),
	}
}

// Resolve turns a universe expression into a sorted, deduplicated symbol
// list. Multi-segment expressions ("a:b:c") union their member sets. Any
// unknown segment fails the whole resolution with ErrUnknownUniverse; an
// unreachable index fails uncached segments with ErrIndexUnavailable.
// A known universe with zero members resolves to an empty list.
func (s *Service) Resolve(ctx context.Context, expression string) ([]string, error) {
	keys, err := splitExpression(expression)
	if err != nil {
		return nil, err
	}

	union := make(map[string]struct{})
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members, err := s.resolveKey(key)
		if err != nil {
			return nil, err
		}
		for _, symbol := range members {
			union[symbol] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(union))
	for symbol := range union {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// resolveKey returns the member set for one universe key, serving from the
// cache when fresh and falling back to stale entries when the index errors.
func (s *Service) resolveKey(key string) ([]string, error) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()

	if ok && time.Since(entry.cachedAt) < s.ttl {
		return entry.members, nil
	}

	rec, err := s.repo.GetUniverse(key)
	if err != nil {
		// Index down. A stale cached entry still answers; a cold key
		// cannot.
		if ok {
			s.log.Warn().Err(err).Str("universe", key).Msg("Index unreachable, serving stale cache entry")
			return entry.members, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUniverse, key)
	}

	members, err := s.repo.Members(key)
	if err != nil {
		if ok {
			s.log.Warn().Err(err).Str("universe", key).Msg("Index unreachable, serving stale cache entry")
			return entry.members, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	s.mu.Lock()
	s.cache[key] = &cacheEntry{record: *rec, members: members, cachedAt: time.Now()}
	s.mu.Unlock()

	return members, nil
}

// ListAvailable returns universe metadata (with member counts), optionally
// filtered by type. The unfiltered listing is cached with the same TTL as
// member lookups; type filters are applied to the cached listing.
func (s *Service) ListAvailable(ctx context.Context, types ...string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	listing := s.listing
	fresh := listing != nil && time.Since(s.listedAt) < s.ttl
	s.mu.RUnlock()

	if !fresh {
		records, err := s.repo.ListUniverses()
		if err != nil {
			if listing != nil {
				s.log.Warn().Err(err).Msg("Index unreachable, serving stale universe listing")
			} else {
				return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
			}
		} else {
			s.mu.Lock()
			s.listing = records
			s.listedAt = time.Now()
			s.mu.Unlock()
			listing = records
		}
	}

	return filterByType(listing, types), nil
}

// InvalidateCache drops every cached lookup. The next resolution of each
// key goes back to the relationship index.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cache = make(map[string]*cacheEntry)
	s.listing = nil
	s.listedAt = time.Time{}
	s.mu.Unlock()
	s.log.Info().Msg("Universe cache invalidated")
}

// CacheSize returns the number of cached universe entries.
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// splitExpression breaks a universe expression into normalized keys.
// Empty segments ("a::b", leading/trailing delimiters) are rejected so a
// typo never silently resolves to fewer sets than intended.
func splitExpression(expression string) ([]string, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrUnknownUniverse)
	}

	parts := strings.Split(expression, ExpressionDelimiter)
	keys := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		key := normalizeKey(part)
		if key == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrUnknownUniverse, expression)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

func filterByType(records []Record, types []string) []Record {
	if len(types) == 0 {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	out := []Record{}
	for _, rec := range records {
		if _, ok := wanted[rec.Type]; ok {
			out = append(out, rec)
		}
	}
	return out
}
