package services

import (
	"sort"
	"strings"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/sahilm/fuzzy"
)

// PlayerSearchItems implements fuzzy.Source for pool searching.
type PlayerSearchItems []PlayerSearchItem

type PlayerSearchItem struct {
	Player *models.Player
	Name   string
}

func (items PlayerSearchItems) Len() int {
	return len(items)
}

func (items PlayerSearchItems) String(i int) string {
	return items[i].Name
}

// SearchService finds players in an auction pool by approximate name.
// Admins use it to jump lots and to pick trade players without exact IDs.
type SearchService struct{}

func NewSearchService() *SearchService {
	return &SearchService{}
}

// SearchPlayers returns pool players ranked by match quality. An empty
// query returns the pool in queue order, optionally filtered by status.
func (s *SearchService) SearchPlayers(pool []*models.Player, query string, status models.PlayerStatus) []*models.Player {
	filtered := pool
	if status != "" {
		filtered = make([]*models.Player, 0, len(pool))
		for _, p := range pool {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
	}

	normalized := s.normalizeQuery(query)
	if normalized == "" {
		out := make([]*models.Player, len(filtered))
		copy(out, filtered)
		sort.Slice(out, func(i, j int) bool { return out[i].QueuePos < out[j].QueuePos })
		return out
	}

	items := make(PlayerSearchItems, len(filtered))
	for i, p := range filtered {
		items[i] = PlayerSearchItem{Player: p, Name: s.normalizeQuery(p.Name)}
	}

	matches := fuzzy.FindFrom(normalized, items)
	results := make([]*models.Player, len(matches))
	for i, m := range matches {
		results[i] = items[m.Index].Player
	}
	return results
}

// SearchSinglePlayer resolves a query to exactly one player. Exact name
// matches win over fuzzy ones so "Rahul" does not grab "Rahul Tripathi"
// when both exist.
func (s *SearchService) SearchSinglePlayer(pool []*models.Player, query string) (*models.Player, bool) {
	normalized := s.normalizeQuery(query)
	if normalized == "" {
		return nil, false
	}
	for _, p := range pool {
		if s.normalizeQuery(p.Name) == normalized {
			return p, true
		}
	}
	results := s.SearchPlayers(pool, query, "")
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

func (s *SearchService) normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
