package model

import "sort"

// PublicProfile projects the account into its display-safe shape.
// Ratings are copied and ordered newest first; the account is not modified.
func (a *Account) PublicProfile() PublicProfile {
	ratings := make([]Rating, len(a.Ratings))
	copy(ratings, a.Ratings)
	sort.SliceStable(ratings, func(i, j int) bool {
		return ratings[i].RatedAt.After(ratings[j].RatedAt)
	})

	stats := ProfileStats{TotalRatings: len(ratings)}
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r.Score
		}
		avg := float64(sum) / float64(len(ratings))
		stats.AverageScore = &avg
	}

	categories := make([]string, len(a.Categories))
	copy(categories, a.Categories)

	return PublicProfile{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Categories: categories,
		CreatedAt:  a.CreatedAt,
		Ratings:    ratings,
		Stats:      stats,
	}
}
