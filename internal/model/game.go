package model

// Game is the canonical, display-ready game record produced by the
// normalizer. It is never persisted.
type Game struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Image         string   `json:"image"`
	RatingPercent float64  `json:"ratingPercent"`
	Description   string   `json:"description,omitempty"`
	ReleaseDate   string   `json:"releaseDate,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Developer     string   `json:"developer,omitempty"`
	Platforms     []string `json:"platforms,omitempty"`
	Price         string   `json:"price,omitempty"`
}

// Sources reported alongside a game list.
const (
	SourcePersonalized = "personalized"
	SourceCategories   = "categories"
	SourceBestRated    = "best_rated"
	SourcePopular      = "popular"
	SourceCatalog      = "catalog"
	SourceSearch       = "search"
	SourceSimilar      = "similar"
)

// GameList is a normalized result set labelled with the source that
// served it.
type GameList struct {
	Source     string   `json:"source"`
	Categories []string `json:"categories,omitempty"`
	Page       int      `json:"page,omitempty"`
	Games      []Game   `json:"games"`
}
