// Package normalize turns recommendation-backend payloads into canonical
// game records.
//
// The backend answers with different shapes depending on the endpoint:
// bare arrays, arrays nested under "jogos"/"recomendacoes"/"resultados",
// or wrapped once more under "dados". Field names also differ between
// sources. Everything that inspects raw payloads lives in this package;
// the rest of the gateway only sees model.Game.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sakif/game-gateway/internal/model"
)

const (
	// DefaultRatingPercent is used when a payload carries no usable votes.
	DefaultRatingPercent = 50.0

	DefaultPlaceholderImage = "https://placehold.co/600x400/101010/ffffff?text=Game"
	DefaultCurrencySymbol   = "$"
	DefaultFreeLabel        = "Free"
	DefaultDateLayout       = "January 2, 2006"
)

// Field aliases, most specific first.
var (
	idKeys          = []string{"id", "jogo_id", "game_id"}
	titleKeys       = []string{"name", "nome", "title"}
	imageKeys       = []string{"header_image", "imagem", "image"}
	descriptionKeys = []string{"description", "descricao", "resumo"}
	releaseKeys     = []string{"release_date", "releaseDate", "data_lancamento"}
	genreKeys       = []string{"genres", "generos"}
	categoryKeys    = []string{"categories", "categoria"}
	developerKeys   = []string{"developer", "developers"}
	platformKeys    = []string{"platforms", "plataformas", "plataforma"}
	priceKeys       = []string{"price", "preco"}
	averageKeys     = []string{"nota_media"}
	positiveKeys    = []string{"positive", "assessment_positive"}
	negativeKeys    = []string{"negative", "assessment_negative"}
)

// releaseLayouts covers ISO dates, HTTP dates and the Steam store formats.
var releaseLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan, 2006",
	"2 January, 2006",
	"Jan 2006",
}

// Options controls presentation details of canonical records.
type Options struct {
	PlaceholderImage string
	CurrencySymbol   string
	FreeLabel        string
	DateLayout       string
}

// Normalizer converts payloads into model.Game values.
type Normalizer struct {
	opts Options
}

// New returns a Normalizer. Blank options fall back to the defaults.
func New(opts Options) *Normalizer {
	if opts.PlaceholderImage == "" {
		opts.PlaceholderImage = DefaultPlaceholderImage
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = DefaultCurrencySymbol
	}
	if opts.FreeLabel == "" {
		opts.FreeLabel = DefaultFreeLabel
	}
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultDateLayout
	}
	return &Normalizer{opts: opts}
}

// ResolveImage returns the payload's image trimmed, or the placeholder.
// The result is never blank.
func (n *Normalizer) ResolveImage(p Payload) string {
	if img := p.text(imageKeys...); img != "" {
		return img
	}
	return n.opts.PlaceholderImage
}

// RatingPercent derives a 0..100 display rating with one decimal.
//
// An average score on the 0..5 scale wins and is multiplied by 20; values
// above 5 are already percentages. Otherwise the positive share of votes is
// used. With neither, the result is DefaultRatingPercent.
func RatingPercent(p Payload) float64 {
	if avg, ok := p.number(averageKeys...); ok {
		if avg <= 5 {
			avg *= 20
		}
		return percent(avg)
	}

	positive, _ := p.number(positiveKeys...)
	negative, _ := p.number(negativeKeys...)
	if total := positive + negative; total > 0 {
		return percent(positive / total * 100)
	}
	return DefaultRatingPercent
}

func percent(v float64) float64 {
	v = math.Round(v*10) / 10
	return math.Max(0, math.Min(100, v))
}

// ToCanonical builds a record from p. It reports false when p has no
// finite integer id.
func (n *Normalizer) ToCanonical(p Payload) (model.Game, bool) {
	raw, ok := p.value(idKeys...)
	if !ok {
		return model.Game{}, false
	}
	id, ok := model.ToInt(raw)
	if !ok {
		return model.Game{}, false
	}

	title := p.text(titleKeys...)
	if title == "" {
		title = "Game #" + strconv.Itoa(id)
	}

	return model.Game{
		ID:            id,
		Title:         title,
		Image:         n.ResolveImage(p),
		RatingPercent: RatingPercent(p),
		Description:   p.text(descriptionKeys...),
		ReleaseDate:   n.formatDate(p.text(releaseKeys...)),
		Genres:        p.list(",", genreKeys...),
		Categories:    p.list(",", categoryKeys...),
		Developer:     p.text(developerKeys...),
		Platforms:     p.list(",;|", platformKeys...),
		Price:         n.formatPrice(p),
	}, true
}

// formatDate reformats a recognised date and returns anything else as-is.
func (n *Normalizer) formatDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(n.opts.DateLayout)
		}
	}
	return raw
}

func (n *Normalizer) formatPrice(p Payload) string {
	price, ok := p.number(priceKeys...)
	if !ok {
		// Labels such as "Free to Play" are shown as given.
		return p.text(priceKeys...)
	}
	if price == 0 {
		return n.opts.FreeLabel
	}
	return fmt.Sprintf("%s%.2f", n.opts.CurrencySymbol, price)
}
