package normalize

import "github.com/sakif/game-gateway/internal/model"

// listKeys are the object keys that may hold a game array, in priority order.
var listKeys = [][]string{
	{"games", "jogos"},
	{"recommendations", "recomendacoes"},
	{"results", "resultados"},
}

// wrapperKeys hold a nested response that is unwrapped one level.
var wrapperKeys = []string{"data", "dados"}

// ExtractList finds the game array inside a decoded response body.
// It returns an empty slice when no known shape matches.
func ExtractList(body any) []Payload {
	return extract(body, 0)
}

func extract(body any, depth int) []Payload {
	switch v := body.(type) {
	case []any:
		return payloads(v)
	case map[string]any:
		for _, keys := range listKeys {
			for _, k := range keys {
				if arr, ok := v[k].([]any); ok {
					return payloads(arr)
				}
			}
		}
		if depth == 0 {
			for _, k := range wrapperKeys {
				if inner, ok := v[k]; ok && inner != nil {
					return extract(inner, depth+1)
				}
			}
		}
	}
	return []Payload{}
}

func payloads(arr []any) []Payload {
	out := make([]Payload, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Payload(m))
		}
	}
	return out
}

// MapList extracts, canonicalises and de-duplicates a response body.
// Entries without an id are dropped; the first record for each id wins
// and the original order is kept.
func (n *Normalizer) MapList(body any) []model.Game {
	raw := ExtractList(body)
	games := make([]model.Game, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, p := range raw {
		g, ok := n.ToCanonical(p)
		if !ok {
			continue
		}
		if _, dup := seen[g.ID]; dup {
			continue
		}
		seen[g.ID] = struct{}{}
		games = append(games, g)
	}
	return games
}

// MapOne canonicalises a single-object response such as a game detail
// or the random pick. A body wrapped under "data"/"dados" is unwrapped.
func (n *Normalizer) MapOne(body any) (model.Game, bool) {
	m, ok := body.(map[string]any)
	if !ok {
		return model.Game{}, false
	}
	if g, ok := n.ToCanonical(Payload(m)); ok {
		return g, true
	}
	for _, k := range wrapperKeys {
		if inner, ok := m[k].(map[string]any); ok {
			return n.ToCanonical(Payload(inner))
		}
	}
	return model.Game{}, false
}
