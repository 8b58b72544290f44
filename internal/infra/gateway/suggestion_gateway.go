package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/tastevault/tastevault"
	"github.com/tastevault/tastevault/client"
	"github.com/tastevault/tastevault/internal/domain"
)

const maxSuggestionTokens = 1024

// SuggestionGateway wraps the model service client. Responses are
// cached per (recipe, version) since the suggestion only depends on
// the aggregate state it was generated from.
type SuggestionGateway struct {
	client *client.Client
	cache  *cache.Cache
}

func NewSuggestionGateway(cl *client.Client) *SuggestionGateway {
	return &SuggestionGateway{
		client: cl,
		cache:  cache.New(30*time.Minute, 45*time.Minute),
	}
}

func (g *SuggestionGateway) Suggest(ctx context.Context, agg domain.Aggregate, basedOnVersion int) (*tastevault.Suggestion, error) {
	cacheKey := fmt.Sprintf("%s@%d", agg.Recipe.ID, basedOnVersion)
	if cached, found := g.cache.Get(cacheKey); found {
		return cached.(*tastevault.Suggestion), nil
	}

	response, err := g.client.Generate(ctx, buildPrompt(agg), maxSuggestionTokens)
	if err != nil {
		return nil, errors.Wrap(err, "SuggestionGateway.Suggest: generate failed")
	}

	suggestion := &tastevault.Suggestion{
		RecipeID:       agg.Recipe.ID.String(),
		BasedOnVersion: basedOnVersion,
		Text:           response.Text,
		CreatedAt:      time.Now().UTC(),
	}

	g.cache.Set(cacheKey, suggestion, cache.DefaultExpiration)
	return suggestion, nil
}

func buildPrompt(agg domain.Aggregate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Suggest concrete improvements for this recipe.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", agg.Recipe.Title)
	if agg.Recipe.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", agg.Recipe.Description)
	}
	fmt.Fprintf(&b, "Servings: %d, difficulty: %s\n", agg.Recipe.Servings, agg.Recipe.Difficulty)

	b.WriteString("\nIngredients:\n")
	for _, ing := range agg.Ingredients {
		fmt.Fprintf(&b, "- %g %s %s", ing.Amount, ing.Unit, ing.Name)
		if ing.Notes != "" {
			fmt.Fprintf(&b, " (%s)", ing.Notes)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nSteps:\n")
	for _, st := range agg.Steps {
		fmt.Fprintf(&b, "%d. %s\n", st.StepNumber, st.Instruction)
	}

	if len(agg.Categories) > 0 {
		b.WriteString("\nCategories: ")
		names := make([]string, 0, len(agg.Categories))
		for _, cat := range agg.Categories {
			names = append(names, cat.Name)
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}

	return b.String()
}
