package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tastevault/tastevault"
	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/present/rest/presenter"
	"github.com/tastevault/tastevault/internal/usecase"
)

// RealtimeService feeds the websocket endpoint: it forwards events for
// the recipe ids received on input to output until the context ends.
type RealtimeService interface {
	Realtime(ctx context.Context, input <-chan []string, output chan<- tastevault.Event)
}

type Handler struct {
	recipe     *usecase.RecipeUsecase
	versioning *usecase.VersioningUsecase
	suggestion *usecase.SuggestionUsecase
	signal     RealtimeService
}

func NewHandler(
	recipe *usecase.RecipeUsecase,
	versioning *usecase.VersioningUsecase,
	suggestion *usecase.SuggestionUsecase,
	signal RealtimeService,
) *Handler {
	return &Handler{
		recipe:     recipe,
		versioning: versioning,
		suggestion: suggestion,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)

	e.POST("/api/v1/recipes", h.handleCreateRecipe)
	e.GET("/api/v1/recipes", h.handleListRecipes)
	e.GET("/api/v1/recipes/:id", h.handleGetRecipe)
	e.PATCH("/api/v1/recipes/:id", h.handleUpdateRecipe)
	e.DELETE("/api/v1/recipes/:id", h.handleDeleteRecipe)

	e.POST("/api/v1/recipes/:id/ingredients", h.handleCreateIngredient)
	e.PUT("/api/v1/recipes/:id/ingredients/:ingredientId", h.handleUpdateIngredient)
	e.DELETE("/api/v1/recipes/:id/ingredients/:ingredientId", h.handleDeleteIngredient)

	e.POST("/api/v1/recipes/:id/steps", h.handleCreateStep)
	e.PUT("/api/v1/recipes/:id/steps/:stepId", h.handleUpdateStep)
	e.DELETE("/api/v1/recipes/:id/steps/:stepId", h.handleDeleteStep)

	e.PUT("/api/v1/recipes/:id/categories", h.handleReplaceCategories)
	e.GET("/api/v1/categories", h.handleListCategories)
	e.POST("/api/v1/categories", h.handleCreateCategory)
	e.GET("/api/v1/categories/:categoryId", h.handleGetCategory)

	e.GET("/api/v1/recipes/:id/versions", h.handleListVersions)
	e.GET("/api/v1/recipes/:id/versions/:versionId", h.handleGetVersion)
	e.POST("/api/v1/recipes/:id/versions/:versionId/restore", h.handleRestore)

	e.POST("/api/v1/recipes/:id/suggestions", h.handleSuggest)

	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// respondError maps the domain error taxonomy onto HTTP statuses.
// CorruptSnapshot is a 500: the history is damaged, not the request.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return presenter.BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return presenter.Conflict(c, err)
	default:
		return presenter.InternalError(c, err)
	}
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domain.ValidationError{Field: name, Message: "must be a uuid"}
	}
	return id, nil
}

func requesterID(c echo.Context) string {
	id, _ := c.Request().Context().Value(domain.RequesterIdCtxKey).(string)
	return id
}

type createRecipeRequest struct {
	Recipe      domain.Recipe        `json:"recipe"`
	Ingredients []domain.Ingredient  `json:"ingredients"`
	Steps       []domain.CookingStep `json:"steps"`
	CategoryIDs []uuid.UUID          `json:"categoryIds"`
}

func (h *Handler) handleCreateRecipe(c echo.Context) error {
	ctx := c.Request().Context()

	var req createRecipeRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if owner := requesterID(c); owner != "" {
		req.Recipe.OwnerID = owner
	}

	categories := make([]domain.Category, 0, len(req.CategoryIDs))
	for _, id := range req.CategoryIDs {
		categories = append(categories, domain.Category{ID: id})
	}

	agg, err := h.recipe.Create(ctx, domain.Aggregate{
		Recipe:      req.Recipe,
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		Categories:  categories,
	})
	if err != nil {
		return respondError(c, err)
	}

	return presenter.Created(c, agg)
}

func (h *Handler) handleListRecipes(c echo.Context) error {
	ctx := c.Request().Context()

	owner := c.QueryParam("owner")
	if owner == "" {
		owner = requesterID(c)
	}
	if owner == "" {
		return presenter.BadRequestMessage(c, "owner parameter is required")
	}

	recipes, err := h.recipe.ListByOwner(ctx, owner)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, recipes)
}

func (h *Handler) handleGetRecipe(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	agg, err := h.recipe.Get(ctx, recipeID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, agg)
}

func (h *Handler) handleUpdateRecipe(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var update domain.RecipeUpdate
	if err := c.Bind(&update); err != nil {
		return presenter.BadRequest(c, err)
	}

	n, err := h.recipe.UpdateFields(ctx, recipeID, update)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleDeleteRecipe(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.recipe.Delete(ctx, recipeID); err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleCreateIngredient(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var ing domain.Ingredient
	if err := c.Bind(&ing); err != nil {
		return presenter.BadRequest(c, err)
	}
	ing.ID = uuid.Nil

	n, err := h.recipe.PutIngredient(ctx, recipeID, ing)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleUpdateIngredient(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ingredientID, err := pathUUID(c, "ingredientId")
	if err != nil {
		return respondError(c, err)
	}

	var ing domain.Ingredient
	if err := c.Bind(&ing); err != nil {
		return presenter.BadRequest(c, err)
	}
	ing.ID = ingredientID

	n, err := h.recipe.PutIngredient(ctx, recipeID, ing)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleDeleteIngredient(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ingredientID, err := pathUUID(c, "ingredientId")
	if err != nil {
		return respondError(c, err)
	}

	n, err := h.recipe.DeleteIngredient(ctx, recipeID, ingredientID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleCreateStep(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var st domain.CookingStep
	if err := c.Bind(&st); err != nil {
		return presenter.BadRequest(c, err)
	}
	st.ID = uuid.Nil

	n, err := h.recipe.PutStep(ctx, recipeID, st)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleUpdateStep(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	stepID, err := pathUUID(c, "stepId")
	if err != nil {
		return respondError(c, err)
	}

	var st domain.CookingStep
	if err := c.Bind(&st); err != nil {
		return presenter.BadRequest(c, err)
	}
	st.ID = stepID

	n, err := h.recipe.PutStep(ctx, recipeID, st)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleDeleteStep(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	stepID, err := pathUUID(c, "stepId")
	if err != nil {
		return respondError(c, err)
	}

	n, err := h.recipe.DeleteStep(ctx, recipeID, stepID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

type replaceCategoriesRequest struct {
	CategoryIDs []uuid.UUID `json:"categoryIds"`
}

func (h *Handler) handleReplaceCategories(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req replaceCategoriesRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	n, err := h.recipe.ReplaceCategories(ctx, recipeID, req.CategoryIDs)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleListCategories(c echo.Context) error {
	ctx := c.Request().Context()

	categories, err := h.recipe.ListCategories(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, categories)
}

type createCategoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (h *Handler) handleCreateCategory(c echo.Context) error {
	ctx := c.Request().Context()

	var req createCategoryRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	category, err := h.recipe.CreateCategory(ctx, req.Name, req.Type)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.Created(c, category)
}

func (h *Handler) handleGetCategory(c echo.Context) error {
	ctx := c.Request().Context()

	categoryID, err := pathUUID(c, "categoryId")
	if err != nil {
		return respondError(c, err)
	}

	category, err := h.recipe.GetCategory(ctx, categoryID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, category)
}

func (h *Handler) handleListVersions(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	versions, err := h.versioning.List(ctx, recipeID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, versions)
}

func (h *Handler) handleGetVersion(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	versionID, err := pathUUID(c, "versionId")
	if err != nil {
		return respondError(c, err)
	}

	detail, err := h.versioning.Get(ctx, recipeID, versionID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, detail)
}

func (h *Handler) handleRestore(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	versionID, err := pathUUID(c, "versionId")
	if err != nil {
		return respondError(c, err)
	}

	n, err := h.versioning.Restore(ctx, recipeID, versionID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "versionNumber": n})
}

func (h *Handler) handleSuggest(c echo.Context) error {
	ctx := c.Request().Context()

	recipeID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	suggestion, err := h.suggestion.Suggest(ctx, recipeID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, suggestion)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type    string   `json:"type"`
	Recipes []string `json:"recipes"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan tastevault.Event)

	go h.signal.Realtime(ctx, input, output)

	// Buffered so the reader can always report its exit, even after the
	// write loop has already returned on a failed write.
	quit := make(chan struct{}, 1)

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Recipes:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Recipes),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
