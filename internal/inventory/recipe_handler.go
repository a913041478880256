package inventory

import (
	"bakery-inventory/internal/auth"
	"bakery-inventory/internal/ledger"
	"bakery-inventory/internal/models"
	"bakery-inventory/internal/recipe"

	"github.com/gofiber/fiber/v2"
)

const recipeNotFound = "Recipe not found"

type IngredientRequest struct {
	ProductID uint    `json:"productId" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	Unit      string  `json:"unit"`
}

type CreateRecipeRequest struct {
	Name         string              `json:"name" validate:"required,min=1"`
	Description  string              `json:"description"`
	Ingredients  []IngredientRequest `json:"ingredients" validate:"dive"`
	Yield        int                 `json:"yield" validate:"min=1"`
	Instructions string              `json:"instructions"`
}

// GET /api/recipes
func ListRecipesHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		recipes, err := store.Recipes(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(recipes)
	}
}

// GET /api/recipes/:id
func GetRecipeHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "Recipe")
		if err != nil {
			return err
		}
		r, err := store.Recipe(c.UserContext(), id)
		if err != nil {
			return storeError(c, err, "", recipeNotFound)
		}
		return c.JSON(r)
	}
}

// POST /api/recipes
func CreateRecipeHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const msg = "Invalid recipe data"

		var body CreateRecipeRequest
		if err := c.BodyParser(&body); err != nil {
			return invalid(c, msg, nil)
		}
		if errs := check(body); errs != nil {
			return invalid(c, msg, errs)
		}

		r := models.Recipe{
			Name:         body.Name,
			Description:  body.Description,
			Yield:        body.Yield,
			Instructions: body.Instructions,
			Ingredients:  make([]models.RecipeIngredient, 0, len(body.Ingredients)),
		}
		for _, ing := range body.Ingredients {
			r.Ingredients = append(r.Ingredients, models.RecipeIngredient{
				ProductID: ing.ProductID,
				Quantity:  ing.Quantity,
				Unit:      ing.Unit,
			})
		}

		created, err := store.CreateRecipe(c.UserContext(), r, auth.Actor(c))
		if err != nil {
			return storeError(c, err, msg, recipeNotFound)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

// GET /api/recipes/:id/projection
func RecipeProjectionHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "Recipe")
		if err != nil {
			return err
		}
		r, err := store.Recipe(c.UserContext(), id)
		if err != nil {
			return storeError(c, err, "", recipeNotFound)
		}
		products, err := store.Products(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(recipe.Project(r, products))
	}
}
