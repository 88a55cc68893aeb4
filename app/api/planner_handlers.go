package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

func (h *Handler) ListPlannedMeals(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		meals := h.planner.Meals()
		c.JSON(http.StatusOK, gin.H{"meals": meals, "total": len(meals)})
		return
	}

	if _, err := time.Parse(planner.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must use YYYY-MM-DD"})
		return
	}

	meals := h.planner.ForDate(date)
	c.JSON(http.StatusOK, gin.H{"date": date, "meals": meals, "total": len(meals)})
}

func (h *Handler) AddPlannedMeal(c *gin.Context) {
	var meal planner.PlannedMeal
	if err := c.ShouldBindJSON(&meal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if meal.Recipe.ID == 0 {
		meal.Recipe.ID = meal.MealID
	}

	added, err := h.planner.Add(c.Request.Context(), meal)
	if err != nil {
		var validationErr *recipe.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "field": validationErr.Field})
			return
		}
		slog.Error("Planner error", "operation", "add", "meal_id", meal.MealID, "date", meal.Date, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save planned meal"})
		return
	}

	if !added {
		c.JSON(http.StatusOK, gin.H{"added": false})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"added": true, "meal": meal})
}

func (h *Handler) RemovePlannedMeal(c *gin.Context) {
	mealID, err := strconv.Atoi(c.Query("mealId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mealId must be an integer"})
		return
	}

	removed, err := h.planner.Remove(c.Request.Context(), mealID, c.Query("date"), c.Query("time"))
	if err != nil {
		slog.Error("Planner error", "operation", "remove", "meal_id", mealID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save planned meal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
