package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	logicv1 "github.com/prepwise/auth-service/internal/logic/v1"
	"github.com/prepwise/auth-service/middleware"
)

// Daily-login endpoints. Thin adapters over the StreakService: parse
// userId from the query string, call the operation, serialize
// {success, <field>}. Storage failures surface as 500 so the widget can
// offer a retry instead of showing a false "not logged in".

// CheckDailyLogin reports whether the user already logged in today.
// GET /api/v1/daily-login/check?userId=<id>
func (h *Handler) CheckDailyLogin(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	userID := c.Query("userId")
	loggedIn, err := h.streaks.HasLoggedInToday(ctx, userID)
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, logicv1.ErrMissingUserID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "User ID is required",
			})
			return
		}

		logger.Error().Err(err).Str("user_id", userID).Msg("Daily login check failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Internal server error",
		})
		return
	}

	span.SetAttributes(attribute.Bool("login.has_logged_in_today", loggedIn))
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"hasLoggedInToday": loggedIn,
	})
}

// GetLoginStreak returns the user's cached consecutive-day streak.
// GET /api/v1/daily-login/streak?userId=<id>
func (h *Handler) GetLoginStreak(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	userID := c.Query("userId")
	streak, err := h.streaks.CurrentStreak(ctx, userID)
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, logicv1.ErrMissingUserID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "User ID is required",
			})
			return
		}

		logger.Error().Err(err).Str("user_id", userID).Msg("Login streak lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Internal server error",
		})
		return
	}

	span.SetAttributes(attribute.Int("login.streak", streak))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"streak":  streak,
	})
}
