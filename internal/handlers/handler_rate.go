package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fxledger/fxledger/internal/apperrors"
	portssvc "github.com/fxledger/fxledger/internal/core/ports/services"
	"github.com/fxledger/fxledger/internal/dto"
	"github.com/fxledger/fxledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// rateHandler handles HTTP requests related to exchange rates.
type rateHandler struct {
	rateService portssvc.RateSvcFacade
}

// newRateHandler creates a new rateHandler.
func newRateHandler(rs portssvc.RateSvcFacade) *rateHandler {
	return &rateHandler{
		rateService: rs,
	}
}

// registerRateRoutes registers routes related to exchange rates.
func registerRateRoutes(rg *gin.RouterGroup, rateService portssvc.RateSvcFacade) {
	h := newRateHandler(rateService)

	rates := rg.Group("/rates")
	{
		rates.POST("", h.createRate)
		rates.GET("", h.listRates)
		rates.GET("/:rateID", h.getRate)
		rates.PUT("/:rateID", h.updateRate)
		rates.DELETE("/:rateID", h.deleteRate)
		rates.POST("/regenerate", h.regenerate)
	}
	rg.GET("/convert", h.convert)
}

// createRate godoc
// @Summary Create a new authoritative exchange rate
// @Description Adds a USER or EXTERNAL rate and synchronously rebuilds the owner's derived rates for that date
// @Tags rates
// @Accept  json
// @Produce  json
// @Param   rate body dto.CreateRateRequest true "Rate details"
// @Success 201 {object} dto.RateMutationResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Rate already exists for this pair and date"
// @Failure 500 {object} map[string]string "Failed to create rate"
// @Security BearerAuth
// @Router /rates [post]
func (h *rateHandler) createRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateRate", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Owner user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger.Info("Received request to create rate",
		slog.String("from", req.FromCurrencyCode),
		slog.String("to", req.ToCurrencyCode),
		slog.Any("rate", req.Rate),
		slog.Time("date_effective", req.DateEffective),
	)

	createdRate, regen, err := h.rateService.CreateRate(c.Request.Context(), req, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			logger.Warn("Validation error creating rate", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, apperrors.ErrDuplicate):
			logger.Warn("Duplicate rate", slog.String("error", err.Error()))
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to create rate in service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rate"})
		}
		return
	}

	logger.Info("Rate created successfully", slog.String("rate_id", createdRate.RateID))
	c.JSON(http.StatusCreated, dto.RateMutationResponse{
		Rate:         dto.ToRateResponse(createdRate),
		Regeneration: dto.ToRegenerationResponse(regen),
	})
}

// updateRate godoc
// @Summary Update an authoritative exchange rate
// @Description Updates the value/note of a USER or EXTERNAL rate and rebuilds derived rates; DERIVED rates cannot be edited
// @Tags rates
// @Accept  json
// @Produce  json
// @Param   rateID path string true "Rate ID"
// @Param   rate body dto.UpdateRateRequest true "Updatable fields"
// @Success 200 {object} dto.RateMutationResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Derived rates cannot be edited"
// @Failure 404 {object} map[string]string "Rate not found"
// @Security BearerAuth
// @Router /rates/{rateID} [put]
func (h *rateHandler) updateRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rateID := c.Param("rateID")

	var req dto.UpdateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	updated, regen, err := h.rateService.UpdateRate(c.Request.Context(), ownerID, rateID, req)
	if err != nil {
		h.writeRateError(c, logger, "update", err)
		return
	}

	c.JSON(http.StatusOK, dto.RateMutationResponse{
		Rate:         dto.ToRateResponse(updated),
		Regeneration: dto.ToRegenerationResponse(regen),
	})
}

// deleteRate godoc
// @Summary Delete an authoritative exchange rate
// @Description Removes a USER or EXTERNAL rate and rebuilds derived rates, dropping anything derived solely from it
// @Tags rates
// @Produce  json
// @Param   rateID path string true "Rate ID"
// @Success 200 {object} dto.RegenerationResponse
// @Failure 403 {object} map[string]string "Derived rates cannot be deleted"
// @Failure 404 {object} map[string]string "Rate not found"
// @Security BearerAuth
// @Router /rates/{rateID} [delete]
func (h *rateHandler) deleteRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rateID := c.Param("rateID")

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	regen, err := h.rateService.DeleteRate(c.Request.Context(), ownerID, rateID)
	if err != nil {
		h.writeRateError(c, logger, "delete", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRegenerationResponse(regen))
}

// getRate godoc
// @Summary Get a single exchange rate
// @Tags rates
// @Produce  json
// @Param   rateID path string true "Rate ID"
// @Success 200 {object} dto.RateResponse
// @Failure 404 {object} map[string]string "Rate not found"
// @Security BearerAuth
// @Router /rates/{rateID} [get]
func (h *rateHandler) getRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rateID := c.Param("rateID")

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	rate, err := h.rateService.GetRateByID(c.Request.Context(), ownerID, rateID)
	if err != nil {
		h.writeRateError(c, logger, "get", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRateResponse(rate))
}

// listRates godoc
// @Summary List exchange rates
// @Description Lists the owner's rates, optionally filtered by pair, date and source, with token pagination
// @Tags rates
// @Produce  json
// @Param   from query string false "From currency code"
// @Param   to query string false "To currency code"
// @Param   date query string false "Effective date (YYYY-MM-DD)"
// @Param   source query string false "USER | EXTERNAL | DERIVED"
// @Param   limit query int false "Page size" default(50)
// @Param   nextToken query string false "Continuation token"
// @Success 200 {object} dto.ListRatesResponse
// @Security BearerAuth
// @Router /rates [get]
func (h *rateHandler) listRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ListRatesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	rates, nextToken, err := h.rateService.ListRates(c.Request.Context(), ownerID, req)
	if err != nil {
		h.writeRateError(c, logger, "list", err)
		return
	}

	c.JSON(http.StatusOK, dto.ListRatesResponse{
		Rates:     dto.ToListRateResponse(rates),
		NextToken: nextToken,
	})
}

// convert godoc
// @Summary Convert an amount between currencies
// @Description Converts using the rate effective on the date, preferring authoritative rates over derived ones
// @Tags rates
// @Produce  json
// @Param   from query string true "From currency code"
// @Param   to query string true "To currency code"
// @Param   amount query string true "Amount to convert"
// @Param   date query string false "Effective date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} dto.ConvertResponse
// @Failure 404 {object} map[string]string "No rate available for the pair"
// @Security BearerAuth
// @Router /convert [get]
func (h *rateHandler) convert(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ConvertRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := h.rateService.Convert(c.Request.Context(), ownerID, req)
	if err != nil {
		h.writeRateError(c, logger, "convert", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// regenerate godoc
// @Summary Rebuild derived rates for a date
// @Description Manually re-runs the derivation pass for the owner and effective date
// @Tags rates
// @Accept  json
// @Produce  json
// @Param   request body dto.RegenerateRequest false "Effective date, defaults to today"
// @Success 200 {object} dto.RegenerationResponse
// @Failure 500 {object} dto.RegenerationResponse "Store failure, derived data may be stale"
// @Security BearerAuth
// @Router /rates/regenerate [post]
func (h *rateHandler) regenerate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	// An empty body regenerates today's derived set.
	var req dto.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := h.rateService.Regenerate(c.Request.Context(), ownerID, req.DateEffective)
	if err != nil {
		logger.Error("Regeneration failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ToRegenerationResponse(result))
		return
	}

	c.JSON(http.StatusOK, dto.ToRegenerationResponse(result))
}

func (h *rateHandler) writeRateError(c *gin.Context, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error on rate "+op, slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		logger.Warn("Forbidden rate "+op, slog.String("error", err.Error()))
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Rate not found on " + op)
		c.JSON(http.StatusNotFound, gin.H{"error": "Rate not found"})
	default:
		logger.Error("Failed to "+op+" rate", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op + " rate"})
	}
}
