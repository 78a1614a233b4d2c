package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	appointmentRepo "horizon/database/repository/appointment"
	"horizon/models"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var dateParam = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// AppointmentHandler serves the read-only availability endpoints.
type AppointmentHandler struct {
	repo     appointmentRepo.AppointmentRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewAppointmentHandler(repo appointmentRepo.AppointmentRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// GetAvailableDates returns the distinct dates that still have free slots.
func (h *AppointmentHandler) GetAvailableDates(c *gin.Context) {
	const cacheKey = "appointments:available-dates"

	if h.serveCached(c, cacheKey) {
		return
	}

	dates, err := h.repo.AvailableDates(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch available dates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch available dates"})
		return
	}
	if dates == nil {
		dates = []string{}
	}

	h.storeCached(c.Request.Context(), cacheKey, dates)
	c.JSON(http.StatusOK, dates)
}

// GetAvailableSlots returns the free slots for a single date.
func (h *AppointmentHandler) GetAvailableSlots(c *gin.Context) {
	date := c.Query("date")
	if !dateParam.MatchString(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be in YYYY-MM-DD format"})
		return
	}

	cacheKey := "appointments:available:" + date
	if h.serveCached(c, cacheKey) {
		return
	}

	appts, err := h.repo.AvailableSlots(c.Request.Context(), date)
	if err != nil {
		h.logger.Error("failed to fetch available slots", zap.String("date", date), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch available slots"})
		return
	}

	slots := make([]models.AvailableSlot, len(appts))
	for i, appt := range appts {
		slots[i] = models.AvailableSlot{ID: appt.ID, StartTime: appt.StartTime}
	}

	h.storeCached(c.Request.Context(), cacheKey, slots)
	c.JSON(http.StatusOK, slots)
}

// serveCached replies from Redis when a fresh copy exists. Cache misses and
// cache errors both fall through to the repository.
func (h *AppointmentHandler) serveCached(c *gin.Context, key string) bool {
	if h.cache == nil {
		return false
	}
	cached, err := h.cache.Get(c.Request.Context(), key).Result()
	if err != nil {
		return false
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
	return true
}

func (h *AppointmentHandler) storeCached(ctx context.Context, key string, value interface{}) {
	if h.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, data, h.cacheTTL).Err(); err != nil {
		h.logger.Warn("failed to cache availability response", zap.String("key", key), zap.Error(err))
	}
}
