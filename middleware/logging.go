package middleware

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware logs HTTP requests with a per-request ID
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		entry := logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"ip":         c.IP(),
		})

		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}

		return err
	}
}

// LogActivity records a user action in the activity log. Entries are
// cached in Redis first and flushed to the database by the archive
// service; when Redis is unavailable they go straight to the database.
func LogActivity(userID uint, action, resource string, resourceID uint, details map[string]interface{}, c *fiber.Ctx) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if c != nil {
		if requestID, ok := c.Locals("request_id").(string); ok {
			details["request_id"] = requestID
		}
	}
	details["integrity"] = integrityHash(userID, action, resource, resourceID)

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal activity details")
		detailsJSON = []byte("{}")
	}

	entry := models.ActivityLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    models.JSON(detailsJSON),
	}
	entry.CreatedAt = time.Now().UTC()
	if c != nil {
		entry.IPAddress = c.IP()
		entry.UserAgent = c.Get("User-Agent")
	}

	if database.RedisClient != nil {
		go cacheActivityLog(entry)
		return
	}

	if err := database.DB.Create(&entry).Error; err != nil {
		logrus.WithError(err).Error("Failed to save activity log")
	}
}

func integrityHash(userID uint, action, resource string, resourceID uint) string {
	payload := fmt.Sprintf("%d|%s|%s|%d|%d", userID, action, resource, resourceID, time.Now().Unix())
	return fmt.Sprintf("%x", md5.Sum([]byte(payload)))
}

func cacheActivityLog(entry models.ActivityLog) {
	ctx := context.Background()

	data, err := json.Marshal(entry)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal activity log for cache")
		return
	}

	key := fmt.Sprintf("log:%d:%s:%d", entry.UserID, entry.Action, entry.CreatedAt.UnixNano())
	if err := database.RedisClient.Set(ctx, key, data, 48*time.Hour).Err(); err != nil {
		logrus.WithError(err).Error("Failed to cache activity log, writing to database")
		if err := database.DB.Create(&entry).Error; err != nil {
			logrus.WithError(err).Error("Failed to save activity log")
		}
		return
	}

	if err := database.RedisClient.ZAdd(ctx, "logs:queue", &redis.Z{Score: float64(entry.CreatedAt.Unix()), Member: key}).Err(); err != nil {
		logrus.WithError(err).Error("Failed to enqueue activity log for flush")
	}
}

// LogActivityMiddleware automatically records mutating requests
func LogActivityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() == fiber.MethodGet {
			return err
		}
		if strings.HasPrefix(c.Path(), "/api/auth/") {
			return err
		}
		if c.Response().StatusCode() >= 400 {
			return err
		}

		user, ok := c.Locals("user").(*models.User)
		if !ok {
			return err
		}

		action := strings.ToLower(c.Method())
		resource := strings.Trim(c.Path(), "/")
		LogActivity(user.ID, action, resource, 0, map[string]interface{}{
			"status": c.Response().StatusCode(),
		}, c)

		return err
	}
}
