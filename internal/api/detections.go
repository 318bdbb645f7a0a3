// internal/api/detections.go
package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dermnet/dermnet-go/internal/datastore"
)

// uploadFieldName is the multipart field the image upload is expected under.
const uploadFieldName = "image"

// initDetectionRoutes registers all detection-related API endpoints.
// Every route requires an authenticated caller.
func (c *Controller) initDetectionRoutes() {
	detectionGroup := c.Group.Group("/detections", c.authMiddleware)
	detectionGroup.POST("", c.UploadDetection)
	detectionGroup.POST("/save-prediction", c.SavePrediction)
	detectionGroup.GET("", c.GetDetections)
	detectionGroup.GET("/get-detections", c.GetDetections)
}

// UploadDetection handles POST requests with an uploaded image. The image is
// normalized, classified by the external service, persisted and linked to the
// caller; the prediction payload is returned.
func (c *Controller) UploadDetection(ctx echo.Context) error {
	userID := requireUser(ctx)
	if userID == "" {
		return c.Fail(ctx, http.StatusUnauthorized, "You are not logged in. Please log in to get access.")
	}

	fileHeader, err := ctx.FormFile(uploadFieldName)
	if err != nil {
		return c.Fail(ctx, http.StatusBadRequest, "Please upload an image file.")
	}

	// Reject non-image uploads before any processing happens.
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image") {
		return c.Fail(ctx, http.StatusBadRequest, "Not an image! Please upload only images.")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.HandleError(ctx, err, "open upload")
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		return c.HandleError(ctx, err, "read upload")
	}

	prediction, err := c.Service.ProcessUpload(ctx.Request().Context(), userID, imageData)
	if err != nil {
		return c.HandleError(ctx, err, "process upload")
	}

	c.detectionCache.Delete(detectionCacheKey(userID))

	return ctx.JSON(http.StatusOK, successResponse{
		Status: "success",
		Data:   map[string]any{"prediction": prediction},
	})
}

// SavePrediction handles POST requests carrying a pre-computed prediction
// payload. The payload is persisted without invoking the classifier.
func (c *Controller) SavePrediction(ctx echo.Context) error {
	userID := requireUser(ctx)
	if userID == "" {
		return c.Fail(ctx, http.StatusUnauthorized, "You are not logged in. Please log in to get access.")
	}

	var payload map[string]any
	if err := ctx.Bind(&payload); err != nil {
		return c.Fail(ctx, http.StatusBadRequest, "Request body must be valid JSON.")
	}

	record, err := c.Service.SaveManual(ctx.Request().Context(), userID, payload)
	if err != nil {
		return c.HandleError(ctx, err, "save prediction")
	}

	c.detectionCache.Delete(detectionCacheKey(userID))

	return ctx.JSON(http.StatusCreated, successResponse{
		Status:  "success",
		Message: "Prediction saved successfully!",
		Data:    map[string]any{"prediction": record},
	})
}

// GetDetections returns all detection records owned by the caller. A caller
// with no records gets a 200 with an empty list.
func (c *Controller) GetDetections(ctx echo.Context) error {
	userID := requireUser(ctx)
	if userID == "" {
		return c.Fail(ctx, http.StatusUnauthorized, "You are not logged in. Please log in to get access.")
	}

	cacheKey := detectionCacheKey(userID)
	if cached, found := c.detectionCache.Get(cacheKey); found {
		if detections, ok := cached.([]datastore.Detection); ok {
			return c.respondDetections(ctx, detections)
		}
	}

	detections, err := c.Service.List(ctx.Request().Context(), userID)
	if err != nil {
		return c.HandleError(ctx, err, "list detections")
	}

	c.detectionCache.SetDefault(cacheKey, detections)
	return c.respondDetections(ctx, detections)
}

func (c *Controller) respondDetections(ctx echo.Context, detections []datastore.Detection) error {
	return ctx.JSON(http.StatusOK, successResponse{
		Status: "success",
		Data:   map[string]any{"detections": detections},
	})
}

func detectionCacheKey(userID string) string {
	return "detections:" + userID
}
