// Package detection orchestrates the upload-to-prediction pipeline and the
// manual prediction save path.
package detection

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dermnet/dermnet-go/internal/classifier"
	"github.com/dermnet/dermnet-go/internal/datastore"
	"github.com/dermnet/dermnet-go/internal/errors"
	"github.com/dermnet/dermnet-go/internal/imaging"
	"github.com/dermnet/dermnet-go/internal/logging"
	"github.com/dermnet/dermnet-go/internal/observability"
)

// Service defines the operations the HTTP layer calls into.
type Service interface {
	ProcessUpload(ctx context.Context, ownerID string, image []byte) (classifier.Result, error)
	SaveManual(ctx context.Context, ownerID string, payload map[string]any) (*datastore.Detection, error)
	List(ctx context.Context, ownerID string) ([]datastore.Detection, error)
}

// Pipeline composes the normalizer, the external classifier and the datastore
// into the detection flow: normalize, classify, persist, link.
type Pipeline struct {
	normalizer *imaging.Normalizer
	classifier classifier.Interface
	ds         datastore.Interface
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a new detection pipeline.
func New(normalizer *imaging.Normalizer, cls classifier.Interface, ds datastore.Interface, m *observability.Metrics) *Pipeline {
	logger := logging.ForService("detection")
	if logger == nil {
		logger = slog.Default().With("service", "detection")
	}
	return &Pipeline{
		normalizer: normalizer,
		classifier: cls,
		ds:         ds,
		metrics:    m,
		logger:     logger,
	}
}

// ProcessUpload runs the full pipeline for an uploaded image and returns the
// classifier's prediction payload. The persisted record always carries the
// normalized image bytes. A failed owner-list link is reported in logs and
// metrics but does not fail the request: the record itself already exists and
// discarding a successful prediction would be worse than the temporary
// inconsistency. Reconciliation of unlinked records is a known limitation.
func (p *Pipeline) ProcessUpload(ctx context.Context, ownerID string, image []byte) (classifier.Result, error) {
	if ownerID == "" {
		return nil, errors.Newf("upload has no owner").
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}

	normalized, err := p.normalizer.Normalize(image)
	if err != nil {
		return nil, err
	}

	result, err := p.classifier.Classify(ctx, normalized)
	if err != nil {
		return nil, err
	}

	record := &datastore.Detection{
		Image:      normalized,
		Prediction: datastore.PredictionData(result),
		Confidence: result.Confidence(),
		UserID:     ownerID,
	}
	if err := p.ds.SaveDetection(record); err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.Detection.IncrementRecordsCreated("upload")
	}

	// Link happens-after creation, never before.
	if err := p.ds.LinkDetection(ownerID, record.ID); err != nil {
		if p.metrics != nil {
			p.metrics.Detection.IncrementLinkFailures()
		}
		p.logger.Error("Detection record created but not linked to owner",
			"detection_id", record.ID,
			"user_id", ownerID,
			"error", err)
	}

	p.logger.Info("Detection processed",
		"detection_id", record.ID,
		"user_id", ownerID,
		"confidence", record.Confidence)

	return result, nil
}

// SaveManual persists a caller-supplied prediction payload without invoking
// the classifier. The payload must contain a non-null prediction value; the
// whole body is stored verbatim as the record's prediction, with formData
// defaulted to null when absent. Confidence comes from a numeric probability
// field and falls back to 0. Manual records carry no image and are not
// appended to the owner's detection list.
func (p *Pipeline) SaveManual(ctx context.Context, ownerID string, payload map[string]any) (*datastore.Detection, error) {
	if ownerID == "" {
		return nil, errors.Newf("manual save has no owner").
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}
	if payload == nil || payload["prediction"] == nil {
		return nil, errors.Newf("%w", errors.ErrMissingPrediction).
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}

	prediction := make(datastore.PredictionData, len(payload)+1)
	for k, v := range payload {
		prediction[k] = v
	}
	if _, ok := prediction["formData"]; !ok {
		prediction["formData"] = nil
	}

	record := &datastore.Detection{
		Image:      nil,
		Prediction: prediction,
		Confidence: numericValue(payload["probability"]),
		UserID:     ownerID,
	}
	if err := p.ds.SaveDetection(record); err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.Detection.IncrementRecordsCreated("manual")
	}

	p.logger.Info("Manual prediction saved",
		"detection_id", record.ID,
		"user_id", ownerID,
		"confidence", record.Confidence)

	return record, nil
}

// List returns all detection records owned by the caller. A caller with no
// records gets an empty slice.
func (p *Pipeline) List(ctx context.Context, ownerID string) ([]datastore.Detection, error) {
	return p.ds.GetUserDetections(ownerID)
}

// numericValue coerces a decoded JSON value to float64, defaulting to 0 for
// absent or non-numeric values.
func numericValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
