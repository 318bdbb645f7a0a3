// model.go this code defines the data model for the application
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PredictionData stores the classifier's prediction payload as a JSON text
// column. The payload shape is not fixed, arbitrary nested structures are
// accepted so the column survives classifier response changes.
type PredictionData map[string]any

// Value implements driver.Valuer, serializing the payload to JSON.
func (p PredictionData) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling prediction data: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner, deserializing the JSON column value.
func (p *PredictionData) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported prediction column type %T", value)
	}
	return json.Unmarshal(data, p)
}

// Detection represents a single classification result owned by a user.
// Image carries the normalized upload for pipeline detections and is nil for
// manually saved predictions.
type Detection struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Image      []byte         `gorm:"type:blob" json:"image,omitempty"`
	Prediction PredictionData `gorm:"type:text" json:"prediction"`
	Confidence float64        `json:"confidence"`
	CreatedAt  time.Time      `gorm:"index" json:"createdAt"`
	UserID     string         `gorm:"index:idx_detections_user;not null;size:36" json:"userId"`
}

// User is the owning entity for detections. Account fields live with the
// authentication service, only the identity and the detection linkage are
// managed here.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserDetection is one entry of a user's ordered detection collection.
// The autoincrement primary key preserves append order.
type UserDetection struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      string    `gorm:"index:idx_user_detections_user;not null;size:36"`
	DetectionID string    `gorm:"not null;size:36"`
	CreatedAt   time.Time
}
