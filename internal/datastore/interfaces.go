// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dermnet/dermnet-go/internal/conf"
	"github.com/dermnet/dermnet-go/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the detection core needs.
type Interface interface {
	Open() error
	Close() error
	SaveUser(user *User) error
	SaveDetection(detection *Detection) error
	GetDetection(id string) (Detection, error)
	GetUserDetections(userID string) ([]Detection, error)
	GetUserDetectionIDs(userID string) ([]string, error)
	LinkDetection(userID, detectionID string) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the enabled backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// performAutoMigration migrates the schema for all models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&User{}, &Detection{}, &UserDetection{}); err != nil {
		return errors.Newf("performing automigration on %s: %w", dbType, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}
	if debug {
		getLogger().Debug("Database schema migrated", "db_type", dbType, "connection", connectionInfo)
	}
	return nil
}

// SaveUser persists a user record. Existing users are left untouched.
func (ds *DataStore) SaveUser(user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := ds.DB.FirstOrCreate(user, User{ID: user.ID}).Error; err != nil {
		return errors.Newf("%w: saving user: %v", errors.ErrPersistence, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// SaveDetection persists a new detection record, assigning its identifier and
// creation timestamp. The identifier is never reassigned afterwards.
func (ds *DataStore) SaveDetection(detection *Detection) error {
	if detection.UserID == "" {
		return errors.Newf("%w: detection has no owner", errors.ErrPersistence).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if detection.ID == "" {
		detection.ID = uuid.NewString()
	}
	if detection.CreatedAt.IsZero() {
		detection.CreatedAt = time.Now()
	}

	if err := ds.DB.Create(detection).Error; err != nil {
		return errors.Newf("%w: saving detection: %v", errors.ErrPersistence, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("detection_id", detection.ID).
			Build()
	}
	return nil
}

// GetDetection retrieves a detection record by its identifier.
func (ds *DataStore) GetDetection(id string) (Detection, error) {
	var detection Detection
	if err := ds.DB.First(&detection, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Detection{}, errors.Newf("detection %s not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return Detection{}, errors.Newf("%w: getting detection %s: %v", errors.ErrPersistence, id, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return detection, nil
}

// GetUserDetections returns all detection records owned by the given user in
// insertion order. A user with no records gets an empty slice, not an error.
func (ds *DataStore) GetUserDetections(userID string) ([]Detection, error) {
	detections := []Detection{}
	if err := ds.DB.Where("user_id = ?", userID).Order("created_at ASC").Find(&detections).Error; err != nil {
		return nil, errors.Newf("%w: listing detections for user %s: %v", errors.ErrPersistence, userID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return detections, nil
}

// GetUserDetectionIDs returns the user's detection identifier collection in
// append order.
func (ds *DataStore) GetUserDetectionIDs(userID string) ([]string, error) {
	ids := []string{}
	err := ds.DB.Model(&UserDetection{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("detection_id", &ids).Error
	if err != nil {
		return nil, errors.Newf("%w: listing detection ids for user %s: %v", errors.ErrPersistence, userID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// LinkDetection appends a detection identifier to the owner's collection as a
// single INSERT ... SELECT statement. The append only happens when the owner
// row exists, so concurrent appends for the same user cannot lose updates and
// no read-modify-write cycle is involved.
func (ds *DataStore) LinkDetection(userID, detectionID string) error {
	result := ds.DB.Exec(
		"INSERT INTO user_detections (user_id, detection_id, created_at) "+
			"SELECT u.id, ?, ? FROM users u WHERE u.id = ?",
		detectionID, time.Now(), userID)

	if result.Error != nil {
		return errors.Newf("%w: %v", errors.ErrLinkFailed, result.Error).
			Component("datastore").
			Category(errors.CategoryLinkage).
			Context("user_id", userID).
			Context("detection_id", detectionID).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("%w: %w: user %s", errors.ErrLinkFailed, errors.ErrOwnerNotFound, userID).
			Component("datastore").
			Category(errors.CategoryLinkage).
			Context("user_id", userID).
			Context("detection_id", detectionID).
			Build()
	}
	return nil
}
