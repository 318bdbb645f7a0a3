package datastore

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermnet/dermnet-go/internal/conf"
	"github.com/dermnet/dermnet-go/internal/errors"
)

// newTestStore opens a throwaway SQLite store for testing. A file-backed
// database is used because every pooled connection to :memory: would get its
// own database.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_journal_mode=WAL"

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func newTestUser(t *testing.T, store *SQLiteStore) *User {
	t.Helper()
	user := &User{ID: uuid.NewString()}
	require.NoError(t, store.SaveUser(user))
	return user
}

func TestSaveDetectionAssignsIdentity(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store)

	detection := &Detection{
		Image:      []byte{0xff, 0xd8, 0xff},
		Prediction: PredictionData{"label": "malignant", "confidence": 0.87},
		Confidence: 0.87,
		UserID:     user.ID,
	}
	require.NoError(t, store.SaveDetection(detection))

	assert.NotEmpty(t, detection.ID, "id must be assigned at creation")
	assert.False(t, detection.CreatedAt.IsZero(), "createdAt must be assigned at creation")

	stored, err := store.GetDetection(detection.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, stored.Image)
	assert.Equal(t, "malignant", stored.Prediction["label"])
	assert.InDelta(t, 0.87, stored.Confidence, 1e-9)
}

func TestSaveDetectionRequiresOwner(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveDetection(&Detection{Prediction: PredictionData{"label": "benign"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPersistence))
}

func TestPredictionRoundTripsNestedStructures(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store)

	detection := &Detection{
		Prediction: PredictionData{
			"label":       "benign",
			"probability": 0.42,
			"formData": map[string]any{
				"age":     float64(54),
				"lesions": []any{"arm", "neck"},
			},
		},
		UserID: user.ID,
	}
	require.NoError(t, store.SaveDetection(detection))

	stored, err := store.GetDetection(detection.ID)
	require.NoError(t, err)

	formData, ok := stored.Prediction["formData"].(map[string]any)
	require.True(t, ok, "nested structures must survive storage")
	assert.Equal(t, float64(54), formData["age"])
	assert.Equal(t, []any{"arm", "neck"}, formData["lesions"])
	assert.Nil(t, stored.Image, "manual record image stays null")
}

func TestGetUserDetectionsFiltersByOwner(t *testing.T) {
	store := newTestStore(t)
	alice := newTestUser(t, store)
	bob := newTestUser(t, store)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveDetection(&Detection{
			Prediction: PredictionData{"n": i},
			UserID:     alice.ID,
		}))
	}
	require.NoError(t, store.SaveDetection(&Detection{
		Prediction: PredictionData{"n": 99},
		UserID:     bob.ID,
	}))

	detections, err := store.GetUserDetections(alice.ID)
	require.NoError(t, err)
	require.Len(t, detections, 3)
	for _, d := range detections {
		assert.Equal(t, alice.ID, d.UserID)
	}
}

func TestGetUserDetectionsEmptyIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store)

	detections, err := store.GetUserDetections(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, detections)
	assert.Empty(t, detections)
}

func TestListIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store)

	for i := 0; i < 2; i++ {
		require.NoError(t, store.SaveDetection(&Detection{
			Prediction: PredictionData{"n": i},
			UserID:     user.ID,
		}))
	}

	first, err := store.GetUserDetections(user.ID)
	require.NoError(t, err)
	second, err := store.GetUserDetections(user.ID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestLinkDetectionAppendsInOrder(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store)

	var want []string
	for i := 0; i < 3; i++ {
		detection := &Detection{Prediction: PredictionData{"n": i}, UserID: user.ID}
		require.NoError(t, store.SaveDetection(detection))
		require.NoError(t, store.LinkDetection(user.ID, detection.ID))
		want = append(want, detection.ID)
	}

	ids, err := store.GetUserDetectionIDs(user.ID)
	require.NoError(t, err)
	assert.Equal(t, want, ids, "collection must preserve append order")
}

func TestLinkDetectionMissingOwner(t *testing.T) {
	store := newTestStore(t)

	err := store.LinkDetection(uuid.NewString(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLinkFailed))
	assert.True(t, errors.Is(err, errors.ErrOwnerNotFound))

	ids, idsErr := store.GetUserDetectionIDs(uuid.NewString())
	require.NoError(t, idsErr)
	assert.Empty(t, ids)
}

func TestConcurrentLinksLoseNoUpdates(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store)

	const n = 20
	detectionIDs := make([]string, n)
	for i := range detectionIDs {
		detection := &Detection{Prediction: PredictionData{"n": i}, UserID: user.ID}
		require.NoError(t, store.SaveDetection(detection))
		detectionIDs[i] = detection.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.LinkDetection(user.ID, detectionIDs[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "link %d failed", i)
	}

	ids, err := store.GetUserDetectionIDs(user.ID)
	require.NoError(t, err)
	require.Len(t, ids, n, "every concurrent append must land")

	seen := make(map[string]bool, n)
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %s in collection", id)
		seen[id] = true
	}
}

func TestNewSelectsBackend(t *testing.T) {
	sqliteSettings := &conf.Settings{}
	sqliteSettings.Output.SQLite.Enabled = true
	_, ok := New(sqliteSettings).(*SQLiteStore)
	assert.True(t, ok)

	mysqlSettings := &conf.Settings{}
	mysqlSettings.Output.MySQL.Enabled = true
	_, ok = New(mysqlSettings).(*MySQLStore)
	assert.True(t, ok)

	assert.Nil(t, New(&conf.Settings{}))
}

func TestSaveUserIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	user := &User{ID: uuid.NewString()}
	require.NoError(t, store.SaveUser(user))
	require.NoError(t, store.SaveUser(&User{ID: user.ID}))

	var count int64
	require.NoError(t, store.DB.Model(&User{}).Where("id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
