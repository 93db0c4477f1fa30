package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/storage"
)

// DefaultSnapshotKey is the blob key of the job table inside the file store.
const DefaultSnapshotKey = "generation_jobs.json"

const snapshotVersion = 1

type snapshotDocument struct {
	Version int                    `json:"version"`
	SavedAt time.Time              `json:"savedAt"`
	Jobs    []domain.GenerationJob `json:"jobs"`
}

// JobSnapshotFile implements domain.JobSnapshotRepository on a FileStore.
type JobSnapshotFile struct {
	store *storage.FileStore
	key   string
	now   func() time.Time
}

// NewJobSnapshotFile stores the job table under key; an empty key uses
// DefaultSnapshotKey.
func NewJobSnapshotFile(store *storage.FileStore, key string) *JobSnapshotFile {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &JobSnapshotFile{store: store, key: key, now: time.Now}
}

// Load returns the saved jobs, or none when nothing was saved yet.
func (r *JobSnapshotFile) Load(ctx context.Context) ([]domain.GenerationJob, error) {
	data, err := r.store.Read(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode job snapshot: %w", err)
	}
	if doc.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported job snapshot version %d", doc.Version)
	}
	return doc.Jobs, nil
}

// Save replaces the stored table with jobs.
func (r *JobSnapshotFile) Save(ctx context.Context, jobs []domain.GenerationJob) error {
	if jobs == nil {
		jobs = []domain.GenerationJob{}
	}
	data, err := json.Marshal(snapshotDocument{
		Version: snapshotVersion,
		SavedAt: r.now().UTC(),
		Jobs:    jobs,
	})
	if err != nil {
		return fmt.Errorf("encode job snapshot: %w", err)
	}
	if _, err := r.store.Write(ctx, r.key, data); err != nil {
		return err
	}
	return nil
}
