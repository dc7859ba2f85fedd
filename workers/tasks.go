package workers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskTypeIngestImage is the asynq task kind for the image ingestion pipeline
const TaskTypeIngestImage = "gallery:ingest_image"

// IngestImagePayload carries one ingestion job. Exactly one of Data or
// SourcePath is set: uploads relay the raw bytes through the queue, bulk
// resync references a file already inside the album directory.
type IngestImagePayload struct {
	AlbumID    uint   `json:"album_id"`
	AlbumName  string `json:"album_name"`
	ImageName  string `json:"image_name"`
	SourcePath string `json:"source_path,omitempty"`
	Data       []byte `json:"data,omitempty"`
}

// TaskClient abstracts task enqueue operations so handlers can be tested
// without a live redis
type TaskClient interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ TaskClient = (*asynq.Client)(nil)

// Enqueuer submits ingestion jobs to the shared job transport. Enqueue
// returns before processing starts; the caller cannot observe completion
// except through the store or the StatusTracker.
type Enqueuer struct {
	Client TaskClient
	Queue  string
}

func NewEnqueuer(client TaskClient, queue string) *Enqueuer {
	return &Enqueuer{Client: client, Queue: queue}
}

// EnqueueIngest queues one ingestion job and returns its task ID. The
// duplicate-name existence check happens in the caller before this point;
// once enqueued the job is not cancellable.
func (e *Enqueuer) EnqueueIngest(payload IngestImagePayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ingest payload for %s/%s: %w", payload.AlbumName, payload.ImageName, err)
	}

	taskID := uuid.NewString()
	task := asynq.NewTask(TaskTypeIngestImage, data)
	_, err = e.Client.Enqueue(task,
		asynq.Queue(e.Queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue ingest task for %s/%s: %w", payload.AlbumName, payload.ImageName, err)
	}
	return taskID, nil
}
