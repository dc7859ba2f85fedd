package workers

import (
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// Inspector abstracts the job transport's live task introspection
type Inspector interface {
	ListActiveTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

var _ Inspector = (*asynq.Inspector)(nil)

// StatusTracker answers "is this album still converging?" by inspecting the
// in-flight ingestion jobs. Album listings use it to hide albums whose image
// set is mid-ingestion.
type StatusTracker struct {
	Inspector Inspector
	Queue     string
}

func NewStatusTracker(inspector Inspector, queue string) *StatusTracker {
	return &StatusTracker{Inspector: inspector, Queue: queue}
}

// InFlightAlbumIDs returns the set of album IDs with ingestion jobs either
// executing or still waiting in the queue. Introspection failure degrades to
// an empty set: showing possibly-partial albums beats blocking the listing
// on transport health.
func (st *StatusTracker) InFlightAlbumIDs() map[uint]struct{} {
	inFlight := make(map[uint]struct{})

	active, err := st.Inspector.ListActiveTasks(st.Queue)
	if err != nil {
		log.Printf("status: failed to list active tasks on %s: %v", st.Queue, err)
		return inFlight
	}
	pending, err := st.Inspector.ListPendingTasks(st.Queue)
	if err != nil {
		log.Printf("status: failed to list pending tasks on %s: %v", st.Queue, err)
		pending = nil
	}

	for _, task := range append(active, pending...) {
		if task == nil || task.Type != TaskTypeIngestImage {
			continue
		}
		var payload IngestImagePayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			continue
		}
		inFlight[payload.AlbumID] = struct{}{}
	}
	return inFlight
}
