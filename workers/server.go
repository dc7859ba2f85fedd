package workers

import (
	"log"

	"github.com/hibiken/asynq"
)

// RunIngestWorker starts the asynq worker pool consuming ingestion jobs.
// It blocks until the server stops.
func RunIngestWorker(redisOpt asynq.RedisClientOpt, queue string, concurrency int, processor *IngestProcessor) error {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeIngestImage, processor.ProcessTask)

	log.Printf("Started ingest worker pool (queue: %s, concurrency: %d)", queue, concurrency)
	return srv.Run(mux)
}
