package queue

// Exchange and routing configuration for the job queue.
const (
	Exchange        = "mailsort"
	RoutingKeyJobs  = "jobs.classify"
	consumerTag     = "mailsort-worker"
	contentTypeJSON = "application/json"
)

// JobTask is the queue payload that tells a worker to run a
// classification job. The job row itself carries all parameters; the
// task only identifies it.
type JobTask struct {
	TaskID string `json:"task_id"`
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
}
