// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// CVIndexTask represents the data structure for a CV indexing job.
type CVIndexTask struct {
	UploadID    uint   `json:"upload_id"`
	CandidateID string `json:"candidate_id"`
	ObjectKey   string `json:"object_key"`
	FileName    string `json:"file_name"`
}
