package entity

import "github.com/google/uuid"

// Document identifies the source PDF of the persisted job so it can be
// restored after a restart.
type Document struct {
	JobID uuid.UUID `json:"jobId"`
	Name  string    `json:"fileName"`
	Size  int64     `json:"fileSize"`
}
