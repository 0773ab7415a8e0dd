package model

import "time"

// DocumentStatus is the lifecycle of an additional document request.
type DocumentStatus string

const (
	DocumentRequested DocumentStatus = "requested"
	DocumentUploaded  DocumentStatus = "uploaded"
)

// AdditionalDocument is an officer's request for an extra document.
type AdditionalDocument struct {
	ID            uint64         `json:"id"`
	ApplicationID uint64         `json:"application_id"`
	Reason        string         `json:"reason"`
	Status        DocumentStatus `json:"status"`
	FilePath      *string        `json:"file_path,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UploadedAt    *time.Time     `json:"uploaded_at,omitempty"`
}
