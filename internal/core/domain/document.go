package domain

import "strings"

const AnonymousUserID = "anonymous"

// UploadRequest is the transient input of one pipeline run.
type UploadRequest struct {
	Payload  []byte
	FileName string
	MimeType string
	UserID   string
}

// StoredObject references a payload once it is durably written to the blob store.
type StoredObject struct {
	Key string `json:"key"`
	URI string `json:"uri"`
}

// DocumentInfo is metadata derived from the uploaded bytes before they are stored.
type DocumentInfo struct {
	MimeType  string
	PageCount int
}

// NormalizeUserID maps an absent user to the anonymous bucket.
func NormalizeUserID(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AnonymousUserID
	}
	return userID
}
