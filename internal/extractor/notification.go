package extractor

import (
	"encoding/json"
	"fmt"
)

// Notification is one wrapper message from the landing queue. A single
// wrapper may batch multiple object-creation records (multi-file
// upload), and each record is processed independently.
type Notification struct {
	Records []Record `json:"Records"`
}

// Record is one object-creation record inside a wrapper.
type Record struct {
	EventSource string   `json:"eventSource,omitempty"`
	S3          S3Entity `json:"s3"`
}

// S3Entity names the bucket and object the record refers to.
type S3Entity struct {
	Bucket Bucket `json:"bucket"`
	Object Object `json:"object"`
}

type Bucket struct {
	Name string `json:"name"`
	ARN  string `json:"arn"`
}

type Object struct {
	Key string `json:"key"`
}

// DecodeNotification parses a wrapper message body.
func DecodeNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode landing notification: %w", err)
	}
	return &n, nil
}
