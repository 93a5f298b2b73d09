// Package events defines the canonical message exchanged between pipeline
// stages: the envelope, the closed vocabulary of detail types and statuses,
// and a statically-typed payload per variant.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source is the fixed namespace every stage stamps on the events it
// emits. The observer's broad subscription and each stage's narrow
// subscription both key off it.
const Source = "eventbridge-etl"

// Detail types. Together with the status they form the only dispatch
// key between stages; the payload shape is implied by the detail type.
const (
	DetailTypeTaskStarted = "ecs-started"
	DetailTypeExtracted   = "s3RecordExtraction"
	DetailTypeTransformed = "transform"
	DetailTypeLoaded      = "loaded"
)

// Status values within a detail type.
const (
	StatusSuccess     = "success"
	StatusExtracted   = "extracted"
	StatusTransformed = "transformed"
)

// Envelope is the canonical cross-stage message.
type Envelope struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detailType"`
	Status     string          `json:"status"`
	Time       time.Time       `json:"time"`
	Detail     json.RawMessage `json:"detail"`
}

// FieldMapping pairs header names with scalar string values, built by
// the transformer from one delimited row.
type FieldMapping map[string]string

// TaskStarted is the payload of an ecs-started event: the receipt the
// job execution service returned when it accepted a bulk extraction job.
type TaskStarted struct {
	TaskID    string    `json:"taskId"`
	Cluster   string    `json:"cluster"`
	Bucket    string    `json:"bucket"`
	ObjectKey string    `json:"objectKey"`
	StartedAt time.Time `json:"startedAt"`
}

// RecordExtracted is the payload of an s3RecordExtraction event: one
// raw delimited data row plus its header row.
type RecordExtracted struct {
	Headers string `json:"headers"`
	Data    string `json:"data"`
}

// RecordTransformed is the payload of a transform event.
type RecordTransformed struct {
	Data FieldMapping `json:"data"`
}

// RecordLoaded is the payload of a loaded event: an echo of the fields
// written to the persistent store.
type RecordLoaded struct {
	ID          string `json:"id"`
	HouseNumber string `json:"house_number"`
	Street      string `json:"street_address"`
	Town        string `json:"town"`
	Zip         string `json:"zip"`
}

// New builds an envelope for the given detail type and status, stamping
// the pipeline namespace and the current time.
func New(detailType, status string, detail any) (*Envelope, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("marshal %s detail: %w", detailType, err)
	}
	return &Envelope{
		Source:     Source,
		DetailType: detailType,
		Status:     status,
		Time:       time.Now().UTC(),
		Detail:     raw,
	}, nil
}

// Decode parses raw bus data into an envelope, rejecting events from
// outside the pipeline namespace.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Source != Source {
		return nil, fmt.Errorf("unexpected event source %q", env.Source)
	}
	return &env, nil
}

// Payload returns the typed payload for the envelope's detail type.
// The switch is exhaustive over the pipeline's event vocabulary; an
// unknown detail type is an error, never a silent pass-through.
func (e *Envelope) Payload() (any, error) {
	switch e.DetailType {
	case DetailTypeTaskStarted:
		var p TaskStarted
		if err := json.Unmarshal(e.Detail, &p); err != nil {
			return nil, fmt.Errorf("decode %s detail: %w", e.DetailType, err)
		}
		return &p, nil
	case DetailTypeExtracted:
		var p RecordExtracted
		if err := json.Unmarshal(e.Detail, &p); err != nil {
			return nil, fmt.Errorf("decode %s detail: %w", e.DetailType, err)
		}
		return &p, nil
	case DetailTypeTransformed:
		var p RecordTransformed
		if err := json.Unmarshal(e.Detail, &p); err != nil {
			return nil, fmt.Errorf("decode %s detail: %w", e.DetailType, err)
		}
		return &p, nil
	case DetailTypeLoaded:
		var p RecordLoaded
		if err := json.Unmarshal(e.Detail, &p); err != nil {
			return nil, fmt.Errorf("decode %s detail: %w", e.DetailType, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown detail type %q", e.DetailType)
	}
}
