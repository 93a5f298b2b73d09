// Package dispatch defines the boundary contract with the container
// execution service that runs bulk extraction jobs, plus a JetStream
// work-queue implementation of it.
package dispatch

import (
	"context"
	"time"
)

// Environment variable names the execution profile injects into the
// extraction container. The task-runner resolves its workload from them.
const (
	EnvBucketName = "S3_BUCKET_NAME"
	EnvObjectKey  = "S3_OBJECT_KEY"
)

// EnvVar is one name/value pair in a container override.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ContainerOverride injects per-invocation environment into a named
// container of the task definition.
type ContainerOverride struct {
	Name        string   `json:"name"`
	Environment []EnvVar `json:"environment"`
}

// NetworkConfig is the task's network placement.
type NetworkConfig struct {
	Subnets        []string `json:"subnets"`
	AssignPublicIP bool     `json:"assignPublicIp"`
}

// TaskSpec describes one bulk extraction job: a fixed execution
// profile (single ephemeral instance on the latest platform)
// parameterized per notification through container overrides.
type TaskSpec struct {
	Cluster         string              `json:"cluster"`
	TaskDefinition  string              `json:"taskDefinition"`
	Count           int                 `json:"count"`
	PlatformVersion string              `json:"platformVersion"`
	Network         NetworkConfig       `json:"networkConfiguration"`
	Overrides       []ContainerOverride `json:"overrides"`
}

// Env returns the value of the named override variable, searching all
// container overrides, or "" if absent.
func (s *TaskSpec) Env(name string) string {
	for _, c := range s.Overrides {
		for _, e := range c.Environment {
			if e.Name == name {
				return e.Value
			}
		}
	}
	return ""
}

// Receipt is the execution service's acknowledgment that it accepted
// a job. It says nothing about the job's eventual outcome.
type Receipt struct {
	TaskID     string    `json:"taskId"`
	Cluster    string    `json:"cluster"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// Runner dispatches bulk extraction jobs. The coordinator returns as
// soon as the job is accepted; it never waits for completion.
type Runner interface {
	RunTask(ctx context.Context, spec *TaskSpec) (*Receipt, error)
}
