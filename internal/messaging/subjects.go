package messaging

// Subject constants for the pipeline's message bus.
// Follow the pattern: {namespace}.{channel}.{discriminator}
const (
	// SubjectLandingNotifications carries object-created notifications
	// from the landing bucket into the durable coordinator queue.
	SubjectLandingNotifications = "etl.landing.notifications"

	// SubjectJobsExtract is the work queue of dispatched bulk
	// extraction jobs, consumed by task-runner workers.
	SubjectJobsExtract = "etl.jobs.extract"

	// SubjectEventsPrefix is the namespace every lifecycle event is
	// published under. Stage subjects append the event's detail type.
	SubjectEventsPrefix = "etl.events"

	// SubjectEventsAll matches every lifecycle event regardless of
	// detail type. The observer subscribes here.
	SubjectEventsAll = "etl.events.>"
)

// Stream and consumer names for the durable queues feeding each stage.
// Every stage that mutates state consumes from a durable work queue so
// a failed invocation is redelivered instead of lost; only the
// observer reads the event namespace over a plain subscription.
const (
	StreamLanding   = "ETL_LANDING"
	ConsumerLanding = "coordinator"

	StreamJobs   = "ETL_JOBS"
	ConsumerJobs = "task-runner"

	StreamExtracted   = "ETL_EXTRACTED"
	ConsumerExtracted = "transformer"

	StreamTransformed   = "ETL_TRANSFORMED"
	ConsumerTransformed = "loader"
)

// EventSubject returns the publish subject for a given detail type.
// Example: etl.events.transform
func EventSubject(detailType string) string {
	return SubjectEventsPrefix + "." + detailType
}
