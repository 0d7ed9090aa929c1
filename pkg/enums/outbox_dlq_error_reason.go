package enums

// OutboxDLQErrorReason records why a billing notification was dead-lettered.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts means Pub/Sub kept rejecting the row until the attempt ceiling.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable means the row can never decode into a known notice.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnroutable means no publisher exists for the resolved topic.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
)

var dlqReasons = newSet("dlq error reason", OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable)

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }

func (r OutboxDLQErrorReason) String() string { return string(r) }

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return dlqReasons.parse(value)
}
