package kv

import (
	"fmt"
	"strings"
	"time"
)

// Buckets. Execution records and workflow metadata share one bucket and are
// told apart by key prefix.
const (
	BucketExecutions     = "executions"
	BucketExecutionIndex = "execution_index"
	BucketTasks          = "tasks"
	BucketAudit          = "audit"
	BucketSettings       = "settings"
)

const (
	MetadataPrefix = "workflow:"
	TaskPrefix     = "task:"
	AuditPrefix    = "audit:"

	// IndexTimeLayout is fixed width so that byte order equals time order.
	IndexTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

var allBuckets = []string{BucketExecutions, BucketExecutionIndex, BucketTasks, BucketAudit, BucketSettings}

// ExecutionKey is the key of a WorkflowExecution record.
func ExecutionKey(executionID string) []byte {
	return []byte(executionID)
}

// ExecutionIndexKey is "{timestamp}:{execution_id}".
func ExecutionIndexKey(timestamp time.Time, executionID string) []byte {
	return []byte(timestamp.UTC().Format(IndexTimeLayout) + ":" + executionID)
}

// MetadataKey is "workflow:{execution_id}".
func MetadataKey(executionID string) []byte {
	return []byte(MetadataPrefix + executionID)
}

// TaskKey is "task:{execution_id}:{task_id}".
func TaskKey(executionID, taskID string) []byte {
	return []byte(TaskPrefix + executionID + ":" + taskID)
}

// TaskKeyPrefix is "task:{execution_id}:".
func TaskKeyPrefix(executionID string) []byte {
	return []byte(TaskPrefix + executionID + ":")
}

// AuditKey is "audit:{execution_id}:{seq}" with a zero padded sequence.
func AuditKey(executionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", AuditPrefix, executionID, seq))
}

// AuditKeyPrefix is "audit:{execution_id}:".
func AuditKeyPrefix(executionID string) []byte {
	return []byte(AuditPrefix + executionID + ":")
}

// SettingKey is the key of a setting record.
func SettingKey(key string) []byte {
	return []byte(key)
}

// IsMetadataKey reports whether a key in the executions bucket is a metadata key.
func IsMetadataKey(key []byte) bool {
	return strings.HasPrefix(string(key), MetadataPrefix)
}

// TaskIDFromKey strips the execution prefix from a task key.
func TaskIDFromKey(executionID string, key []byte) string {
	return strings.TrimPrefix(string(key), string(TaskKeyPrefix(executionID)))
}
