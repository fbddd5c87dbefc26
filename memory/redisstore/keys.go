package redisstore

import "fmt"

// Redis key pattern helpers
//
// All keys are namespaced by instance name so multiple Lorekeep instances can
// safely coexist on a single Redis server.
//
// Key pattern: lorekeep:{instance_name}:{entity}:{id}

// canonKey returns the Redis key holding one Canon entry.
// Pattern: lorekeep:{instance_name}:canon:{canon_key}
func canonKey(instanceName, key string) string {
	return fmt.Sprintf("lorekeep:%s:canon:%s", instanceName, key)
}

// canonIndexKey returns the Redis set tracking all Canon keys.
// Pattern: lorekeep:{instance_name}:canon_keys
func canonIndexKey(instanceName string) string {
	return fmt.Sprintf("lorekeep:%s:canon_keys", instanceName)
}

// bufferKey returns the Redis key holding one buffer entry.
// Pattern: lorekeep:{instance_name}:buffer:{entry_id}
func bufferKey(instanceName, id string) string {
	return fmt.Sprintf("lorekeep:%s:buffer:%s", instanceName, id)
}

// bufferLogKey returns the Redis list of buffer entry ids in append order.
// Pattern: lorekeep:{instance_name}:buffer_log
func bufferLogKey(instanceName string) string {
	return fmt.Sprintf("lorekeep:%s:buffer_log", instanceName)
}

// disputeKey returns the Redis key holding one dispute record.
// Pattern: lorekeep:{instance_name}:dispute:{dispute_id}
func disputeKey(instanceName, id string) string {
	return fmt.Sprintf("lorekeep:%s:dispute:%s", instanceName, id)
}

// disputeLogKey returns the Redis list of dispute ids in filing order.
// Pattern: lorekeep:{instance_name}:dispute_log
func disputeLogKey(instanceName string) string {
	return fmt.Sprintf("lorekeep:%s:dispute_log", instanceName)
}

// scratchKey returns the Redis list of one agent's notes for one task.
// Pattern: lorekeep:{instance_name}:scratch:{agent_id}:{task_id}
func scratchKey(instanceName, agentID, taskID string) string {
	return fmt.Sprintf("lorekeep:%s:scratch:%s:%s", instanceName, agentID, taskID)
}

// taskMetaKey returns the Redis key holding a task's metadata record.
// Pattern: lorekeep:{instance_name}:task:{task_id}
func taskMetaKey(instanceName, taskID string) string {
	return fmt.Sprintf("lorekeep:%s:task:%s", instanceName, taskID)
}

// taskEntriesKey returns the Redis list of a task's narrative entries.
// Pattern: lorekeep:{instance_name}:task:{task_id}:entries
func taskEntriesKey(instanceName, taskID string) string {
	return fmt.Sprintf("lorekeep:%s:task:%s:entries", instanceName, taskID)
}
