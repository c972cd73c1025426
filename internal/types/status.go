package types

// Status is a type for the status of a resource (e.g. subscription, event) in the database
// This is used to track the lifecycle of a resource and to determine if it should be included in queries
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)
