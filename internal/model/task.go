// Package model defines the records kept by the stores.
//
// The JSON names are the storage format: each collection is written as one
// JSON array under its key, so renaming a tag breaks previously saved data.
package model

// Task is one to-do item.
//
// CompletedAt is non-nil exactly when Completed is true. CreatedAt and
// CompletedAt are display timestamps ("Jan 2, 2006 at 03:04 PM"), not
// machine times; they are shown as-is by the view.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"dueDate"` // YYYY-MM-DD or empty
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt"`
}

// TaskStats are the counters shown above the task lists.
type TaskStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}
