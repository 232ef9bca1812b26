package domain

import "errors"

var (
	// ErrInsufficientData marks a series too short for the requested computation.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrModelNotFound marks a request against a product key without a loaded model.
	ErrModelNotFound = errors.New("model not found")
	// ErrPersistence marks a failed read or write of the model store.
	ErrPersistence = errors.New("persistence failure")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
)

// Result is the success flag plus message handed to presentation layers.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ItemResult is the outcome of one item of a batch operation.
type ItemResult struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewResult converts an error into a Result, using okMessage on success.
func NewResult(err error, okMessage string) Result {
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	return Result{Success: true, Message: okMessage}
}
