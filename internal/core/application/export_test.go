package application

// test hooks to keep retry backoffs out of the test wall clock
var (
	SubmitRetryDelay = &submitRetryDelay
)
