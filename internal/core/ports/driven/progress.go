package driven

// ProgressFunc receives the running count of records committed so far.
// It is a reporting hook only and must not block for long.
type ProgressFunc func(committed int)
