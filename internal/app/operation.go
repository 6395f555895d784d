package app

import "time"

// Operation identifies one CLI invocation. Its ID tags every log line the
// invocation writes, so a server run and a "user add" can be told apart in
// the shared log file.
type Operation struct {
	Name    string
	Started time.Time
}

// NewOperation starts an operation named after the CLI command being run.
func NewOperation(name string, started time.Time) *Operation {
	return &Operation{Name: name, Started: started.UTC()}
}

// ID returns "<name>-<UTC start time>", e.g. "serve-20240115T103000Z".
func (op *Operation) ID() string {
	return op.Name + "-" + op.Started.Format("20060102T150405Z")
}
