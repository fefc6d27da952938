package metrics

import "time"

// Noop is a no-operation Recorder for deployments that do not scrape
// metrics, and for tests.
type Noop struct{}

var _ Recorder = (*Noop)(nil)

// NewNoop creates a no-operation recorder.
func NewNoop() Recorder {
	return &Noop{}
}

func (n *Noop) RecordTokenIssued(grantType string, duration time.Duration) {}
func (n *Noop) RecordTokenError(grantType, kind string)                    {}
func (n *Noop) RecordTokenValidation(result string)                        {}
func (n *Noop) RecordAuthorization(success bool)                           {}
