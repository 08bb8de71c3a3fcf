package edit

import "time"

// Recorder receives save outcomes, e.g. to export them as metrics.
type Recorder interface {
	ObserveWrite(kind, op string, err error)
	ObserveSave(kind string, res Result, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveWrite(string, string, error) {
}

func (nopRecorder) ObserveSave(string, Result, time.Duration) {
}
