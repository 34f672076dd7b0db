package usecases

import "time"

// Scheduler runs f once after d. The returned cancel func stops a task that has
// not fired yet; calling it after the task ran is a no-op.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

type timerScheduler struct{}

// NewTimerScheduler returns a Scheduler backed by time.AfterFunc
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
