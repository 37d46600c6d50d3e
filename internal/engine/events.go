package engine

import (
	"k8s.io/klog/v2"

	"github.com/piwi3910/bompack/internal/model"
)

// KlogObserver forwards events to klog as they happen. Per-generation
// progress is only shown at verbosity 2 and above.
func KlogObserver(e model.Event) {
	switch {
	case e.Level == model.EventWarning:
		klog.Warning(e.Message)
	case e.Generation > 0:
		klog.V(2).Info(e.Message)
	default:
		klog.V(1).Info(e.Message)
	}
}

// LogEvents replays the event log of a finished result through klog.
func LogEvents(events []model.Event) {
	for _, e := range events {
		KlogObserver(e)
	}
}
