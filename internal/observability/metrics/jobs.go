// Package metrics emits the summarizer's job and pool metrics.
package metrics

import (
	"time"

	obserrors "github.com/target/mmk-summarizer/internal/observability/errors"
	"github.com/target/mmk-summarizer/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric captures one job transition.
type JobMetric struct {
	Transition string
	Result     string
	Stage      string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, when a duration is set, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Stage != "" {
		tags["stage"] = in.Stage
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitStage records how long a pipeline stage took.
func EmitStage(sink statsd.Sink, stage, result string, d time.Duration) {
	if sink == nil {
		return
	}
	sink.Timing("job.stage.duration", d, map[string]string{"stage": stage, "result": result})
}

// EmitSubmission counts submission outcomes.
func EmitSubmission(sink statsd.Sink, result string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": result}
	if err != nil {
		tags["error_class"] = obserrors.Classify(err)
	}
	sink.Count("job.submission", 1, tags)
}

// EmitPoolDepth reports the queued and running task counts.
func EmitPoolDepth(sink statsd.Sink, queued, running int) {
	if sink == nil {
		return
	}
	sink.Gauge("pool.queued", float64(queued), nil)
	sink.Gauge("pool.running", float64(running), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
