package metrics

import "time"

// Recorder records observations. All methods are safe on a nil *Recorder so
// callers never need to check whether metrics are enabled.
type Recorder struct {
	m *Metrics
}

// NewRecorder creates a recorder backed by m.
func NewRecorder(m *Metrics) *Recorder {
	if m == nil {
		return nil
	}
	return &Recorder{m: m}
}

// PassOutcome summarises one conversion pass.
type PassOutcome struct {
	Success  bool
	Duration time.Duration
	Blocks   int
	Uploaded int
	Reused   int
	Skipped  int
}

// PassStarted marks a pass as running. Call the returned func when it ends.
func (r *Recorder) PassStarted() func() {
	if r == nil {
		return func() {}
	}
	r.m.PassesRunning.Inc()
	return r.m.PassesRunning.Dec
}

// RecordPass records a finished pass.
func (r *Recorder) RecordPass(o PassOutcome) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if !o.Success {
		result = ResultError
	}
	r.m.PassesTotal.WithLabelValues(result).Inc()
	r.m.PassDuration.Observe(o.Duration.Seconds())
	if o.Success {
		r.m.BlocksEmitted.Add(float64(o.Blocks))
	}
	r.m.ImagesTotal.WithLabelValues(ImageUploaded).Add(float64(o.Uploaded))
	r.m.ImagesTotal.WithLabelValues(ImageReused).Add(float64(o.Reused))
	r.m.ImagesTotal.WithLabelValues(ImageSkipped).Add(float64(o.Skipped))
}

// RecordAPICall records one content API operation.
func (r *Recorder) RecordAPICall(operation string, d time.Duration, err error) {
	if r == nil {
		return
	}
	status := ResultSuccess
	if err != nil {
		status = ResultError
	}
	r.m.ContentAPIRequestsTotal.WithLabelValues(operation, status).Inc()
	r.m.ContentAPIRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordPublish records a publish or preview result.
func (r *Recorder) RecordPublish(kind, status string) {
	if r == nil {
		return
	}
	r.m.PublishesTotal.WithLabelValues(kind, status).Inc()
}
