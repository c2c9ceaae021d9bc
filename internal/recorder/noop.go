package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrainingRun(_ *TrainingRun) error { return nil }
func (n *NoopRecorder) RecordForecast(_ *ForecastEvent) error  { return nil }
func (n *NoopRecorder) Close() error                           { return nil }
