package ragerr

// Kind names one of the semantic error kinds the pipeline and store
// produce. These are the kinds named in the error handling design, not
// Go error types — callers switch on Kind, never on the concrete type.
type Kind string

const (
	KindExtractionFailed     Kind = "ExtractionFailed"
	KindValidationRejected   Kind = "ValidationRejected"
	KindEmbeddingFailed      Kind = "EmbeddingFailed"
	KindStoreConflict        Kind = "StoreConflict"
	KindMoveDetected         Kind = "MoveDetected"
	KindDuplicateContent     Kind = "DuplicateContent"
	KindQueueClosed          Kind = "QueueClosed"
	KindConfigInvalid        Kind = "ConfigInvalid"
	KindSchemaMigrationFailed Kind = "SchemaMigrationFailed"
	KindBackpressureTimeout  Kind = "BackpressureTimeout"
)

// Category groups kinds for logging and metrics cardinality.
type Category string

const (
	CategoryIngestion  Category = "ingestion"
	CategoryStore      Category = "store"
	CategoryQueue      Category = "queue"
	CategoryConfig     Category = "config"
	CategoryPipeline   Category = "pipeline"
)

// Severity indicates how the caller should react.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

var kindMeta = map[Kind]struct {
	category  Category
	severity  Severity
	retryable bool
}{
	KindExtractionFailed:      {CategoryIngestion, SeverityError, false},
	KindValidationRejected:    {CategoryIngestion, SeverityWarning, false},
	KindEmbeddingFailed:       {CategoryPipeline, SeverityError, true},
	KindStoreConflict:         {CategoryStore, SeverityError, true},
	KindMoveDetected:          {CategoryStore, SeverityWarning, false},
	KindDuplicateContent:      {CategoryStore, SeverityWarning, false},
	KindQueueClosed:           {CategoryQueue, SeverityWarning, false},
	KindConfigInvalid:         {CategoryConfig, SeverityFatal, false},
	KindSchemaMigrationFailed: {CategoryStore, SeverityFatal, false},
	KindBackpressureTimeout:   {CategoryPipeline, SeverityWarning, true},
}
