package constant

// Attribute names written by the pipeline itself.
const (
	PropertyEnrichmentError = "EnrichmentError"
	PropertyTemplateError   = "TemplateError"
	PropertySimulationTime  = "SimulationTime"
	PropertyRunID           = "RunID"
	PropertyMachineName     = "MachineName"
	PropertyProcessID       = "ProcessID"
	PropertyEventType       = "EventType"
	PropertySourceContext   = "SourceContext"
)

// Enricher names accepted in configuration.
const (
	EnricherSimulationTime = "simulation_time"
	EnricherRunID          = "run_id"
	EnricherHostname       = "hostname"
	EnricherProcess        = "process"
	EnricherEventType      = "event_type"
)

const Unserializable = "<unserializable>"
