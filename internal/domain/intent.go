package domain

// Intent is the classified meaning of a driver chat message. Produced
// by the external intent classifier; the transition engine treats it
// as an opaque trigger.
type Intent string

const (
	IntentLoadingStarted    Intent = "loading_started"
	IntentLoadingComplete   Intent = "loading_complete"
	IntentUnloadingStarted  Intent = "unloading_started"
	IntentUnloadingComplete Intent = "unloading_complete"
	IntentQuestion          Intent = "question"
	IntentUnknown           Intent = "unknown"
)

// IntentResult is the classifier's verdict for one driver message.
type IntentResult struct {
	Intent             Intent
	Confidence         float64
	ResponseText       string
	SuggestedSubstatus *Substatus
}
