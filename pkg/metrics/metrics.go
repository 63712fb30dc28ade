package metrics

/*
Labels and so on for metrics used in imgcdn.
*/

const (
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelSuccess = "success"

	// Labels for pipeline metrics
	LabelNetwork = "network"
	LabelClass   = "class"
	LabelOutcome = "outcome"
	LabelKind    = "kind"
)
