package pipeline

import (
	"fmt"
)

// State is a step of the resolution. Served, NotFound and TooLarge are
// terminal.
type State int

const (
	CheckingCache State = iota
	ResolvingSource
	FetchingRemote
	DecodingEmbedded
	Uploading
	Serving
	Served
	NotFound
	TooLarge
)

var stateNames = [...]string{
	CheckingCache:    "checking-cache",
	ResolvingSource:  "resolving-source",
	FetchingRemote:   "fetching-remote",
	DecodingEmbedded: "decoding-embedded",
	Uploading:        "uploading",
	Serving:          "serving",
	Served:           "served",
	NotFound:         "not-found",
	TooLarge:         "too-large",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Kind says which step of the resolution failed.
type Kind int

const (
	CacheMiss Kind = iota
	LookupFailure
	NoImageFound
	UnsupportedLocatorFormat
	RemoteFetchFailure
	UploadFailure
	ServeFailure
)

var kindNames = [...]string{
	CacheMiss:                "cache-miss",
	LookupFailure:            "lookup-failure",
	NoImageFound:             "no-image-found",
	UnsupportedLocatorFormat: "unsupported-locator-format",
	RemoteFetchFailure:       "remote-fetch-failure",
	UploadFailure:            "upload-failure",
	ServeFailure:             "serve-failure",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// StepError is the cause of a NotFound outcome. It is for logs only;
// callers see the same not-found response whatever the Kind.
type StepError struct {
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}
