package ports

import "context"

// Media is a pre-fetched binary payload with its declared content type.
type Media struct {
	Data        []byte
	ContentType string
}

// Verdict is the classifier decision. Flags carry auxiliary routing hints
// (e.g. a suggested transform); they never affect the safe/unsafe call.
type Verdict struct {
	Safe   bool
	Reason string
	Flags  []string
}

// Classifier is the opaque external verdict source. Model internals are out
// of scope; this module only interprets the returned verdict.
type Classifier interface {
	Classify(ctx context.Context, media *Media, text string) (Verdict, error)
}
