// Package screeningservice contains the content-safety gate for relayed
// operations that carry user media or text.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package screeningservice
