// Package relayservice accepts signed user intents over HTTP and executes
// them as relayer-paid transactions on the two target ledgers: the access
// ledger that gates sealed content and the catalog ledger that carries the
// social graph. Users never hold gas; authorization is carried entirely by
// the intent signature, freshness window and per-actor nonce.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package relayservice
