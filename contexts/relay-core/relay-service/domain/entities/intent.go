package entities

// Relay operations a user may authorize.
const (
	OpRegisterName    = "name.register"
	OpUpdateProfile   = "profile.update"
	OpRegisterContent = "content.register"
	OpSubmitPlaylist  = "playlist.submit"
	OpCreatePost      = "post.create"
)

// Intent is a user-signed, off-ledger authorization for one operation,
// redeemable exactly once via nonce consumption on the target ledger.
type Intent struct {
	Actor       string // user address, 0x-hex
	Operation   string
	PayloadHash string // 0x-hex keccak256 of the operation's canonical payload
	Timestamp   int64  // epoch milliseconds at signing time
	Nonce       string // decimal string matching the ledger-held counter
	Signature   []byte // 65 bytes, r||s||v
}
