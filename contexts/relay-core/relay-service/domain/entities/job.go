package entities

// LedgerName distinguishes the two target ledgers.
type LedgerName string

const (
	// LedgerAccess is the gating ledger; access decisions consult it.
	LedgerAccess LedgerName = "access"
	// LedgerCatalog is the primary ledger hosting catalog, names, playlists, posts.
	LedgerCatalog LedgerName = "catalog"
)

// Pipeline step names, reported in outcomes and journal rows.
const (
	StepConsumeNonce    = "consume_nonce"
	StepRegisterMissing = "register_missing"
	StepRegisterAccess  = "register_access"
	StepMirrorCatalog   = "mirror_catalog"
	StepClaimName       = "claim_name"
	StepSetProfile      = "set_profile_records"
	StepSubmitPlaylist  = "submit_playlist"
	StepPublishPost     = "publish_post"
	StepSetCover        = "set_cover"
)

// Receipt is the confirmed result of one broadcast transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64
}

func (r Receipt) Succeeded() bool {
	return r.Status == 1
}
