package httptransport

// DescriptorDTO carries exactly one identity, selected by Kind. Title, artist
// and album double as display metadata for every kind.
type DescriptorDTO struct {
	Kind         string `json:"kind"`
	CatalogID    string `json:"catalog_id,omitempty"`
	AssetAddress string `json:"asset_address,omitempty"`
	Title        string `json:"title,omitempty"`
	Artist       string `json:"artist,omitempty"`
	Album        string `json:"album,omitempty"`
}

type MediaDTO struct {
	DataBase64  string `json:"data_base64"`
	ContentType string `json:"content_type"`
}

type StepDTO struct {
	Name        string `json:"name"`
	Ledger      string `json:"ledger,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

type RegisterNameRequest struct {
	UserAddress string `json:"user_address"`
	Name        string `json:"name"`
	Timestamp   int64  `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type RegisterNameResponse struct {
	Success  bool     `json:"success"`
	JobID    string   `json:"job_id,omitempty"`
	Name     string   `json:"name,omitempty"`
	TxHash   string   `json:"tx_hash,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type UpdateProfileRequest struct {
	UserAddress string            `json:"user_address"`
	Records     map[string]string `json:"records"`
	Timestamp   int64             `json:"timestamp"`
	Nonce       string            `json:"nonce"`
	Signature   string            `json:"signature"`
}

type UpdateProfileResponse struct {
	Success      bool     `json:"success"`
	JobID        string   `json:"job_id,omitempty"`
	UpdatedCount int      `json:"updated_count"`
	UpdatedKeys  []string `json:"updated_keys,omitempty"`
	TxHash       string   `json:"tx_hash,omitempty"`
	Error        string   `json:"error,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

type RegisterContentRequest struct {
	UserAddress string        `json:"user_address"`
	Descriptor  DescriptorDTO `json:"descriptor"`
	PieceCID    string        `json:"piece_cid"`
	Algo        uint8         `json:"algo,omitempty"`
	Cover       *MediaDTO     `json:"cover,omitempty"`
	Timestamp   int64         `json:"timestamp"`
	Nonce       string        `json:"nonce"`
	Signature   string        `json:"signature"`
}

type RegisterContentResponse struct {
	Success      bool     `json:"success"`
	JobID        string   `json:"job_id,omitempty"`
	TrackID      string   `json:"track_id,omitempty"`
	AccessTxHash string   `json:"access_tx_hash,omitempty"`
	MirrorTxHash string   `json:"mirror_tx_hash,omitempty"`
	CoverRef     string   `json:"cover_ref,omitempty"`
	PendingStep  string   `json:"pending_step,omitempty"`
	Error        string   `json:"error,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

type SubmitPlaylistRequest struct {
	UserAddress string          `json:"user_address"`
	Playlist    DescriptorDTO   `json:"playlist"`
	Tracks      []DescriptorDTO `json:"tracks"`
	Cover       *MediaDTO       `json:"cover,omitempty"`
	Timestamp   int64           `json:"timestamp"`
	Nonce       string          `json:"nonce"`
	Signature   string          `json:"signature"`
}

type SubmitPlaylistResponse struct {
	Success         bool     `json:"success"`
	JobID           string   `json:"job_id,omitempty"`
	PlaylistID      string   `json:"playlist_id,omitempty"`
	RegisteredCount int      `json:"registered_count"`
	TxHash          string   `json:"tx_hash,omitempty"`
	CoverRef        string   `json:"cover_ref,omitempty"`
	Error           string   `json:"error,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

type CreatePostRequest struct {
	UserAddress string         `json:"user_address"`
	Text        string         `json:"text"`
	Media       *MediaDTO      `json:"media,omitempty"`
	Track       *DescriptorDTO `json:"track,omitempty"`
	Timestamp   int64          `json:"timestamp"`
	Nonce       string         `json:"nonce"`
	Signature   string         `json:"signature"`
}

type CreatePostResponse struct {
	Success  bool     `json:"success"`
	JobID    string   `json:"job_id,omitempty"`
	PostRef  string   `json:"post_ref,omitempty"`
	TrackID  string   `json:"track_id,omitempty"`
	TxHash   string   `json:"tx_hash,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type JobStatusResponse struct {
	JobID       string    `json:"job_id"`
	Operation   string    `json:"operation"`
	Actor       string    `json:"actor"`
	Status      string    `json:"status"`
	Completed   []StepDTO `json:"completed,omitempty"`
	PendingStep string    `json:"pending_step,omitempty"`
	Error       string    `json:"error,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Attempts    int       `json:"attempts"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// ErrorResponse is the body for requests rejected before any ledger work.
// It keeps the success envelope so clients parse one shape everywhere.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
