package httptransport

type CheckRequest struct {
	Text        string `json:"text,omitempty"`
	MediaBase64 string `json:"media_base64,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type CheckResponse struct {
	Safe   bool     `json:"safe"`
	Reason string   `json:"reason,omitempty"`
	Flags  []string `json:"flags,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
