package types

type PresignRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize *int64 `json:"fileSize"`
}

type PresignResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
}

type MultipartInitRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type MultipartInitResponse struct {
	Key       string `json:"key"`
	UploadID  string `json:"uploadId"`
	PublicURL string `json:"publicUrl"`
}

type SignPartRequest struct {
	Key        string `json:"key"`
	UploadID   string `json:"uploadId"`
	PartNumber int    `json:"partNumber"`
}

type SignPartResponse struct {
	URL string `json:"url"`
}

// CompletePart is one acknowledged part of a multipart upload. ETag is
// stored without surrounding quotes.
type CompletePart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

type CompleteRequest struct {
	Key      string         `json:"key"`
	UploadID string         `json:"uploadId"`
	Parts    []CompletePart `json:"parts"`
}

type AbortRequest struct {
	Key      string `json:"key"`
	UploadID string `json:"uploadId"`
}

type MediaFile struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
