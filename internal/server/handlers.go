package server

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/hlog"

	"github.com/gostones/mediavault/internal/store"
	"github.com/gostones/mediavault/internal/types"
	"github.com/gostones/mediavault/internal/upload"
)

// ISO 8601 with millisecond precision.
const lastModifiedFormat = "2006-01-02T15:04:05.000Z07:00"

func (s *Server) presign(w http.ResponseWriter, r *http.Request) {
	var req types.PresignRequest
	if !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileName == "" || req.FileType == "" || req.FileSize == nil || *req.FileSize < 0 {
		writeError(w, http.StatusBadRequest, "fileName, fileType and fileSize are required")
		return
	}
	if !upload.IsImage(req.FileType) {
		writeError(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}
	if *req.FileSize > s.cfg.MaxFileSize {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("File size exceeds max limit of %s", humanize.IBytes(uint64(s.cfg.MaxFileSize))))
		return
	}

	key := store.NewObjectKey(s.cfg.ObjectPrefix, req.FileName, time.Now())
	auth, err := s.store.Authorize(r.Context(), key, store.OpPutObject, store.Scope{ContentType: req.FileType})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("presign failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate presigned URL")
		return
	}

	writeJSON(w, http.StatusOK, &types.PresignResponse{
		Key:       key,
		UploadURL: auth.URL,
		PublicURL: store.PublicURL(s.cfg.PublicBaseURL, key),
	})
}

func (s *Server) initMultipart(w http.ResponseWriter, r *http.Request) {
	var req types.MultipartInitRequest
	if !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileName == "" || req.FileType == "" {
		writeError(w, http.StatusBadRequest, "fileName and fileType are required")
		return
	}
	if !upload.IsImage(req.FileType) {
		writeError(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	key := store.NewObjectKey(s.cfg.ObjectPrefix, req.FileName, time.Now())
	uploadID, err := s.store.InitiateSession(r.Context(), key, req.FileType)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("init multipart failed")
		writeError(w, http.StatusInternalServerError, "Failed to init multipart upload")
		return
	}

	hlog.FromRequest(r).Info().Str("key", key).Str("upload_id", uploadID).Msg("multipart upload started")
	writeJSON(w, http.StatusOK, &types.MultipartInitResponse{
		Key:       key,
		UploadID:  uploadID,
		PublicURL: store.PublicURL(s.cfg.PublicBaseURL, key),
	})
}

func (s *Server) signPart(w http.ResponseWriter, r *http.Request) {
	var req types.SignPartRequest
	if !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Key == "" || req.UploadID == "" || req.PartNumber < 1 || req.PartNumber > maxPartNumber {
		writeError(w, http.StatusBadRequest, "key, uploadId and partNumber are required")
		return
	}
	if store.CheckPrefix(s.cfg.ObjectPrefix, req.Key) != nil {
		writeError(w, http.StatusBadRequest, "Invalid key")
		return
	}

	auth, err := s.store.Authorize(r.Context(), req.Key, store.OpUploadPart, store.Scope{
		SessionToken: req.UploadID,
		PartNumber:   req.PartNumber,
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", req.Key).Int("part", req.PartNumber).Msg("sign part failed")
		writeError(w, http.StatusInternalServerError, "Failed to sign part")
		return
	}
	writeJSON(w, http.StatusOK, &types.SignPartResponse{URL: auth.URL})
}

func (s *Server) completeMultipart(w http.ResponseWriter, r *http.Request) {
	var req types.CompleteRequest
	if !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Key == "" || req.UploadID == "" || len(req.Parts) == 0 {
		writeError(w, http.StatusBadRequest, "key, uploadId and parts are required")
		return
	}
	if store.CheckPrefix(s.cfg.ObjectPrefix, req.Key) != nil {
		writeError(w, http.StatusBadRequest, "Invalid key")
		return
	}

	if err := s.store.FinalizeSession(r.Context(), req.Key, req.UploadID, req.Parts); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", req.Key).Msg("complete multipart failed")
		writeError(w, http.StatusInternalServerError, "Failed to complete multipart upload")
		return
	}

	hlog.FromRequest(r).Info().Str("key", req.Key).Int("parts", len(req.Parts)).Msg("multipart upload completed")
	writeJSON(w, http.StatusOK, &types.OKResponse{OK: true})
}

func (s *Server) abortMultipart(w http.ResponseWriter, r *http.Request) {
	var req types.AbortRequest
	if !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Key == "" || req.UploadID == "" {
		writeError(w, http.StatusBadRequest, "key and uploadId are required")
		return
	}
	if store.CheckPrefix(s.cfg.ObjectPrefix, req.Key) != nil {
		writeError(w, http.StatusBadRequest, "Invalid key")
		return
	}

	if err := s.store.AbortSession(r.Context(), req.Key, req.UploadID); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", req.Key).Msg("abort multipart failed")
		writeError(w, http.StatusInternalServerError, "Failed to abort multipart upload")
		return
	}
	writeJSON(w, http.StatusOK, &types.OKResponse{OK: true})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	objects, err := s.store.ListObjects(r.Context(), s.cfg.ObjectPrefix)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list failed")
		writeError(w, http.StatusInternalServerError, "Failed to list media files")
		return
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	files := make([]types.MediaFile, 0, len(objects))
	for _, o := range objects {
		f := types.MediaFile{
			Key:  o.Key,
			URL:  store.PublicURL(s.cfg.PublicBaseURL, o.Key),
			Size: o.Size,
		}
		if !o.LastModified.IsZero() {
			f.LastModified = o.LastModified.UTC().Format(lastModifiedFormat)
		}
		files = append(files, f)
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if store.CheckPrefix(s.cfg.ObjectPrefix, key) != nil {
		writeError(w, http.StatusBadRequest, "Invalid key")
		return
	}

	if err := s.store.DeleteObject(r.Context(), key); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("delete failed")
		writeError(w, http.StatusInternalServerError, "Failed to delete media file")
		return
	}

	hlog.FromRequest(r).Info().Str("key", key).Msg("media file deleted")
	writeJSON(w, http.StatusOK, &types.OKResponse{OK: true})
}
