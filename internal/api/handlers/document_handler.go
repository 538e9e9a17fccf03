package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Rajan093/VastuAi/internal/config"
	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/core/ingest"
	"github.com/Rajan093/VastuAi/internal/models"
	"github.com/google/uuid"
)

type DocumentHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	ingestor     ingest.Ingestor
	cfg          *config.Config
}

func NewDocumentHandler(dbclient core.DbClient, objectclient core.ObjectClient, ing ingest.Ingestor, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, objectclient: objectclient, ingestor: ing, cfg: cfg}
}

// UploadDocument handles rule book upload, DB insert, and background ingestion.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.ParseMultipartForm(52 << 20)

	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}

	// Sanitize filename to prevent path traversal or invalid characters
	cleanFilename := filepath.Base(header.Filename)
	docID := uuid.NewString()

	s3Key := fmt.Sprintf("%s/%s/%s", userID, docID, cleanFilename)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	url, err := h.objectclient.UploadFile(uploadctx, h.cfg.BucketName, s3Key, data, contentType)
	if err != nil {
		http.Error(w, fmt.Sprintf("upload failed: %v", err), 500)
		return
	}

	doc := &models.Document{
		ID:          docID,
		UserID:      userID,
		FileName:    cleanFilename,
		StorageURL:  url,
		SourceType:  "upload",
		Status:      "uploaded",
		ContentType: contentType,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := h.dbclient.CreateDocument(uploadctx, doc); err != nil {
		log.Printf("DB insert failed for doc %s: %v", docID, err)
		http.Error(w, fmt.Sprintf("failed to store document metadata: %v", err), http.StatusInternalServerError)
		return
	}

	h.ingestor.Enqueue(doc.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.Context().Value("user_id").(string); !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	documents, err := h.dbclient.ListDocuments(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(documents)
}
