package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
	"spreadsheet-data-cleaner/internal/services"
)

const (
	uploadFormField = "file"
	maxUploadMemory = 32 << 20
	runIDKey        = "run_id"
	xlsxContentType = services.XLSXContentType
)

// CleaningHandler serves uploads, synchronous and async runs, and downloads
type CleaningHandler struct {
	log        *logger.Logger
	slots      *services.FileSlots
	pipeline   *services.CleaningPipeline
	dispatcher *services.AsyncDispatcher
	history    *services.RunHistoryStore
}

// NewCleaningHandler creates a new cleaning handler. dispatcher and history may be nil.
func NewCleaningHandler(
	log *logger.Logger,
	slots *services.FileSlots,
	pipeline *services.CleaningPipeline,
	dispatcher *services.AsyncDispatcher,
	history *services.RunHistoryStore,
) *CleaningHandler {
	return &CleaningHandler{
		log:        log.With("handler", "CleaningHandler"),
		slots:      slots,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		history:    history,
	}
}

// UploadTemplate handles POST /upload_template
func (h *CleaningHandler) UploadTemplate(c *gin.Context) {
	h.upload(c, services.SlotTemplate, "Template uploaded successfully")
}

// UploadMessy handles POST /upload_messy
func (h *CleaningHandler) UploadMessy(c *gin.Context) {
	h.upload(c, services.SlotMessy, "Messy file uploaded successfully")
}

func (h *CleaningHandler) upload(c *gin.Context, slot services.Slot, message string) {
	header, err := uploadedFile(c)
	if err != nil {
		RespondError(c, statusFor(err), err.Error(), nil)
		return
	}

	f, err := header.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}

	path, err := h.slots.Save(slot, bytes.NewReader(content))
	if err != nil {
		h.log.Error("Failed to save upload", "slot", string(slot), "error", err)
		RespondError(c, http.StatusInternalServerError, "Failed to save file", err)
		return
	}

	h.log.Info("Saved upload",
		"slot", string(slot),
		"filename", header.Filename,
		"size", len(content),
		"content_hash", models.GenerateContentHash(content))

	RespondOK(c, gin.H{"message": message, "saved_as": path})
}

// uploadedFile returns the multipart "file" part or an *models.UploadError
func uploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, models.NewUploadError("No file part in the request")
	}
	form := c.Request.MultipartForm

	files := form.File[uploadFormField]
	if len(files) == 0 {
		// A part sent with an empty filename is parsed as a plain value
		if _, ok := form.Value[uploadFormField]; ok {
			return nil, models.NewUploadError("No selected file")
		}
		return nil, models.NewUploadError("No file part in the request")
	}
	if strings.TrimSpace(files[0].Filename) == "" {
		return nil, models.NewUploadError("No selected file")
	}
	return files[0], nil
}

// MapAndClean runs the pipeline over the uploaded slots
func (h *CleaningHandler) MapAndClean(c *gin.Context) {
	runID := models.GenerateRunID()
	c.Set(runIDKey, runID)

	result, err := h.pipeline.RunSlots(c.Request.Context(), h.slots, runID, models.TriggerHTTP)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "Processing failed", err)
		return
	}
	RespondOK(c, result)
}

// MapAndCleanAsync stages the uploaded slots and hands the run to the cleaning function
func (h *CleaningHandler) MapAndCleanAsync(c *gin.Context) {
	if h.dispatcher == nil {
		RespondError(c, http.StatusServiceUnavailable, "Async cleaning is not configured", nil)
		return
	}

	runID := models.GenerateRunID()
	c.Set(runIDKey, runID)

	if _, err := h.dispatcher.DispatchSlots(c.Request.Context(), h.slots, runID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			RespondError(c, http.StatusBadRequest, "Template and messy files must be uploaded first", err)
			return
		}
		h.log.Error("Failed to dispatch cleaning run", "run_id", runID, "error", err)
		RespondError(c, http.StatusInternalServerError, "Dispatch failed", err)
		return
	}

	if h.history != nil {
		run := models.NewCleaningRun(runID, models.TriggerLambda,
			models.RunInputKey(runID, models.TemplateFileName),
			models.RunInputKey(runID, models.MessyFileName),
			time.Now())
		if err := h.history.PutRun(c.Request.Context(), run); err != nil {
			h.log.Warn("Failed to record queued run", "run_id", runID, "error", err)
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Cleaning run queued",
		"run_id":  runID,
	})
}

// DownloadCleaned streams the cleaned workbook from the last run
func (h *CleaningHandler) DownloadCleaned(c *gin.Context) {
	h.download(c, services.SlotCleaned, "Cleaned file not found")
}

// DownloadRejected streams the rejected rows from the last run
func (h *CleaningHandler) DownloadRejected(c *gin.Context) {
	h.download(c, services.SlotRejected, "Rejected file not found")
}

func (h *CleaningHandler) download(c *gin.Context, slot services.Slot, notFound string) {
	f, err := h.slots.Open(slot)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			RespondError(c, http.StatusNotFound, notFound, nil)
			return
		}
		RespondError(c, http.StatusInternalServerError, "Failed to open file", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "Failed to open file", err)
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), xlsxContentType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, string(slot)),
	})
}
