package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/infrastructure/storage"
	"BookPublisher/internal/usecase"
)

const (
	maxUploadBytes    = 16 << 20
	defaultUITopK     = 3
	uploadFieldName   = "chapter"
	recordFieldName   = "record"
	stageScreenshot   = "screenshot"
	reviewedTextField = "reviewed_text"
)

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

// Handler serves the pipeline, editor and archive pages.
type Handler struct {
	pipeline  *usecase.Pipeline
	finalizer *usecase.Finalizer
	archive   *usecase.Archive
	store     *storage.FileStore
	logger    *slog.Logger
}

type pipelinePage struct {
	URL     string
	Stage   string
	Result  *usecase.StageResult
	Message string
	Error   string
}

type editorPage struct {
	Record     *domain.ChapterRecord
	RecordJSON string
	Outcome    *usecase.Outcome
	Message    string
	Error      string
}

type archivePage struct {
	Query    string
	TopK     int
	Searched bool
	Results  []usecase.SearchResult
	Message  string
	Error    string
}

// PipelinePage renders the URL form.
func (h *Handler) PipelinePage(c *gin.Context) {
	c.HTML(http.StatusOK, "pipeline.html", pipelinePage{})
}

// Scrape runs the scraping stage for the submitted URL.
func (h *Handler) Scrape(c *gin.Context) {
	url := strings.TrimSpace(c.PostForm("url"))
	if url == "" {
		c.HTML(http.StatusBadRequest, "pipeline.html", pipelinePage{Error: "Please enter a valid URL."})
		return
	}

	result, err := h.pipeline.Scrape(c.Request.Context(), url)
	if err != nil {
		h.pipelineError(c, pipelinePage{URL: url, Stage: "scrape"}, err)
		return
	}
	c.HTML(http.StatusOK, "pipeline.html", pipelinePage{
		URL:     url,
		Stage:   "scrape",
		Result:  &result,
		Message: "Scraped chapter saved to " + result.Path,
	})
}

// Write rewrites the raw artifact of the submitted chapter.
func (h *Handler) Write(c *gin.Context) {
	chapterID := strings.TrimSpace(c.PostForm("chapter_id"))
	result, err := h.pipeline.Write(c.Request.Context(), chapterID)
	if err != nil {
		h.pipelineError(c, pipelinePage{URL: c.PostForm("url"), Stage: "write"}, err)
		return
	}
	c.HTML(http.StatusOK, "pipeline.html", pipelinePage{
		URL:     c.PostForm("url"),
		Stage:   "write",
		Result:  &result,
		Message: "Spun chapter saved to " + result.Path,
	})
}

// Review critiques the spun artifact of the submitted chapter.
func (h *Handler) Review(c *gin.Context) {
	chapterID := strings.TrimSpace(c.PostForm("chapter_id"))
	result, err := h.pipeline.Review(c.Request.Context(), chapterID, nil)
	if err != nil {
		h.pipelineError(c, pipelinePage{URL: c.PostForm("url"), Stage: "review"}, err)
		return
	}
	c.HTML(http.StatusOK, "pipeline.html", pipelinePage{
		URL:     c.PostForm("url"),
		Stage:   "review",
		Result:  &result,
		Message: "Reviewed chapter saved to " + result.Path,
	})
}

// EditorPage renders the upload form.
func (h *Handler) EditorPage(c *gin.Context) {
	c.HTML(http.StatusOK, "editor.html", editorPage{})
}

// EditorUpload shows an uploaded reviewed chapter for editing.
func (h *Handler) EditorUpload(c *gin.Context) {
	record, err := readRecordUpload(c)
	if err != nil {
		h.editorError(c, editorPage{}, err)
		return
	}
	if err := record.ReadyForFinalization(); err != nil {
		h.editorError(c, editorPage{}, err)
		return
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		h.editorError(c, editorPage{}, err)
		return
	}
	c.HTML(http.StatusOK, "editor.html", editorPage{Record: &record, RecordJSON: string(encoded)})
}

// EditorSave applies the editor's decision to the chapter carried in the form.
func (h *Handler) EditorSave(c *gin.Context) {
	record, err := storage.DecodeRecord([]byte(c.PostForm(recordFieldName)))
	if err != nil {
		h.editorError(c, editorPage{}, err)
		return
	}
	page := editorPage{Record: &record, RecordJSON: c.PostForm(recordFieldName)}

	disposition, err := domain.ParseDisposition(c.PostForm("disposition"))
	if err != nil {
		h.editorError(c, page, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err))
		return
	}

	outcome, err := h.finalizer.Apply(c.Request.Context(), record, usecase.Decision{
		Text:        c.PostForm(reviewedTextField),
		Comments:    c.PostForm("comments"),
		Disposition: disposition,
	})
	if err != nil {
		h.editorError(c, page, err)
		return
	}

	page.Outcome = &outcome
	switch outcome.Disposition {
	case domain.DispositionFinalize:
		page.Message = "Finalized chapter saved to: " + outcome.Path
	case domain.DispositionDiscard:
		page.Message = "Edits discarded; nothing was saved."
	default:
		page.Message = "Chapter saved for further review at: " + outcome.Path
	}
	c.HTML(http.StatusOK, "editor.html", page)
}

// ArchivePage renders the search form and, when q is set, the results.
// format=json returns the results as JSON instead.
func (h *Handler) ArchivePage(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	topK := defaultUITopK
	if raw := c.Query("top_k"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			topK = usecase.ClampTopK(parsed)
		}
	}

	page := archivePage{Query: query, TopK: topK}
	if query == "" {
		c.HTML(http.StatusOK, "archive.html", page)
		return
	}

	results, err := h.archive.Search(c.Request.Context(), query, topK)
	if c.Query("format") == "json" {
		if err != nil {
			status, code := statusFor(err)
			RespondError(c, status, code, err)
			return
		}
		RespondOK(c, gin.H{"results": results})
		return
	}
	if err != nil {
		status, _ := statusFor(err)
		page.Error = err.Error()
		c.HTML(status, "archive.html", page)
		return
	}

	page.Searched = true
	page.Results = results
	c.HTML(http.StatusOK, "archive.html", page)
}

// ArchiveUpload indexes an uploaded final chapter.
func (h *Handler) ArchiveUpload(c *gin.Context) {
	record, err := readRecordUpload(c)
	if err == nil {
		_, err = h.archive.Ingest(c.Request.Context(), record)
	}
	if err != nil {
		status, _ := statusFor(err)
		h.logError("archive upload failed", err)
		c.HTML(status, "archive.html", archivePage{TopK: defaultUITopK, Error: err.Error()})
		return
	}
	c.HTML(http.StatusOK, "archive.html", archivePage{
		TopK:    defaultUITopK,
		Message: fmt.Sprintf("Chapter %s stored in the archive.", record.ChapterID),
	})
}

// ArchiveChapter returns one archived chapter by exact id.
func (h *Handler) ArchiveChapter(c *gin.Context) {
	result, ok, err := h.archive.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := statusFor(err)
		RespondError(c, status, code, err)
		return
	}
	if !ok {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("chapter %s is not archived", c.Param("id")))
		return
	}
	RespondOK(c, result)
}

// Artifact downloads a stage artifact or the page screenshot.
func (h *Handler) Artifact(c *gin.Context) {
	stage, id := c.Param("stage"), c.Param("id")

	var (
		path string
		err  error
	)
	if stage == stageScreenshot {
		path, err = h.store.ScreenshotPath(id)
	} else {
		status := domain.Status(stage)
		if !status.Valid() {
			RespondError(c, http.StatusNotFound, "unknown_stage", fmt.Errorf("unknown stage %q", stage))
			return
		}
		path, err = h.store.PathFor(status, id)
	}
	if err != nil {
		status, code := statusFor(err)
		RespondError(c, status, code, err)
		return
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("no %s artifact for %s", stage, id))
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (h *Handler) pipelineError(c *gin.Context, page pipelinePage, err error) {
	h.logError("pipeline stage failed", err, "stage", page.Stage)
	status, _ := statusFor(err)
	page.Error = err.Error()
	c.HTML(status, "pipeline.html", page)
}

func (h *Handler) editorError(c *gin.Context, page editorPage, err error) {
	h.logError("editor request failed", err)
	status, _ := statusFor(err)
	page.Error = err.Error()
	c.HTML(status, "editor.html", page)
}

func (h *Handler) logError(msg string, err error, args ...any) {
	if h.logger != nil {
		h.logger.Warn(msg, append([]any{"error", err}, args...)...)
	}
}

func readRecordUpload(c *gin.Context) (domain.ChapterRecord, error) {
	header, err := c.FormFile(uploadFieldName)
	if err != nil {
		return domain.ChapterRecord{}, fmt.Errorf("%w: no chapter file uploaded", domain.ErrMalformedRecord)
	}
	file, err := header.Open()
	if err != nil {
		return domain.ChapterRecord{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return domain.ChapterRecord{}, fmt.Errorf("read upload: %w", err)
	}
	return storage.DecodeRecord(raw)
}
