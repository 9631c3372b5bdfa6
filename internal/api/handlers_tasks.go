package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/nhle/taskbuddy/internal/blob"
	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/tags"
)

// maxFiles caps the attachments accepted in one request.
const maxFiles = 10

// filterFromQuery reads ?category=&start=&end=&tags=&q=&sort=&dir=.
func filterFromQuery(c *gin.Context) (board.FilterValues, board.SortConfig, error) {
	f := board.FilterValues{
		Category:   model.Category(c.Query("category")),
		StartDate:  c.Query("start"),
		EndDate:    c.Query("end"),
		SearchText: c.Query("q"),
		Tags:       tags.Split(c.Query("tags")),
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, board.SortConfig{}, fmt.Errorf("unknown category %q", f.Category)
	}

	key, ok := board.ParseSortKey(c.Query("sort"))
	if !ok {
		return f, board.SortConfig{}, fmt.Errorf("unknown sort key %q", c.Query("sort"))
	}
	sc := board.SortConfig{Key: key, Direction: board.Asc}
	switch dir := board.Direction(c.DefaultQuery("dir", string(board.Asc))); dir {
	case board.Asc, board.Desc:
		sc.Direction = dir
	default:
		return f, sc, fmt.Errorf("unknown sort direction %q", dir)
	}
	return f, sc, nil
}

func (s *Server) handleListTasks(c *gin.Context) {
	f, sc, err := filterFromQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	ctx := c.Request.Context()

	view, err := s.tasks.View(ctx, userIDFrom(ctx), f, sc)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	if status := c.Query("status"); status != "" {
		lane, ok := view.Lane(model.Status(status))
		if !ok {
			writeError(c, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown status %q", status))
			return
		}
		view.Lanes = []board.Lane{lane}
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleGetTask(c *gin.Context) {
	ctx := c.Request.Context()
	t, err := s.tasks.Get(ctx, userIDFrom(ctx), c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var draft model.TaskDraft
	files, err := bindWithFiles(c, "task", &draft)
	if err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	ctx := c.Request.Context()

	t, err := s.tasks.Create(ctx, userIDFrom(ctx), draft, files)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var u model.TaskUpdate
	files, err := bindWithFiles(c, "update", &u)
	if err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	ctx := c.Request.Context()

	t, err := s.tasks.Update(ctx, userIDFrom(ctx), c.Param("id"), u, files)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.tasks.Delete(ctx, userIDFrom(ctx), c.Param("id")); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveRequest struct {
	Status model.Status `json:"status" binding:"required"`
	// From is the lane the card was dragged out of; the stored status
	// is used when omitted.
	From model.Status `json:"from"`
}

// handleMoveTask is the drop half of a drag: dropping on the card's own
// lane changes nothing.
func (s *Server) handleMoveTask(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "status is required")
		return
	}
	ctx := c.Request.Context()
	uid := userIDFrom(ctx)
	id := c.Param("id")

	from := req.From
	if from == "" {
		t, err := s.tasks.Get(ctx, uid, id)
		if err != nil {
			writeStoreError(c, err)
			return
		}
		from = t.Status
	}

	drag := board.NewDragTracker(s.tasks.As(uid))
	drag.Start(id, from)
	cmd, err := drag.Drop(ctx, req.Status)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": cmd != nil, "status": req.Status})
}

type batchRequest struct {
	Action  string   `json:"action" binding:"required"`
	IDs     []string `json:"ids"`
	Confirm bool     `json:"confirm"`
}

type batchResponse struct {
	Action    string       `json:"action"`
	Processed int          `json:"processed"`
	Failed    []string     `json:"failed,omitempty"`
	Error     *errorDetail `json:"error,omitempty"`
}

func (s *Server) handleBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "action is required")
		return
	}
	ctx := c.Request.Context()
	actor := s.tasks.As(userIDFrom(ctx))

	sel := board.NewSelection()
	sel.ToggleMultiSelect()
	for _, id := range req.IDs {
		if !sel.Contains(id) {
			sel.Toggle(id)
		}
	}
	n := sel.Len()

	var err error
	switch req.Action {
	case "delete":
		err = sel.BatchDelete(ctx, actor, func(int) bool { return req.Confirm })
	case "complete":
		err = sel.BatchComplete(ctx, actor)
	default:
		writeError(c, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	var batchErr *board.BatchError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, batchResponse{Action: req.Action, Processed: n})
	case errors.Is(err, board.ErrNotConfirmed):
		writeError(c, http.StatusBadRequest, "confirmation_required", "set confirm to true to delete the selected tasks")
	case errors.As(err, &batchErr):
		logFor(ctx).Warn("batch partially failed", "action", req.Action, "failed", len(batchErr.Failed), "err", err)
		c.JSON(http.StatusMultiStatus, batchResponse{
			Action:    req.Action,
			Processed: n - len(batchErr.Failed),
			Failed:    batchErr.FailedIDs(),
			Error:     &errorDetail{Code: "partial_failure", Message: "some items failed"},
		})
	default:
		writeStoreError(c, err)
	}
}

func (s *Server) handleAttachment(c *gin.Context) {
	key := path.Clean(c.Param("key"))
	if !strings.HasPrefix(key, "/"+blob.Prefix+"/") {
		writeError(c, http.StatusNotFound, "not_found", "no such attachment")
		return
	}
	c.FileFromFS(key, afero.NewHttpFs(s.files.FS()))
}

// bindWithFiles decodes a JSON body, or a multipart form whose field
// named jsonField holds the JSON and whose "files" parts are uploads.
func bindWithFiles(c *gin.Context, jsonField string, dst any) ([]model.FileUpload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(dst); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	if vals := form.Value[jsonField]; len(vals) > 0 {
		if err := json.Unmarshal([]byte(vals[0]), dst); err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", jsonField, err)
		}
	}

	headers := form.File["files"]
	if len(headers) > maxFiles {
		return nil, fmt.Errorf("at most %d files per request", maxFiles)
	}
	files := make([]model.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		files = append(files, model.FileUpload{Name: fh.Filename, Data: data})
	}
	return files, nil
}
