package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/planner/pkg/auth"
	"github.com/harrisonrobin/planner/pkg/calsync"
	"github.com/harrisonrobin/planner/pkg/filter"
	"github.com/harrisonrobin/planner/pkg/model"
	"github.com/harrisonrobin/planner/pkg/store"
)

// defaultEventWindow bounds /calendar/events when no end date is given.
const defaultEventWindow = 30 * 24 * time.Hour

// taskJSON adds the domain, which model.Task leaves out of its JSON.
type taskJSON struct {
	model.Task
	Domain string `json:"domain"`
}

func taskView(t model.Task) taskJSON {
	return taskJSON{Task: t, Domain: t.Domain.String()}
}

func taskViews(tasks []model.Task) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskView(t))
	}
	return out
}

// statusFor maps planner errors to HTTP statuses.
func statusFor(err error) int {
	var (
		verr *model.ValidationError
		rerr *calsync.RemoteSyncError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &rerr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// respond writes body with status. A persistence failure does not undo
// the change, so it is reported as a warning on the successful response.
func respond(c *gin.Context, status int, body gin.H, err error) {
	if err != nil {
		if !store.IsPersistence(err) {
			abortWithError(c, err)
			return
		}
		body["warning"] = err.Error()
	}
	c.JSON(status, body)
}

func withRemote(body gin.H, remote error) gin.H {
	if remote != nil {
		body["remoteError"] = remote.Error()
	}
	return body
}

func parseDomain(c *gin.Context) (model.Domain, bool) {
	d, err := model.ParseDomain(c.Param("domain"))
	if err != nil {
		abortWithError(c, err)
		return 0, false
	}
	return d, true
}

func parseKind(c *gin.Context) (model.ContainerKind, bool) {
	k, err := model.ParseContainerKind(c.Param("kind"))
	if err != nil {
		abortWithError(c, err)
		return 0, false
	}
	return k, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, &model.ValidationError{Field: "id", Reason: "must be an integer"})
		return 0, false
	}
	return id, true
}

func parseMode(c *gin.Context) (filter.Mode, bool) {
	mode, err := filter.ParseMode(c.Query("filter"))
	if err != nil {
		abortWithError(c, err)
		return "", false
	}
	return mode, true
}

func notFound(c *gin.Context, what string, id int64) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " " + strconv.FormatInt(id, 10) + " not found"})
}

// Views

func (s *Server) handleListTasks(c *gin.Context) {
	mode, ok := parseMode(c)
	if !ok {
		return
	}
	category := c.DefaultQuery("category", filter.AllCategories)
	tasks := s.planner.View(mode, category)
	c.JSON(http.StatusOK, gin.H{
		"tasks": taskViews(tasks),
		"count": len(tasks),
	})
}

func (s *Server) handleGroupedTasks(c *gin.Context) {
	mode, ok := parseMode(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": s.planner.Grouped(mode)})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.planner.Stats())
}

// Tasks

func (s *Server) handleCreateTask(c *gin.Context) {
	d, ok := parseDomain(c)
	if !ok {
		return
	}
	var req store.NewTask
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	out, err := s.planner.CreateTask(c.Request.Context(), d, req)
	respond(c, http.StatusCreated, withRemote(gin.H{"task": taskView(out.Task)}, out.Remote), err)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	d, ok := parseDomain(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var patch store.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	// the event id is owned by the sync bridge
	patch.GcalEventID = nil

	out, err := s.planner.UpdateTask(c.Request.Context(), d, id, patch)
	respond(c, http.StatusOK, withRemote(gin.H{"task": taskView(out.Task)}, out.Remote), err)
}

func (s *Server) handleToggleTask(c *gin.Context) {
	d, ok := parseDomain(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, found, err := s.planner.ToggleCompleted(d, id)
	if !found {
		notFound(c, "task", id)
		return
	}
	respond(c, http.StatusOK, gin.H{"task": taskView(t)}, err)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	d, ok := parseDomain(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	out, found, err := s.planner.DeleteTask(c.Request.Context(), d, id)
	if !found {
		notFound(c, "task", id)
		return
	}
	respond(c, http.StatusOK, withRemote(gin.H{"deleted": taskView(out.Task)}, out.Remote), err)
}

// Containers

func (s *Server) handleListContainers(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"containers": s.planner.Containers(kind)})
}

type containerRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddContainer(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	var req containerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ctr, err := s.planner.AddContainer(kind, req.Name)
	respond(c, http.StatusCreated, gin.H{"container": ctr}, err)
}

func (s *Server) hasContainer(kind model.ContainerKind, id int64) bool {
	for _, ctr := range s.planner.Containers(kind) {
		if ctr.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) handleDeleteContainer(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if !s.hasContainer(kind, id) {
		notFound(c, kind.String(), id)
		return
	}
	out, err := s.planner.DeleteContainer(c.Request.Context(), kind, id)
	respond(c, http.StatusOK, withRemote(gin.H{"removedTasks": taskViews(out.Removed)}, out.Remote), err)
}

func (s *Server) handleToggleContainer(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctr, found, err := s.planner.ToggleExpanded(kind, id)
	if !found {
		notFound(c, kind.String(), id)
		return
	}
	respond(c, http.StatusOK, gin.H{"container": ctr}, err)
}

// Job applications

func (s *Server) handleJobApps(c *gin.Context) {
	st, err := s.planner.JobApps()
	respond(c, http.StatusOK, gin.H{"jobApps": st}, err)
}

func (s *Server) handleIncrementJobApps(c *gin.Context) {
	st, err := s.planner.IncrementJobApps()
	respond(c, http.StatusOK, gin.H{"jobApps": st}, err)
}

func (s *Server) handleResetJobApps(c *gin.Context) {
	st, err := s.planner.ResetJobApps()
	respond(c, http.StatusOK, gin.H{"jobApps": st}, err)
}

// Calendar

func (s *Server) handleCalendarStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"signedIn": s.planner.SignedIn()})
}

// handleCalendarSync fails only when the pass created nothing; per-task
// failures of a pass that made progress are reported as remoteError.
func (s *Server) handleCalendarSync(c *gin.Context) {
	n, err := s.planner.Sync(c.Request.Context())
	if err != nil && n == 0 {
		c.JSON(statusFor(err), gin.H{"created": n, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, withRemote(gin.H{"created": n}, err))
}

func (s *Server) handleCalendarEvents(c *gin.Context) {
	from, err := queryDate(c, "from")
	if err != nil {
		abortWithError(c, err)
		return
	}
	to, err := queryDate(c, "to")
	if err != nil {
		abortWithError(c, err)
		return
	}
	if from.IsZero() {
		from = time.Now()
	}
	if to.IsZero() {
		to = from.Add(defaultEventWindow)
	}

	events, err := s.planner.ImportEvents(c.Request.Context(), from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseDate(v, nil)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: key, Reason: "must be YYYY-MM-DD"}
	}
	return t, nil
}
