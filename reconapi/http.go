package reconapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/appctx"
	"bitbucket.org/mmdatafocus/reconsvc/reconengine"
	"bitbucket.org/mmdatafocus/reconsvc/reconerrors"
	"bitbucket.org/mmdatafocus/reconsvc/reconmatch"
	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// Deps bundles what the gin handlers need beyond the request itself:
// the store's DB handle for reads, the engine for the two mutations'
// reclassification step, and the matcher configuration the read
// endpoints (suggestions) also need.
type Deps struct {
	DB      *gorm.DB
	Engine  *reconengine.Engine
	Tol     reconmatch.Tolerances
	Aliases reconmatch.AliasTable
}

// NewRouter builds the read-only JSON API plus the two manual mutation
// POSTs (§6, §4.6). Every route here is a thin adapter over the pure
// functions in queries.go/suggestions.go/mutations.go — no domain logic
// lives in this file, mirroring the separation this codebase's own gin
// wiring keeps from its GraphQL resolvers.
func NewRouter(deps Deps, extraMiddleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(correlationIDMiddleware())
	r.Use(gin.Recovery())
	for _, mw := range extraMiddleware {
		r.Use(mw)
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.GET("/queue", deps.handleQueue)
	r.GET("/records/:nvc", deps.handleRecord)
	r.GET("/summary", deps.handleSummary)
	r.GET("/suggestions/:nvc", deps.handleSuggestions)
	r.GET("/search", deps.handleCrossSearch)
	r.GET("/sync/status", deps.handleSyncStatus)
	r.GET("/sync/history", deps.handleSyncHistory)
	r.GET("/overview", deps.handleOverview)
	r.GET("/duplicates", deps.handleDuplicates)

	r.POST("/associate", deps.handleAssociate)
	r.POST("/flag", deps.handleFlag)

	r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"detail": "route not found"}) })
	return r
}

func correlationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, cid)
		c.Request = c.Request.WithContext(ctx)
		c.Header("x-correlation-id", cid)
		c.Next()
	}
}

func (d Deps) handleQueue(c *gin.Context) {
	filter := QueueFilter{
		MatchStatus: c.Query("match_status"),
		Tenant:      c.Query("tenant"),
		Search:      c.Query("q"),
	}
	if v := c.Query("invoice_status"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.InvoiceStatus = &n
		}
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	page, err := Queue(c.Request.Context(), d.DB, filter, c.Query("sort"), limit, offset)
	respond(c, page, err)
}

func (d Deps) handleRecord(c *gin.Context) {
	rec, err := Record(c.Request.Context(), d.DB, c.Param("nvc"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "nvc not found"})
		return
	}
	respond(c, rec, err)
}

func (d Deps) handleSummary(c *gin.Context) {
	s, err := Summary(c.Request.Context(), d.DB)
	respond(c, s, err)
}

func (d Deps) handleSuggestions(c *gin.Context) {
	s, err := Suggestions(c.Request.Context(), d.DB, c.Param("nvc"), d.Tol, d.Aliases)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "nvc not found"})
		return
	}
	respond(c, s, err)
}

func (d Deps) handleCrossSearch(c *gin.Context) {
	p := CrossSearchParams{
		Source: c.Query("source"),
		Query:  c.Query("q"),
		Tenant: c.Query("tenant"),
	}
	if v := c.Query("amount_min"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.AmountMin = &f
		}
	}
	if v := c.Query("amount_max"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.AmountMax = &f
		}
	}
	res, err := CrossSearch(c.Request.Context(), d.DB, p)
	if errors.Is(err, gorm.ErrInvalidField) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unknown source"})
		return
	}
	respond(c, res, err)
}

func (d Deps) handleSyncStatus(c *gin.Context) {
	s, err := SyncStatus(c.Request.Context(), d.DB)
	respond(c, s, err)
}

func (d Deps) handleSyncHistory(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	offset := intQuery(c, "offset", 0)
	s, err := SyncHistory(c.Request.Context(), d.DB, limit, offset)
	respond(c, s, err)
}

func (d Deps) handleOverview(c *gin.Context) {
	window := 24 * time.Hour
	if v := c.Query("window_hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = time.Duration(n) * time.Hour
		}
	}
	res, err := Overview(c.Request.Context(), d.DB, window)
	respond(c, res, err)
}

func (d Deps) handleDuplicates(c *gin.Context) {
	window := 24 * time.Hour
	if v := c.Query("window_hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = time.Duration(n) * time.Hour
		}
	}
	threshold := defaultDuplicateThreshold
	if v := c.Query("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			threshold = f
		}
	}
	now := time.Now().UTC()
	pairs, err := FindPotentialDuplicateEmails(c.Request.Context(), d.DB, now.Add(-window), now, threshold)
	respond(c, pairs, err)
}

type associateRequest struct {
	NVC      string `json:"nvc" binding:"required"`
	TargetID string `json:"target_id" binding:"required"`
	Source   string `json:"source" binding:"required"`
}

func (d Deps) handleAssociate(c *gin.Context) {
	var req associateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	rec, err := Associate(c.Request.Context(), d.DB, d.Engine, req.NVC, req.TargetID, AssociateSource(req.Source))
	respondMutation(c, rec, err)
}

type flagRequest struct {
	NVC   string `json:"nvc" binding:"required"`
	Flag  string `json:"flag"`
	Notes string `json:"notes"`
	By    string `json:"by"`
}

func (d Deps) handleFlag(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	rec, err := Flag(c.Request.Context(), d.DB, req.NVC, reconmodel.Flag(req.Flag), req.Notes, req.By)
	respondMutation(c, rec, err)
}

func respond(c *gin.Context, body interface{}, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, body)
}

// respondMutation maps InvalidInputError to a 4xx per §7; any other
// error is a 500, same as the read endpoints.
func respondMutation(c *gin.Context, body interface{}, err error) {
	var invalid *reconerrors.InvalidInputError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": invalid.Detail})
		return
	}
	respond(c, body, err)
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
