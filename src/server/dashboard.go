package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"battery-observer/src/analysis"
	"battery-observer/src/chart"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/metrics"
	"battery-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

// -----------------------------------------------------------------------------
// DashboardServer
// -----------------------------------------------------------------------------

type DashboardServer struct {
	Config  *models.MConfig
	View    interfaces.IReadingView
	State   func() models.ConnectionState
	Metrics *metrics.Metrics
	Logger  *logger.Logger
	Now     func() time.Time

	engine     *gin.Engine
	httpServer *http.Server
}

type statusLine struct {
	EntityID   string
	IconClass  string
	Color      string
	Text       string
	LastUpdate string
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDashboardServer(cfg *models.MConfig, view interfaces.IReadingView, state func() models.ConnectionState, m *metrics.Metrics, log *logger.Logger) *DashboardServer {
	if cfg.LogLevel != "DEBUG" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if m == nil {
		m = metrics.NewDiscard()
	}

	s := &DashboardServer{
		Config:  cfg,
		View:    view,
		State:   state,
		Metrics: m,
		Logger:  log,
		Now:     time.Now,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	tmpl := template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
	s.engine.SetHTMLTemplate(tmpl)

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

// requestLogger routes gin's access log through the component logger
func (s *DashboardServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DashboardServer) setupRoutes() {
	s.engine.GET("/", s.getIndex)
	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/status", s.getStatus)
	s.engine.GET("/graph", s.getGraph)
	s.engine.GET("/graph.png", s.getGraphPNG)

	api := s.engine.Group("/api")
	api.GET("/status", s.getStatusJSON)
	api.GET("/series/:entity", s.getSeries)

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))
}

// -----------------------------------------------------------------------------

// Handler exposes the router for tests and embedding
func (s *DashboardServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *DashboardServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting dashboard on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *DashboardServer) getIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Title": "Battery Observer"})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) rows() []models.MStatusRow {
	window := time.Duration(s.Config.Monitor.UnresponsiveMinutes) * time.Minute
	return BuildStatusRows(s.View, s.Now(), window, s.Config.Monitor.BatteryThreshold)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) connection() string {
	if s.State == nil {
		return models.StateDisconnected.String()
	}
	return s.State().String()
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getStatus(c *gin.Context) {
	rows := s.rows()
	lines := make([]statusLine, len(rows))
	for i, row := range rows {
		lines[i] = statusLine{
			EntityID:   row.EntityID,
			IconClass:  strings.Replace(row.Icon, "mdi:", "mdi-", 1),
			Color:      row.Color,
			Text:       statusText(row),
			LastUpdate: lastUpdateText(row),
		}
	}

	c.HTML(http.StatusOK, "status.html", gin.H{
		"Rows":                lines,
		"Threshold":           s.Config.Monitor.BatteryThreshold,
		"UnresponsiveMinutes": s.Config.Monitor.UnresponsiveMinutes,
		"Connection":          s.connection(),
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getStatusJSON(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ingest":               s.connection(),
		"threshold":            s.Config.Monitor.BatteryThreshold,
		"unresponsive_minutes": s.Config.Monitor.UnresponsiveMinutes,
		"generated_at":         s.Now().UTC(),
		"entities":             s.rows(),
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getGraph(c *gin.Context) {
	hasData := false
	for _, id := range s.View.AllTrackedIDs() {
		if _, ok := s.View.Latest(id); ok {
			hasData = true
			break
		}
	}
	c.HTML(http.StatusOK, "graph.html", gin.H{"HasData": hasData})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getGraphPNG(c *gin.Context) {
	var buf bytes.Buffer
	err := chart.RenderPNG(&buf, s.View.AllTrackedIDs(), s.View.SeriesFor, chart.DefaultOptions(s.Config.Monitor.BatteryThreshold))
	if errors.Is(err, chart.ErrNoData) {
		c.String(http.StatusNotFound, "No data to display.")
		return
	}
	if err != nil {
		s.Logger.Error("Chart rendering failed: %v", err)
		c.String(http.StatusInternalServerError, "chart rendering failed")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getSeries(c *gin.Context) {
	id := c.Param("entity")
	tracked := false
	for _, t := range s.View.AllTrackedIDs() {
		if t == id {
			tracked = true
			break
		}
	}
	if !tracked {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("entity %s is not tracked", id)})
		return
	}

	readings := s.View.SeriesFor(id)
	if readings == nil {
		readings = []models.MReading{}
	}
	c.JSON(http.StatusOK, models.MSeriesResponse{
		EntityID: id,
		Stats:    analysis.SeriesStats(readings),
		Readings: readings,
	})
}
