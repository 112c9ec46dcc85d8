// Package api provides the REST API server for notecompare
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/james-see/notecompare/internal/logger"
	"github.com/james-see/notecompare/pkg/compare"
	"github.com/james-see/notecompare/pkg/midi"
	"github.com/james-see/notecompare/pkg/notes"
	"github.com/james-see/notecompare/pkg/report"
	"github.com/james-see/notecompare/pkg/song"
	"github.com/james-see/notecompare/pkg/track"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title notecompare API
// @version 1.0
// @description API for detecting notes in pitch tracks and scoring performances against an original
// @host localhost:8080
// @BasePath /api/v1

// maxUpload bounds multipart request bodies.
const maxUpload = 32 << 20

// Defaults holds the analysis settings used when a request does not override them.
type Defaults struct {
	A4                  float64
	MinDuration         float64
	ConfidenceThreshold float64
	TimeTolerance       float64
}

// DefaultSettings returns the library defaults.
func DefaultSettings() Defaults {
	return Defaults{
		A4:                  notes.DefaultA4,
		MinDuration:         notes.DefaultMinDuration,
		ConfidenceThreshold: track.DefaultConfidenceThreshold,
		TimeTolerance:       compare.DefaultTimeTolerance,
	}
}

// Server serves the API and keeps comparison results in memory.
type Server struct {
	defaults Defaults
	log      *zap.Logger

	mu      sync.RWMutex
	results map[string]*compare.Result
}

// NewServer creates a Server.
func NewServer(defaults Defaults, log *zap.Logger) *Server {
	return &Server{
		defaults: defaults,
		log:      logger.OrNop(log),
		results:  make(map[string]*compare.Result),
	}
}

// StartServer starts the API server on the specified port
func StartServer(port int, s *Server) error {
	s.log.Info("starting API server", zap.Int("port", port))
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/grades", listGrades)
		v1.GET("/scales/:root", listScale)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/pianoroll", s.handlePianoRoll)
		v1.POST("/midi", s.handleMIDI)
		v1.POST("/compare", s.handleCompare)
		v1.GET("/comparisons/:id", s.getComparison)
		v1.GET("/comparisons/:id/report", s.getReport)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "notecompare",
	})
}

// listGrades godoc
// @Summary List grade thresholds
// @Description Returns the letter grades and the minimum score for each
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]interface{}
// @Router /api/v1/grades [get]
func listGrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"grades": compare.GradeThresholds(),
	})
}

// listScale godoc
// @Summary List the notes of a scale
// @Description Returns the pitch classes of a major, minor or chromatic scale. Sharps are URL-encoded (F%23).
// @Tags info
// @Produce json
// @Param root path string true "Root pitch class, e.g. C or F#"
// @Param type query string false "major, minor or chromatic (default: major)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/scales/{root} [get]
func listScale(c *gin.Context) {
	root := c.Param("root")
	kind := c.DefaultQuery("type", "major")
	names, err := notes.ScaleNotes(root, kind)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"root":  root,
		"type":  kind,
		"notes": names,
	})
}

// handleAnalyze godoc
// @Summary Analyze a pitch track
// @Description Upload a pitch track (JSON or CSV) or MIDI file and receive the detected notes, segments and statistics
// @Tags analyze
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Pitch track or MIDI file"
// @Param a4 query number false "Reference pitch in Hz (default: 440)"
// @Param min_duration query number false "Minimum segment duration in seconds (default: 0.1)"
// @Param confidence query number false "Confidence threshold (default: 0.5)"
// @Success 200 {object} song.Document
// @Failure 400 {object} map[string]string
// @Router /api/v1/analyze [post]
func (s *Server) handleAnalyze(c *gin.Context) {
	settings, err := s.settings(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	name, data, err := upload(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}

	doc, err := s.analyzer(settings).Read(name, data)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// handlePianoRoll godoc
// @Summary Build a piano roll
// @Description Upload a pitch track and receive a binary MIDI-row by time-column matrix
// @Tags analyze
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Pitch track (JSON or CSV)"
// @Param resolution query number false "Column width in seconds (default: 0.1)"
// @Param a4 query number false "Reference pitch in Hz (default: 440)"
// @Param confidence query number false "Confidence threshold (default: 0.5)"
// @Success 200 {object} notes.PianoRoll
// @Failure 400 {object} map[string]string
// @Router /api/v1/pianoroll [post]
func (s *Server) handlePianoRoll(c *gin.Context) {
	settings, err := s.settings(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	resolution, err := floatQuery(c, "resolution", notes.DefaultPianoRollStep)
	if err != nil {
		badRequest(c, err)
		return
	}
	tr, err := s.uploadTrack(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	gated := tr.Gate(settings.ConfidenceThreshold)
	roll, err := s.builder(settings).PianoRoll(gated.Times, gated.Frequencies, resolution)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, roll)
}

// handleMIDI godoc
// @Summary Export detected notes as MIDI
// @Description Upload a pitch track or analysis and receive a MIDI file with one note per segment
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "Pitch track or song analysis"
// @Param tempo query number false "Tempo in BPM (default: 120)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/midi [post]
func (s *Server) handleMIDI(c *gin.Context) {
	settings, err := s.settings(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	tempo, err := floatQuery(c, "tempo", midi.DefaultTempo)
	if err != nil {
		badRequest(c, err)
		return
	}
	name, data, err := upload(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}

	doc, err := s.analyzer(settings).Read(name, data)
	if err != nil {
		badRequest(c, err)
		return
	}
	result, err := midi.NewConverter(midi.WithTempo(tempo), midi.WithLogger(s.log)).FromSegments(doc.Segments)
	if err != nil {
		badRequest(c, err)
		return
	}

	outputName := strings.TrimSuffix(name, filepath.Ext(name)) + ".mid"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, "audio/midi", result)
}

// handleCompare godoc
// @Summary Compare two songs
// @Description Upload an original and a performance (analysis, pitch track or MIDI) and receive the scored comparison
// @Tags compare
// @Accept multipart/form-data
// @Produce json
// @Param original formData file true "Original song"
// @Param comparison formData file true "Performance to score"
// @Param tolerance query number false "Matching window in seconds (default: 0.5)"
// @Success 201 {object} compare.Result
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/compare [post]
func (s *Server) handleCompare(c *gin.Context) {
	settings, err := s.settings(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	comparator, err := compare.New(
		compare.WithTolerance(settings.TimeTolerance),
		compare.WithRequireBothSides(true),
		compare.WithLogger(s.log),
	)
	if err != nil {
		badRequest(c, err)
		return
	}

	analyzer := s.analyzer(settings)
	songs := make([]compare.Song, 0, 2)
	for _, field := range []string{"original", "comparison"} {
		name, data, err := upload(c, field)
		if err != nil {
			badRequest(c, err)
			return
		}
		doc, err := analyzer.Read(name, data)
		if err != nil {
			badRequest(c, fmt.Errorf("%s: %w", field, err))
			return
		}
		songs = append(songs, doc.Song(name))
	}

	res, err := comparator.Compare(songs[0], songs[1])
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, compare.ErrNoNotes) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	res.ID = uuid.NewString()
	s.mu.Lock()
	s.results[res.ID] = res
	s.mu.Unlock()

	s.log.Info("stored comparison",
		zap.String("id", res.ID),
		zap.Float64("score", res.OverallScore.Overall),
		zap.String("grade", res.OverallScore.Grade))
	c.JSON(http.StatusCreated, res)
}

// getComparison godoc
// @Summary Get a stored comparison
// @Tags compare
// @Produce json
// @Param id path string true "Comparison ID"
// @Success 200 {object} compare.Result
// @Failure 404 {object} map[string]string
// @Router /api/v1/comparisons/{id} [get]
func (s *Server) getComparison(c *gin.Context) {
	res, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

// getReport godoc
// @Summary Get a comparison report
// @Description Returns the plain-text report of a stored comparison
// @Tags compare
// @Produce plain
// @Param id path string true "Comparison ID"
// @Success 200 {string} string
// @Failure 404 {object} map[string]string
// @Router /api/v1/comparisons/{id}/report [get]
func (s *Server) getReport(c *gin.Context) {
	res, ok := s.lookup(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, report.Format(res))
}

func (s *Server) lookup(c *gin.Context) (*compare.Result, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comparison id"})
		return nil, false
	}
	s.mu.RLock()
	res, ok := s.results[id]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "comparison not found"})
		return nil, false
	}
	return res, true
}

// settings applies query overrides to the server defaults.
func (s *Server) settings(c *gin.Context) (Defaults, error) {
	d := s.defaults
	var err error
	if d.A4, err = floatQuery(c, "a4", d.A4); err != nil {
		return d, err
	}
	if d.MinDuration, err = floatQuery(c, "min_duration", d.MinDuration); err != nil {
		return d, err
	}
	if d.ConfidenceThreshold, err = floatQuery(c, "confidence", d.ConfidenceThreshold); err != nil {
		return d, err
	}
	if d.TimeTolerance, err = floatQuery(c, "tolerance", d.TimeTolerance); err != nil {
		return d, err
	}
	return d, nil
}

func (s *Server) builder(d Defaults) *notes.Builder {
	return notes.NewBuilder(
		notes.WithA4(d.A4),
		notes.WithMinDuration(d.MinDuration),
		notes.WithLogger(s.log),
	)
}

func (s *Server) analyzer(d Defaults) *song.Analyzer {
	return song.NewAnalyzer(
		song.WithBuilder(s.builder(d)),
		song.WithMIDIConverter(midi.NewConverter(midi.WithA4(d.A4), midi.WithLogger(s.log))),
		song.WithConfidenceThreshold(d.ConfidenceThreshold),
		song.WithLogger(s.log),
	)
}

func (s *Server) uploadTrack(c *gin.Context) (*track.Track, error) {
	name, data, err := upload(c, "file")
	if err != nil {
		return nil, err
	}
	format := track.DetectFormat(name)
	if format == track.FormatUnknown {
		format = track.DetectFormatFromContent(data)
	}
	return track.Parse(data, format)
}

func upload(c *gin.Context, field string) (string, []byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("no %s file uploaded", field)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s file", field)
	}
	return header.Filename, data, nil
}

func floatQuery(c *gin.Context, name string, def float64) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
