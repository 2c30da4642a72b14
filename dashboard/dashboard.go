// Package dashboard serves the ratings web page and its JSON API.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"aisentinel/artificialanalysis"
	"aisentinel/events"
	"aisentinel/mention"
	"aisentinel/ratings"
	"aisentinel/sentiment"
	"aisentinel/storage"
	"aisentinel/taxonomy"
)

//go:embed templates/*.html
var templateFS embed.FS

// Store is the read side of the mention store.
type Store interface {
	ListMentions(f storage.Filter) ([]mention.Mention, error)
	ExportCSV(w io.Writer, f storage.Filter) (int, error)
	RecentRuns(limit int) ([]storage.Run, error)
}

// Analyzer scores texts on demand.
type Analyzer interface {
	Analyze(text string) sentiment.Result
	AnalyzeBatch(texts []string) []sentiment.Result
}

// TechnicalSource looks up benchmark data for a tool.
type TechnicalSource interface {
	ForTool(ctx context.Context, tool taxonomy.Tool, max int) (*artificialanalysis.ToolMetrics, error)
}

// LiveFeed reports mentions scored since the server started.
type LiveFeed interface {
	Snapshot() events.LiveStats
}

// TopChoices are the selectable list sizes.
var TopChoices = []int{5, 10, 20, 50}

const (
	maxMentions    = 500
	maxAnalyzeSize = 100
	highlightCount = 3
)

// Config holds dashboard settings.
type Config struct {
	DefaultTop int
	WindowDays int // 0 rates every stored mention
}

// Server handles dashboard requests.
type Server struct {
	store     Store
	analyzer  Analyzer
	technical TechnicalSource
	live      LiveFeed
	config    Config
	tmpl      *template.Template
	now       func() time.Time
}

// New creates a Server. analyzer and technical may be nil.
func New(store Store, analyzer Analyzer, technical TechnicalSource, cfg Config) (*Server, error) {
	if cfg.DefaultTop < 1 {
		cfg.DefaultTop = 10
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"ago":     func(t time.Time) string { return humanize.Time(t) },
		"comma":   func(n int) string { return humanize.Comma(int64(n)) },
		"logo":    func(tool string) string { return taxonomy.LogoURL(tool, 64) },
		"link":    taxonomy.Link,
		"percent": func(n int) int { return n * 10 },
		"add1":    func(i int) int { return i + 1 },
		"listing": func(view string, rs []ratings.Rating) listing { return listing{View: view, Ratings: rs} },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Server{
		store:     store,
		analyzer:  analyzer,
		technical: technical,
		config:    cfg,
		tmpl:      tmpl,
		now:       time.Now,
	}, nil
}

// SetLive attaches the feed served on /api/live.
func (s *Server) SetLive(feed LiveFeed) { s.live = feed }

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ratings", s.handleRatings).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	api.HandleFunc("/tools/{tool}", s.handleTool).Methods(http.MethodGet)
	api.HandleFunc("/mentions", s.handleMentions).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/export.csv", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	api.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)

	r.Use(logRequests)
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("dashboard listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("dashboard server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// snapshot is the rated view of the store at request time.
type snapshot struct {
	mentions    []mention.Mention
	ratings     []ratings.Rating
	placeholder bool
}

func (s *Server) load() (snapshot, error) {
	var f storage.Filter
	if s.config.WindowDays > 0 {
		f.Since = s.now().AddDate(0, 0, -s.config.WindowDays)
	}
	ms, err := s.store.ListMentions(f)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{mentions: ms}
	if len(ms) == 0 {
		snap.mentions = ratings.Placeholder(s.now())
		snap.placeholder = true
	}
	snap.ratings = ratings.Build(snap.mentions)
	return snap, nil
}

// query holds the shared filter parameters.
type query struct {
	Q          string
	Categories []taxonomy.Category
	Top        int
}

func (s *Server) parseQuery(r *http.Request) query {
	v := r.URL.Query()
	q := query{Q: strings.TrimSpace(v.Get("q")), Top: s.config.DefaultTop}
	for _, raw := range v["category"] {
		for _, part := range strings.Split(raw, ",") {
			if c, ok := taxonomy.ParseCategory(part); ok && !slices.Contains(q.Categories, c) {
				q.Categories = append(q.Categories, c)
			}
		}
	}
	if n, err := strconv.Atoi(v.Get("top")); err == nil && n > 0 {
		q.Top = snapTop(n)
	}
	return q
}

// snapTop rounds n up to the nearest of TopChoices, capped at the largest.
func snapTop(n int) int {
	for _, c := range TopChoices {
		if n <= c {
			return c
		}
	}
	return TopChoices[len(TopChoices)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ratingsResponse struct {
	Placeholder bool             `json:"placeholder"`
	Total       int              `json:"total"`
	Ratings     []ratings.Rating `json:"ratings"`
}

func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load()
	if err != nil {
		slog.Error("failed to load ratings", "error", err)
		writeError(w, http.StatusInternalServerError, "ratings unavailable")
		return
	}
	q := s.parseQuery(r)
	filtered := ratings.Filter(snap.ratings, q.Q, q.Categories)
	writeJSON(w, http.StatusOK, ratingsResponse{
		Placeholder: snap.placeholder,
		Total:       len(filtered),
		Ratings:     lo.Ternary(len(filtered) == 0, []ratings.Rating{}, ratings.Top(filtered, q.Top)),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load()
	if err != nil {
		slog.Error("failed to load ratings", "error", err)
		writeError(w, http.StatusInternalServerError, "ratings unavailable")
		return
	}
	q := s.parseQuery(r)
	groups := ratings.GroupByType(ratings.Filter(snap.ratings, q.Q, q.Categories), q.Top)
	if groups == nil {
		groups = []ratings.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"placeholder": snap.placeholder, "categories": groups})
}

type toolResponse struct {
	Rating      ratings.Rating                  `json:"rating"`
	Placeholder bool                            `json:"placeholder"`
	Positive    []string                        `json:"highlights"`
	Negative    []string                        `json:"concerns"`
	Link        string                          `json:"link,omitempty"`
	Logo        string                          `json:"logo,omitempty"`
	Technical   *artificialanalysis.ToolMetrics `json:"technical,omitempty"`
}

// toolDetails builds the details of one tool, or false when it has no rating.
func (s *Server) toolDetails(ctx context.Context, snap snapshot, name string) (toolResponse, bool) {
	rating, ok := lo.Find(snap.ratings, func(r ratings.Rating) bool { return strings.EqualFold(r.Tool, name) })
	if !ok {
		return toolResponse{}, false
	}
	pos, neg := ratings.Highlights(snap.mentions, rating.Tool, highlightCount)
	resp := toolResponse{
		Rating:      rating,
		Placeholder: snap.placeholder,
		Positive:    lo.Ternary(pos == nil, []string{}, pos),
		Negative:    lo.Ternary(neg == nil, []string{}, neg),
		Link:        taxonomy.Link(rating.Tool),
		Logo:        taxonomy.LogoURL(rating.Tool, 64),
	}
	if tool, known := taxonomy.Lookup(rating.Tool); known && s.technical != nil {
		tm, err := s.technical.ForTool(ctx, tool, 5)
		if err != nil {
			slog.Warn("technical metrics unavailable", "tool", rating.Tool, "error", err)
		} else if !tm.Empty() {
			resp.Technical = tm
		}
	}
	return resp, true
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["tool"]
	snap, err := s.load()
	if err != nil {
		slog.Error("failed to load ratings", "error", err)
		writeError(w, http.StatusInternalServerError, "ratings unavailable")
		return
	}
	resp, ok := s.toolDetails(r.Context(), snap, name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no rating for %q", name))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMentions(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	f := storage.Filter{Tool: v.Get("tool"), Label: v.Get("label"), Source: taxonomy.Source(v.Get("source")), Limit: 50}
	if f.Label != "" && f.Label != mention.Positive && f.Label != mention.Neutral && f.Label != mention.Negative {
		writeError(w, http.StatusBadRequest, "label must be positive, neutral or negative")
		return
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxMentions)
	}
	ms, err := s.store.ListMentions(f)
	if err != nil {
		slog.Error("failed to list mentions", "error", err)
		writeError(w, http.StatusInternalServerError, "mentions unavailable")
		return
	}
	if ms == nil {
		ms = []mention.Mention{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mentions": ms})
}

type analyzeRequest struct {
	Text  string   `json:"text"`
	Texts []string `json:"texts"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "no analyzer configured")
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	switch {
	case len(req.Texts) > 0:
		if len(req.Texts) > maxAnalyzeSize {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d texts per request", maxAnalyzeSize))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": s.analyzer.AnalyzeBatch(req.Texts)})
	case strings.TrimSpace(req.Text) != "":
		writeJSON(w, http.StatusOK, s.analyzer.Analyze(req.Text))
	default:
		writeError(w, http.StatusBadRequest, `provide "text" or "texts"`)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	f := storage.Filter{Tool: v.Get("tool")}
	if c, ok := taxonomy.ParseCategory(v.Get("category")); ok {
		f.Category = c
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sentiment.csv"`)
	if _, err := s.store.ExportCSV(w, f); err != nil {
		slog.Error("failed to export csv", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = min(n, 200)
	}
	runs, err := s.store.RecentRuns(limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "runs unavailable")
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		writeError(w, http.StatusServiceUnavailable, "no event bus configured")
		return
	}
	writeJSON(w, http.StatusOK, s.live.Snapshot())
}

type categoryOption struct {
	Value    taxonomy.Category
	Label    string
	Icon     string
	Selected bool
}

// listing is one ratings block rendered as a table or as cards.
type listing struct {
	View    string
	Ratings []ratings.Rating
}

type pageData struct {
	Query       string
	Categories  []categoryOption
	TopChoices  []int
	Top         int
	View        string
	Placeholder bool
	Fallback    bool
	Mentions    int
	Total       int
	Ratings     []ratings.Rating
	Groups      []ratings.Group
	Tools       []string
	Selected    *toolResponse
	Generated   time.Time
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load()
	if err != nil {
		slog.Error("failed to load ratings", "error", err)
		http.Error(w, "ratings unavailable", http.StatusInternalServerError)
		return
	}
	q := s.parseQuery(r)
	shown := ratings.Filter(snap.ratings, q.Q, q.Categories)
	fallback := len(shown) == 0 && len(snap.ratings) > 0
	if fallback {
		shown = snap.ratings
	}

	data := pageData{
		Query:       q.Q,
		TopChoices:  TopChoices,
		Top:         q.Top,
		View:        lo.Ternary(r.URL.Query().Get("view") == "cards", "cards", "table"),
		Placeholder: snap.placeholder,
		Fallback:    fallback,
		Mentions:    len(snap.mentions),
		Total:       len(shown),
		Ratings:     ratings.Top(shown, q.Top),
		Groups:      ratings.GroupByType(shown, q.Top),
		Tools:       lo.Map(shown, func(r ratings.Rating, _ int) string { return r.Tool }),
		Generated:   s.now(),
	}
	slices.Sort(data.Tools)
	for _, c := range taxonomy.Categories {
		data.Categories = append(data.Categories, categoryOption{
			Value:    c,
			Label:    taxonomy.FriendlyLabel(c),
			Icon:     taxonomy.Icon(c),
			Selected: slices.Contains(q.Categories, c),
		})
	}

	selected := r.URL.Query().Get("tool")
	if _, ok := lo.Find(data.Tools, func(t string) bool { return strings.EqualFold(t, selected) }); !ok && len(data.Tools) > 0 {
		selected = data.Tools[0]
	}
	if details, ok := s.toolDetails(r.Context(), snap, selected); ok {
		data.Selected = &details
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("failed to render dashboard", "error", err)
	}
}
