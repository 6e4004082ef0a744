package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/keepsake/internal/app/archive"
	"github.com/PabloGalante/keepsake/internal/app/keepsake"
	"github.com/PabloGalante/keepsake/internal/audio"
	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/observability"
	"github.com/PabloGalante/keepsake/internal/render"
)

type Server struct {
	keepsakes *keepsake.Service
	archive   *archive.Service
	upgrader  websocket.Upgrader
}

func NewServer(ks *keepsake.Service, arch *archive.Service) http.Handler {
	s := &Server{
		keepsakes: ks,
		archive:   arch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// same policy as withCORS
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, withLogging, middleware.Recoverer, withCORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/sessions", s.handleCreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/start", s.handleStart)
		r.Post("/memory", s.handleSubmitMemory)
		r.Post("/reset", s.handleReset)
		r.Post("/voice/play", s.handlePlayVoice)
		r.Post("/voice/stop", s.handleStopVoice)
		r.Get("/voice.wav", s.handleVoiceWAV)
		r.Get("/image", s.handleImage)
		r.Get("/events", s.handleEvents)
	})

	r.Get("/keepsakes", s.handleListKeepsakes)
	r.Get("/keepsakes/{id}", s.handleGetKeepsake)

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type memoryRequest struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Detail       string `json:"detail"`
	Mood         string `json:"mood"`
}

type resultResponse struct {
	Letter      string            `json:"letter"`
	LetterHTML  string            `json:"letter_html"`
	ImagePrompt string            `json:"image_prompt,omitempty"`
	ImageURL    string            `json:"image_url"`
	AudioData   string            `json:"audio_data,omitempty"`
	HasAudio    bool              `json:"has_audio"`
	Citations   []domain.Citation `json:"citations"`
}

type sessionResponse struct {
	ID         string              `json:"id"`
	Screen     domain.Screen       `json:"screen"`
	Generation uint64              `json:"generation"`
	Input      *domain.MemoryInput `json:"input,omitempty"`
	Result     *resultResponse     `json:"result,omitempty"`
	Error      *domain.UserError   `json:"error,omitempty"`
	KeepsakeID string              `json:"keepsake_id,omitempty"`
	Playing    bool                `json:"playing"`
}

type playbackResponse struct {
	Frames     int   `json:"frames"`
	SampleRate int   `json:"sample_rate"`
	DurationMS int64 `json:"duration_ms"`
}

type keepsakeResponse struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	Input     domain.MemoryInput `json:"input"`
	Result    resultResponse     `json:"result"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ─────────────────────────────────────────────
// Session handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.keepsakes.NewSession(r.Context())
	writeJSON(w, http.StatusCreated, toSessionResponse(sess.Snapshot(), r))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.keepsakes.Snapshot(sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap, r))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.keepsakes.Start(sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap, r))
}

func (s *Server) handleSubmitMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	in := domain.MemoryInput{
		Name:         req.Name,
		Relationship: req.Relationship,
		Detail:       req.Detail,
	}
	if strings.TrimSpace(req.Mood) != "" {
		mood, ok := domain.ParseMood(req.Mood)
		if !ok {
			badRequest(w, "mood must be one of "+moodList())
			return
		}
		in.Mood = mood
	}

	snap, err := s.keepsakes.Submit(r.Context(), sessionID(r), in)
	var uerr *domain.UserError
	if errors.As(err, &uerr) {
		// the letter failed; the snapshot is back on the form and carries the error
		writeJSON(w, http.StatusOK, toSessionResponse(snap, r))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap, r))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := s.keepsakes.Reset(sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap, r))
}

func (s *Server) handlePlayVoice(w http.ResponseWriter, r *http.Request) {
	buf, err := s.keepsakes.PlayVoice(sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playbackResponse{
		Frames:     buf.Length(),
		SampleRate: buf.SampleRate,
		DurationMS: buf.Duration().Milliseconds(),
	})
}

func (s *Server) handleStopVoice(w http.ResponseWriter, r *http.Request) {
	if err := s.keepsakes.StopVoice(sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVoiceWAV(w http.ResponseWriter, r *http.Request) {
	result, err := s.revealedResult(sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !result.HasAudio() {
		writeError(w, r, domain.ErrNoAudio)
		return
	}

	buf, err := audio.Decode(result.AudioData, nil)
	if err != nil {
		internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	if err := audio.EncodeWAV(w, buf); err != nil {
		observability.LoggerFromContext(r.Context()).Warn("writing wav failed", "error", err)
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	result, err := s.revealedResult(sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.ImageURL == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not available yet"})
		return
	}

	mime, data, err := domain.ParseDataURI(result.ImageURL)
	if err != nil {
		internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) revealedResult(id domain.SessionID) (domain.GenerationResult, error) {
	snap, err := s.keepsakes.Snapshot(id)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	reveal, ok := snap.State.(domain.Reveal)
	if !ok {
		return domain.GenerationResult{}, domain.ErrInvalidTransition
	}
	return reveal.Result, nil
}

// ─────────────────────────────────────────────
// Archive handlers
// ─────────────────────────────────────────────

func (s *Server) handleListKeepsakes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := s.archive.ListKeepsakes(r.Context(), limit)
	if err != nil {
		internalError(w, r, err)
		return
	}

	out := make([]keepsakeResponse, 0, len(list))
	for _, k := range list {
		resp := toKeepsakeResponse(k, r)
		// listings stay small; the audio is fetched per keepsake
		resp.Result.AudioData = ""
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"keepsakes": out})
}

func (s *Server) handleGetKeepsake(w http.ResponseWriter, r *http.Request) {
	k, err := s.archive.GetKeepsake(r.Context(), domain.KeepsakeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toKeepsakeResponse(k, r))
}

// ─────────────────────────────────────────────
// Keepsake Helpers
// ─────────────────────────────────────────────

func sessionID(r *http.Request) domain.SessionID {
	return domain.SessionID(chi.URLParam(r, "id"))
}

func toSessionResponse(snap keepsake.Snapshot, r *http.Request) sessionResponse {
	resp := sessionResponse{
		ID:         string(snap.SessionID),
		Screen:     snap.State.Screen(),
		Generation: snap.Generation,
		KeepsakeID: string(snap.KeepsakeID),
		Playing:    snap.Playing,
	}

	switch st := snap.State.(type) {
	case domain.Input:
		resp.Error = st.Error
	case domain.Generating:
		in := st.Input
		resp.Input = &in
	case domain.Reveal:
		in := st.Input
		result := toResultResponse(st.Result, r)
		// snapshots are pushed on every change; the voice is fetched from
		// /voice.wav instead
		result.AudioData = ""
		resp.Input = &in
		resp.Result = &result
	}
	return resp
}

func toResultResponse(res domain.GenerationResult, r *http.Request) resultResponse {
	html, err := render.LetterHTML(res.Letter)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn("letter rendering failed", "error", err)
	}
	cites := res.Citations
	if cites == nil {
		cites = []domain.Citation{}
	}
	return resultResponse{
		Letter:      res.Letter,
		LetterHTML:  html,
		ImagePrompt: res.ImagePrompt,
		ImageURL:    res.ImageURL,
		AudioData:   res.AudioData,
		HasAudio:    res.HasAudio(),
		Citations:   cites,
	}
}

func toKeepsakeResponse(k *domain.Keepsake, r *http.Request) keepsakeResponse {
	return keepsakeResponse{
		ID:        string(k.ID),
		SessionID: string(k.SessionID),
		Input:     k.Input,
		Result:    toResultResponse(k.Result, r),
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
}

func moodList() string {
	names := make([]string, 0, len(domain.Moods))
	for _, m := range domain.Moods {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrKeepsakeNotFound),
		errors.Is(err, domain.ErrNoAudio):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrIncompleteInput):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, keepsake.ErrStale):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		internalError(w, r, err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
