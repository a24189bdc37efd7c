package ingress

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"msgboard/domain"
	"msgboard/internal"
)

//go:embed web/*.html
var pagesFS embed.FS

// Server is the public HTTP face of the board. It validates form
// submissions and forwards them to the relay; it never talks to the
// store itself.
type Server struct {
	log     *slog.Logger
	sender  Sender
	pages   *template.Template
	httpSrv *http.Server
}

// NewServer builds the route table. Routes are static method+path
// pairs; anything else lands on the error page.
func NewServer(log *slog.Logger, cfg internal.WebConfig, sender Sender) *Server {
	s := &Server{
		log:    log,
		sender: sender,
		pages:  template.Must(template.ParseFS(pagesFS, "web/*.html")),
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			log.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/").HandlerFunc(s.handleIndex)
	r.Methods(http.MethodGet).Path("/message.html").HandlerFunc(s.handleIndex)
	r.Methods(http.MethodPost).Path("/message").HandlerFunc(s.handleSubmit)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.errorPage(w, http.StatusNotFound, "This page does not exist.")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.errorPage(w, http.StatusMethodNotAllowed, "This method is not allowed here.")
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	s.log.Info("Web server listening", "address", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops accepting and waits for in-flight requests until the
// context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, "index.html", nil); err != nil {
		s.log.Error("Rendering form page failed", "error", err)
	}
}

// handleSubmit accepts an urlencoded form with a username and a
// message. Both keys must be present; empty values are allowed and
// relayed as-is.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.log.Warn("Unparseable form body", "remote", r.RemoteAddr, "error", err)
		s.errorPage(w, http.StatusBadRequest, "The submission could not be read.")
		return
	}
	if !r.PostForm.Has("username") || !r.PostForm.Has("message") {
		s.log.Warn("Form missing required fields", "remote", r.RemoteAddr)
		s.errorPage(w, http.StatusBadRequest, "Both a username and a message are required.")
		return
	}

	sub := domain.Submission{
		Username: r.PostForm.Get("username"),
		Message:  r.PostForm.Get("message"),
	}
	if err := s.sender.Send(r.Context(), sub); err != nil {
		s.log.Error("Forwarding submission failed", "username", sub.Username, "error", err)
		s.errorPage(w, http.StatusBadGateway, "The message could not be delivered. Please try again later.")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

type errorPageData struct {
	Status  int
	Title   string
	Message string
}

func (s *Server) errorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data := errorPageData{
		Status:  status,
		Title:   http.StatusText(status),
		Message: message,
	}
	if err := s.pages.ExecuteTemplate(w, "error.html", data); err != nil {
		s.log.Error("Rendering error page failed", "error", err)
		fmt.Fprintf(w, "%d %s", status, data.Title)
	}
}
