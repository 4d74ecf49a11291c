// ABOUTME: Gateway orchestrator wiring webhook ingestion to background conversation work
// ABOUTME: Manages the HTTP server, worker pool, session sweeper, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charlabot/charla/internal/config"
	"github.com/charlabot/charla/internal/convo"
	"github.com/charlabot/charla/internal/dedupe"
	"github.com/charlabot/charla/internal/store"
	"github.com/charlabot/charla/internal/tools"
	"github.com/charlabot/charla/internal/wacloud"
	"github.com/charlabot/charla/internal/webhook"
)

// TextSender delivers outbound replies. Failures are logged, never retried
// here.
type TextSender interface {
	SendText(ctx context.Context, to, text string) (string, error)
}

// Transcriber turns an audio media id into text before the machine runs.
type Transcriber interface {
	DownloadAndTranscribe(ctx context.Context, mediaID string) (string, error)
}

// Gateway orchestrates the charla server components: the webhook endpoint,
// the background worker pool running the conversation machine, and the
// periodic session sweeper.
type Gateway struct {
	config     *config.Config
	store      store.Store
	memory     *store.Memory
	machine    *convo.Machine
	sender     TextSender
	transcribe Transcriber
	dedupe     *dedupe.Cache
	pool       *Pool
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the SQLite store from config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("CHARLA_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New builds a fully wired gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	memory := store.NewMemory(s, cfg.Sessions.TTL, logger)
	if !memory.Available() {
		logger.Warn("store unreachable at startup, running in degraded mode")
	}

	var searcher tools.Searcher
	if cfg.Search.Enabled {
		searcher = wacloud.NewSearcher(cfg.Search.BaseURL, cfg.Search.MaxResults, logger)
	}
	registry := tools.NewDefaultRegistry(searcher)

	var completer convo.Completer
	if cfg.LLM.Enabled {
		completer = wacloud.NewCompleter(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.SystemPrompt, logger)
	}

	machine := convo.NewMachine(registry, memory, completer, cfg.LLM.Timeout, logger)

	gw := &Gateway{
		config:  cfg,
		store:   s,
		memory:  memory,
		machine: machine,
		sender: wacloud.NewSender(cfg.WhatsApp.GraphBaseURL, cfg.WhatsApp.AccessToken,
			cfg.WhatsApp.PhoneNumberID, logger),
		transcribe: wacloud.NewTranscriber(cfg.WhatsApp.GraphBaseURL, cfg.WhatsApp.AccessToken,
			cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.STTModel, logger),
		dedupe: dedupe.New(10*time.Minute, 100_000),
		logger: logger.With("component", "gateway"),
	}

	gw.pool = NewPool(cfg.Workers.Count, cfg.Workers.QueueSize, 2*time.Minute, gw.processJob, logger)

	hooks := webhook.NewHandler(cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, gw, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", hooks.HandleWebhook)
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/ready", gw.handleReady)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Dispatch satisfies webhook.Dispatcher. It drops retried deliveries seen
// in the dedupe window and hands the rest to the worker pool. Returning
// false only signals a full queue; the webhook is acked either way.
func (g *Gateway) Dispatch(msg *webhook.Message, respond bool) bool {
	if msg.ProviderID != "" && g.dedupe.SeenOrMark(msg.ProviderID) {
		g.logger.Debug("duplicate delivery dropped", "provider_message_id", msg.ProviderID)
		return true
	}
	if !g.pool.Enqueue(Job{Message: msg, Respond: respond}) {
		// The delivery never ran; unmark it so the provider's retry is
		// not mistaken for a duplicate.
		if msg.ProviderID != "" {
			g.dedupe.Forget(msg.ProviderID)
		}
		return false
	}
	return true
}

// processJob runs one inbound message end to end on a worker: profile
// upsert, optional transcription, the conversation machine, and the
// outbound send.
func (g *Gateway) processJob(ctx context.Context, job Job) {
	msg := job.Message

	user, err := g.memory.UpsertUser(ctx, msg.From, msg.ProfileName)
	if err != nil {
		g.logger.Error("user upsert failed", "sender", msg.From, "error", err)
		return
	}

	text := msg.Text
	if msg.Type == webhook.TypeAudio {
		transcript, err := g.transcribe.DownloadAndTranscribe(ctx, msg.MediaID)
		if err != nil {
			g.logger.Warn("transcription failed", "media_id", msg.MediaID, "error", err)
			g.send(ctx, msg.From, "No pude escuchar tu mensaje de voz. ¿Puedes escribirlo?")
			return
		}
		text = transcript
	}

	if !job.Respond {
		// media/location/contact messages are logged, not answered
		g.logAcknowledgedOnly(ctx, user.ID, msg)
		return
	}

	result := g.machine.Run(ctx, convo.Inbound{
		UserID:            user.ID,
		SenderID:          msg.From,
		Text:              text,
		Type:              string(msg.Type),
		ProviderMessageID: msg.ProviderID,
	})
	if result.Duplicate || result.Reply == "" {
		return
	}

	g.send(ctx, msg.From, result.Reply)
}

// logAcknowledgedOnly appends unanswered message types to the history so
// context survives, without generating a reply.
func (g *Gateway) logAcknowledgedOnly(ctx context.Context, userID string, msg *webhook.Message) {
	sessionID, err := g.memory.GetOrCreateConversation(ctx, userID)
	if err != nil {
		g.logger.Warn("session resolution failed for media log", "user_id", userID, "error", err)
		return
	}

	content := msg.Caption
	if content == "" {
		content = string(msg.Type)
	}
	if _, err := g.memory.AppendMessage(ctx, sessionID, store.DirectionIncoming,
		string(msg.Type), content, msg.ProviderID); err != nil {
		g.logger.Debug("media log append skipped", "error", err)
	}
}

// send delivers one outbound text. Delivery failure is terminal here.
func (g *Gateway) send(ctx context.Context, to, text string) {
	if _, err := g.sender.SendText(ctx, to, text); err != nil {
		g.logger.Error("outbound send failed", "to", to, "error", err)
	}
}

// Run starts the HTTP server and session sweeper, blocking until the
// context is canceled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	if count, err := g.memory.CleanupExpiredSessions(ctx); err == nil && count > 0 {
		g.logger.Info("expired sessions purged at startup", "count", count)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go g.runSweeper(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	stopSweeper()
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// runSweeper purges expired sessions on a timer until canceled.
func (g *Gateway) runSweeper(ctx context.Context) {
	interval := g.config.Sessions.SweepInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if count, err := g.memory.CleanupExpiredSessions(ctx); err == nil && count > 0 {
				g.logger.Info("expired sessions purged", "count", count)
			}
		case <-ctx.Done():
			return
		}
	}
}

// gracefulShutdown stops the HTTP server, drains the worker pool, and
// closes the store. Uses a fresh context since the run context is already
// canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown performs an orderly stop: no new webhooks, finish queued
// conversations, then release resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Error("HTTP shutdown error", "error", err)
		firstErr = err
	}

	if err := g.pool.Drain(ctx); err != nil {
		g.logger.Warn("worker pool drain timed out", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	g.dedupe.Close()

	if err := g.store.Close(); err != nil {
		g.logger.Error("store close error", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	g.logger.Info("shutdown complete")
	return firstErr
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// handleReady reports degraded (but still 200) when the store is down: the
// conversational path stays completable without persistence.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if g.memory.Recheck(r.Context()) {
		fmt.Fprintln(w, `{"status":"ready","store":"available"}`)
		return
	}
	fmt.Fprintln(w, `{"status":"ready","store":"degraded"}`)
}
