package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/calibration_wizard/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // start, cancel, status
}

type WSResponse struct {
	Type    string  `json:"type"` // status, complete, cancelled, error
	Status  *Status `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
}

// RunnerFactory builds a fresh runner for a new wizard session.
type RunnerFactory func(session string) (*Runner, error)

// WebServer hosts wizard sessions over websockets.
type WebServer struct {
	newRunner RunnerFactory
	logger    *zap.Logger
	onStatus  func(Status)

	mu     sync.RWMutex
	latest *Status
}

// NewWebServer returns a server that creates one runner per "start" action.
// onStatus, if set, sees every status of every session.
func NewWebServer(newRunner RunnerFactory, onStatus func(Status), logger *zap.Logger) *WebServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebServer{
		newRunner: newRunner,
		onStatus:  onStatus,
		logger:    logger.Named("web"),
	}
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/wizard", s.handleWizardWS)
	mux.HandleFunc("/api/wizard", s.handleStatus)
	return mux
}

func (s *WebServer) setLatest(st Status) {
	s.mu.Lock()
	s.latest = &st
	s.mu.Unlock()
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

// handleStatus serves the latest status of any session.
func (s *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		http.Error(w, "no session yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.latest); err != nil {
		s.logger.Warn("web: json encode error", zap.Error(err))
	}
}

// wizardSession is one websocket connection and the runner it drives.
type wizardSession struct {
	server *WebServer
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// handleWizardWS handles the WebSocket connection for a wizard session.
func (s *WebServer) handleWizardWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("web: websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	sess := &wizardSession{server: s, conn: conn, logger: s.logger}
	defer sess.stop()

	// Main message loop
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("web: websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Action {
		case "start":
			if err := sess.start(); err != nil {
				sess.send(WSResponse{Type: "error", Message: err.Error()})
			}
		case "cancel":
			sess.stop()
			sess.send(WSResponse{Type: "cancelled"})
		case "status":
			if sess.runner == nil {
				sess.send(WSResponse{Type: "error", Message: "no session started"})
				continue
			}
			st := sess.runner.Status()
			sess.send(WSResponse{Type: "status", Status: &st})
		default:
			sess.send(WSResponse{Type: "error", Message: fmt.Sprintf("unknown action %q", msg.Action)})
		}
	}
}

func (ws *wizardSession) start() error {
	if ws.done != nil {
		select {
		case <-ws.done:
		default:
			return errors.New("session already running")
		}
		if ws.cancel != nil {
			ws.cancel()
		}
	}

	id := uuid.NewString()
	runner, err := ws.server.newRunner(id)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ws.runner, ws.cancel, ws.done = runner, cancel, make(chan struct{})
	ws.logger.Info("web: wizard session started", zap.String("session", id))

	initial := runner.Status()
	ws.server.setLatest(initial)
	ws.send(WSResponse{Type: "status", Status: &initial})

	go func(done chan struct{}) {
		defer close(done)
		defer func() {
			if err := runner.Close(); err != nil {
				ws.logger.Warn("web: close wizard", zap.Error(err))
			}
		}()

		err := runner.Run(ctx, func(st Status) {
			ws.server.setLatest(st)
			ws.send(WSResponse{Type: "status", Status: &st})
		})
		if err == nil {
			st := runner.Status()
			ws.send(WSResponse{Type: "complete", Status: &st})
			ws.logger.Info("web: wizard session complete", zap.String("session", id))
		}
	}(ws.done)

	return nil
}

// stop cancels the running session, if any, and waits for it to exit.
func (ws *wizardSession) stop() {
	if ws.cancel == nil {
		return
	}
	ws.cancel()
	<-ws.done
	ws.cancel = nil
}

func (ws *wizardSession) send(resp WSResponse) {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteJSON(resp); err != nil {
		ws.logger.Debug("web: websocket write error", zap.Error(err))
	}
}

// RunWeb serves wizard sessions until ctx is cancelled.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var client mqtt.Client
	if needsMQTT(cfg) || cfg.TopicWizardState != "" {
		c, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWizard, logger)
		if err != nil {
			if needsMQTT(cfg) {
				return err
			}
			logger.Warn("web: MQTT unavailable, wizard state will not be mirrored", zap.Error(err))
		} else {
			defer c.Disconnect(250)
			client = c
		}
	}

	trk, err := newTracker(cfg, client, nil, logger)
	if err != nil {
		return err
	}
	defer trk.Stop()

	interval := time.Duration(cfg.SampleInterval) * time.Millisecond
	factory := func(session string) (*Runner, error) {
		w, err := newWizard(cfg, trk, accumulatorFactory(cfg, client, session, nil, logger), logger)
		if err != nil {
			return nil, err
		}
		return NewRunner(w, session, interval, logger), nil
	}

	var onStatus func(Status)
	if client != nil && cfg.TopicWizardState != "" {
		state := NewStatePublisher(client, cfg.TopicWizardState)
		onStatus = func(st Status) {
			if err := state.Publish(st); err != nil {
				logger.Warn("web: state publish failed", zap.Error(err))
			}
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewWebServer(factory, onStatus, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
