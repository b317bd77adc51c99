package voicebridge

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bt-bridge/voicebridge/actions"
	"github.com/bt-bridge/voicebridge/model"
	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
	"github.com/bt-bridge/voicebridge/telephony"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const apologyMessage = "We are sorry, this number is not configured to receive calls. Goodbye."

// ConfigResolver answers destination lookups. Satisfied by store.Resolver.
type ConfigResolver interface {
	Resolve(ctx context.Context, number string) (*store.CallConfig, error)
}

type HandlerConfig struct {
	APIKey       string // speech model API key
	ModelBaseUrl string
	ModelName    string
	// PublicHost is the externally reachable host used in the stream URL
	// handed back to the provider, e.g. "bridge.example.com".
	PublicHost string
	Bridge     Options
}

// Handler exposes the two provider-facing endpoints: the inbound-call
// webhook answering TwiML and the media-stream websocket.
type Handler struct {
	logger    shared.LoggerAdapter
	resolver  ConfigResolver
	recorder  Recorder
	searcher  actions.Searcher
	messenger actions.Messenger
	booker    actions.Booker
	cfg       HandlerConfig
	upgrader  websocket.Upgrader
}

func NewHandler(
	logger shared.LoggerAdapter,
	resolver ConfigResolver,
	recorder Recorder,
	searcher actions.Searcher,
	messenger actions.Messenger,
	booker actions.Booker,
	cfg HandlerConfig,
) (*Handler, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.APIKey == "" {
		return nil, shared.ErrNoAPIKey
	}
	return &Handler{
		logger:    logger,
		resolver:  resolver,
		recorder:  recorder,
		searcher:  searcher,
		messenger: messenger,
		booker:    booker,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The provider does not send an Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// TwiML response document.
type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     string        `xml:"Say,omitempty"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// HandleInboundCall answers the provider's call webhook. Configured numbers
// get a stream connect; unknown numbers get a spoken apology and no stream.
func (h *Handler) HandleInboundCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	from := r.Form.Get("From")
	to := r.Form.Get("To")

	resp := &twimlResponse{}
	cfg, err := h.resolver.Resolve(r.Context(), to)
	if err != nil {
		h.logger.Warn("inbound call for unconfigured number",
			zap.String("to", to), zap.Error(err))
		resp.Say = apologyMessage
	} else {
		streamUrl := fmt.Sprintf("wss://%s/call/stream?destination=%s", h.cfg.PublicHost, url.QueryEscape(cfg.PhoneNumber))
		resp.Connect = &twimlConnect{
			Stream: twimlStream{
				URL: streamUrl,
				Parameters: []twimlParameter{
					{Name: "from", Value: from},
					{Name: "to", Value: to},
				},
			},
		}
		h.logger.Info("answering inbound call",
			zap.String("to", to), zap.String("config_id", cfg.ID))
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encoding TwiML response", err)
	}
}

// HandleStream upgrades the media-stream websocket and runs the bridge for
// the duration of the call.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	destination := r.URL.Query().Get("destination")
	if destination == "" {
		http.Error(w, "destination is required", http.StatusBadRequest)
		return
	}
	cfg, err := h.resolver.Resolve(r.Context(), destination)
	if err != nil {
		h.logger.Error("resolving stream destination", err, zap.String("destination", destination))
		http.Error(w, "unknown destination", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrading stream connection", err)
		return
	}
	tconn := telephony.NewConn(ws)

	ctx := r.Context()
	mconn, err := model.Dial(ctx, h.logger, h.cfg.APIKey, h.cfg.ModelBaseUrl, h.cfg.ModelName)
	if err != nil {
		// A failed model dial is final for this call; no retries mid-ring.
		h.logger.Error("dialing model", err)
		tconn.Close()
		return
	}

	dispatcher, err := actions.NewDispatcher(h.logger, cfg, h.searcher, h.messenger, h.booker, 0)
	if err != nil {
		h.logger.Error("creating dispatcher", err)
		tconn.Close()
		mconn.Close()
		return
	}

	opts := h.cfg.Bridge
	opts.SessionConfig = model.BuildSession(model.SessionOptions{
		Model:        h.cfg.ModelName,
		Instructions: Instructions(cfg),
		Tools:        actions.Tools(cfg),
	})
	opts.Greeting = Greeting(cfg)

	bridge, err := NewBridge(h.logger, cfg, tconn, mconn, dispatcher, h.recorder, opts)
	if err != nil {
		h.logger.Error("creating bridge", err)
		tconn.Close()
		mconn.Close()
		return
	}
	if err := bridge.Run(ctx); err != nil {
		h.logger.Error("bridge run ended with error", err)
	}
}
