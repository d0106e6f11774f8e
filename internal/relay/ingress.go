package relay

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const secretHeader = "X-Discord-Secret"

type inboundPayload struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// Ingress is the HTTP listener receiving platform messages bound for game
// chat. Requests authenticate with a shared secret header.
type Ingress struct {
	secret string
	bridge *Bridge
	server *fasthttp.Server
	logger *zap.Logger
}

func NewIngress(secret string, bridge *Bridge, logger *zap.Logger) *Ingress {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Ingress{secret: secret, bridge: bridge, logger: logger}
	i.server = &fasthttp.Server{
		Handler:     i.handle,
		ReadTimeout: 10 * time.Second,
		Name:        "bridgebot",
	}
	return i
}

// Start begins serving on addr. Runs until Stop.
func (i *Ingress) Start(addr string) {
	go func() {
		if err := i.server.ListenAndServe(addr); err != nil {
			i.logger.Error("ingress server stopped", zap.Error(err))
		}
	}()
	i.logger.Info("relay ingress listening", zap.String("addr", addr))
}

// Stop shuts the listener down gracefully.
func (i *Ingress) Stop() {
	if err := i.server.Shutdown(); err != nil {
		i.logger.Warn("ingress shutdown", zap.Error(err))
	}
}

func (i *Ingress) handle(ctx *fasthttp.RequestCtx) {
	if string(ctx.Path()) != "/discord-webhook" || !ctx.IsPost() {
		writeJSON(ctx, fasthttp.StatusNotFound, "error", "Not found")
		return
	}

	if string(ctx.Request.Header.Peek(secretHeader)) != i.secret {
		writeJSON(ctx, fasthttp.StatusUnauthorized, "error", "Unauthorized")
		return
	}

	var payload inboundPayload
	if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil ||
		strings.TrimSpace(payload.Username) == "" || strings.TrimSpace(payload.Content) == "" {
		writeJSON(ctx, fasthttp.StatusBadRequest, "error", "Invalid format")
		return
	}

	i.bridge.EnqueueInbound(payload.Username, payload.Content)
	i.logger.Info("platform message received", zap.String("username", payload.Username))
	writeJSON(ctx, fasthttp.StatusOK, "success", "")
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, result, message string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	resp := map[string]string{"status": result}
	if message != "" {
		resp["message"] = message
	}
	body, _ := json.Marshal(resp)
	ctx.SetBody(body)
}
