package relay

import (
	"strings"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/decentgg/bridgebot/internal/msgcat"
	"github.com/decentgg/bridgebot/internal/outbound"
)

func newTestIngress(t *testing.T) (*Ingress, *Bridge) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	gate := outbound.NewGate(&chanSender{ch: make(chan string, 16)}, cat, nil)
	// Drain loops stay stopped; tests inspect the queue directly.
	bridge := NewBridge(gate, &chanPoster{ch: make(chan string, 16)}, "Guild", 0, nil)
	return NewIngress("hunter2", bridge, nil), bridge
}

func webhookRequest(secret, body string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/discord-webhook")
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	if secret != "" {
		ctx.Request.Header.Set(secretHeader, secret)
	}
	ctx.Request.SetBodyString(body)
	return &ctx
}

func queuedInbound(b *Bridge) []inboundMessage {
	b.inMu.Lock()
	defer b.inMu.Unlock()
	return append([]inboundMessage(nil), b.inQ...)
}

func TestIngressAcceptsValidMessage(t *testing.T) {
	in, bridge := newTestIngress(t)

	ctx := webhookRequest("hunter2", `{"username":"Bob","content":"hi"}`)
	in.handle(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, body = %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	if !strings.Contains(string(ctx.Response.Body()), `"status":"success"`) {
		t.Fatalf("body = %s", ctx.Response.Body())
	}
	q := queuedInbound(bridge)
	if len(q) != 1 || q[0].DisplayName != "Bob" || q[0].Content != "hi" {
		t.Fatalf("queued = %+v", q)
	}
}

func TestIngressRejectsBadSecret(t *testing.T) {
	in, bridge := newTestIngress(t)

	for _, secret := range []string{"", "wrong"} {
		ctx := webhookRequest(secret, `{"username":"Bob","content":"hi"}`)
		in.handle(ctx)
		if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
			t.Fatalf("secret %q: status = %d", secret, ctx.Response.StatusCode())
		}
	}
	if q := queuedInbound(bridge); len(q) != 0 {
		t.Fatalf("queued = %+v", q)
	}
}

func TestIngressRejectsMalformedPayload(t *testing.T) {
	in, bridge := newTestIngress(t)

	bodies := []string{
		"not json",
		`{"username":"Bob"}`,
		`{"content":"hi"}`,
		`{"username":"  ","content":"hi"}`,
	}
	for _, body := range bodies {
		ctx := webhookRequest("hunter2", body)
		in.handle(ctx)
		if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, ctx.Response.StatusCode())
		}
	}
	if q := queuedInbound(bridge); len(q) != 0 {
		t.Fatalf("queued = %+v", q)
	}
}

func TestIngressUnknownRoute(t *testing.T) {
	in, _ := newTestIngress(t)

	ctx := webhookRequest("hunter2", "{}")
	ctx.Request.SetRequestURI("/other")
	in.handle(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}

	get := webhookRequest("hunter2", "")
	get.Request.Header.SetMethod(fasthttp.MethodGet)
	in.handle(get)
	if get.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d", get.Response.StatusCode())
	}
}
