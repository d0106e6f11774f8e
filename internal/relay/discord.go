package relay

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/decentgg/bridgebot/internal/presence"
)

// DiscordEgress posts relay and presence payloads to Discord webhooks.
// Delivery failure is logged and dropped, never retried.
type DiscordEgress struct {
	http       *fasthttp.Client
	webhookURL string
	onlineURL  string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewDiscordEgress(webhookURL, onlineURL string, logger *zap.Logger) *DiscordEgress {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscordEgress{
		http:       &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		webhookURL: webhookURL,
		onlineURL:  onlineURL,
		timeout:    10 * time.Second,
		logger:     logger,
	}
}

// PostContent posts a plain content message to the chat relay webhook.
func (d *DiscordEgress) PostContent(content string) error {
	return d.post(d.webhookURL, map[string]any{"content": content})
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

var rankEmojis = map[string]string{
	"Guild Master": "👑",
	"Officer":      "⚔️",
	"Member":       "🛡️",
}

var rankOrder = []string{"Guild Master", "Officer", "Member"}

// PublishPresence posts a member summary grouped by rank tier. Each summary
// supersedes the previous one.
func (d *DiscordEgress) PublishPresence(members []presence.Member, capturedAt time.Time) error {
	url := d.onlineURL
	if url == "" {
		url = d.webhookURL
	}

	byRank := make(map[string][]string)
	for _, m := range members {
		rank := m.GuildRank
		if rank == "" {
			rank = "Member"
		}
		byRank[rank] = append(byRank[rank], m.Username)
	}

	e := embed{
		Title:       "Guild Members Online",
		Description: fmt.Sprintf("Total: **%d** members online", len(members)),
		Color:       0x51586e,
	}
	e.Footer.Text = "Updated • " + capturedAt.Format("15:04")

	appendTier := func(rank string) {
		names := byRank[rank]
		if len(names) == 0 {
			return
		}
		sort.Strings(names)
		value := "- " + names[0]
		for _, n := range names[1:] {
			value += "\n- " + n
		}
		e.Fields = append(e.Fields, embedField{
			Name:  fmt.Sprintf("%s %s (%d)", rankEmojis[rank], rank, len(names)),
			Value: value,
		})
		delete(byRank, rank)
	}
	for _, rank := range rankOrder {
		appendTier(rank)
	}
	// Any remaining non-standard tiers, deterministic order.
	var extras []string
	for rank := range byRank {
		extras = append(extras, rank)
	}
	sort.Strings(extras)
	for _, rank := range extras {
		appendTier(rank)
	}

	return d.post(url, map[string]any{"embeds": []embed{e}})
}

func (d *DiscordEgress) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := d.http.DoTimeout(req, resp, d.timeout); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook returned %d: %s", status, resp.Body())
	}
	return nil
}
