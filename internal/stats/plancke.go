package stats

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultBaseURL = "https://plancke.io"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
)

var statAbbreviations = map[string]string{
	"kills":  "K",
	"kd":     "KD",
	"finals": "F",
	"fkdr":   "FKDR",
	"wins":   "W",
	"beds":   "B",
	"wlr":    "WLR",
	"bblr":   "BBLR",
}

var modeToTableHeader = map[string]string{
	"1s":   "Solo",
	"2s":   "Doubles",
	"3s":   "3v3v3v3",
	"4s":   "4v4v4v4",
	"4v4":  "4v4",
	"core": "Core Modes",
	"bw":   "Overall",
}

// camel-case subcategory bundles like "fkdrFinals" split into single stats
var subcategoryPartRE = regexp.MustCompile(`[a-z]+|[A-Z][a-z]*`)

// PlanckeClient scrapes player statistics from plancke.io pages.
type PlanckeClient struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

type PlanckeOption func(*PlanckeClient)

func WithBaseURL(u string) PlanckeOption {
	return func(c *PlanckeClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithRequestTimeout(d time.Duration) PlanckeOption {
	return func(c *PlanckeClient) { c.timeout = d }
}

func NewPlanckeClient(logger *zap.Logger, opts ...PlanckeOption) *PlanckeClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &PlanckeClient{
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		baseURL: defaultBaseURL,
		timeout: 10 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PlanckeClient) fetch(url string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.Set("User-Agent", userAgent)

	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		return 0, nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}

// GuildInfo scrapes the player's rank display and guild name.
func (c *PlanckeClient) GuildInfo(ctx context.Context, username string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	started := time.Now()
	status, body, err := c.fetch(c.baseURL + "/hypixel/player/stats/" + username)
	if err != nil {
		return "", err
	}
	if status == fasthttp.StatusNotFound {
		return fmt.Sprintf("Ran into an error! The player '%s' doesn't appear to exist!", username), nil
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("stats page returned %d for %s", status, username)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse stats page: %w", err)
	}

	result := rankDisplay(doc)
	if result == "" {
		return "", nil
	}
	if guild := guildName(doc); guild != "" {
		result = result + " - " + guild
	}

	c.logger.Debug("guild info lookup",
		zap.String("username", username),
		zap.Duration("took", time.Since(started)))
	return result, nil
}

// GamemodeStats scrapes the player's bedwars table for one game mode.
func (c *PlanckeClient) GamemodeStats(ctx context.Context, username, mode, subcategory string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	started := time.Now()
	status, body, err := c.fetch(c.baseURL + "/hypixel/player/stats/" + username)
	if err != nil {
		return "", err
	}
	if status == fasthttp.StatusNotFound {
		return fmt.Sprintf("Ran into an error! The player '%s' doesn't appear to exist!", username), nil
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("stats page returned %d for %s", status, username)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse stats page: %w", err)
	}

	level := bedwarsLevel(doc)
	if subcategory == "lvl" {
		return fmt.Sprintf("[%s✫] %s", level, username), nil
	}

	header, ok := modeToTableHeader[mode]
	if !ok {
		header = "Overall"
	}
	row := modeRow(doc, header)

	get := func(idx int) string {
		if idx < len(row) {
			return row[idx]
		}
		return "N/A"
	}
	kills := get(0)
	kd := get(2)
	finals := get(3)
	fkdr := get(5)
	wins := get(6)
	losses := get(7)
	wlr := get(8)
	beds := get(9)
	bblr := computeBBLR(beds, losses)

	values := map[string]string{
		"kills":  kills,
		"kd":     kd,
		"finals": finals,
		"fkdr":   fkdr,
		"wins":   wins,
		"beds":   beds,
		"wlr":    wlr,
		"bblr":   bblr,
	}

	c.logger.Debug("gamemode stats lookup",
		zap.String("username", username),
		zap.String("mode", mode),
		zap.Duration("took", time.Since(started)))

	if subcategory == "" || subcategory == "all" {
		return fmt.Sprintf("[%s✫] %s ┃ K %s ┃ KD %s ┃ F %s ┃ FKDR %s ┃ W %s ┃ B %s ┃ WLR %s ┃ BBLR %s",
			level, username, kills, kd, finals, fkdr, wins, beds, wlr, bblr), nil
	}

	parts := subcategoryPartRE.FindAllString(subcategory, -1)
	rendered := make([]string, 0, len(parts))
	for _, p := range parts {
		key := strings.ToLower(p)
		abbr, ok := statAbbreviations[key]
		if !ok {
			abbr = strings.ToUpper(p)
		}
		v, ok := values[key]
		if !ok {
			v = "N/A"
		}
		rendered = append(rendered, abbr+" "+v)
	}
	return fmt.Sprintf("[%s✫] %s ┃ %s", level, username, strings.Join(rendered, " ┃ ")), nil
}

// IsSubcategory reports whether a token names a stat subcategory rather
// than a username: "all", "lvl", or a camel-case bundle of known stat keys.
func IsSubcategory(token string) bool {
	if token == "all" || token == "lvl" {
		return true
	}
	parts := subcategoryPartRE.FindAllString(token, -1)
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if _, ok := statAbbreviations[strings.ToLower(p)]; !ok {
			return false
		}
	}
	return true
}

func computeBBLR(beds, losses string) string {
	b, errB := strconv.ParseFloat(strings.ReplaceAll(beds, ",", ""), 64)
	l, errL := strconv.ParseFloat(strings.ReplaceAll(losses, ",", ""), 64)
	if errB != nil || errL != nil || l == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", b/l)
}
