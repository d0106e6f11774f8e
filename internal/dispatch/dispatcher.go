package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/decentgg/bridgebot/internal/msgcat"
	"github.com/decentgg/bridgebot/internal/outbound"
	"github.com/decentgg/bridgebot/internal/protocol"
	"github.com/decentgg/bridgebot/internal/shortcuts"
	"github.com/decentgg/bridgebot/internal/stats"
)

var gamemodeVerbs = map[string]bool{
	"1s": true, "2s": true, "3s": true, "4s": true,
	"4v4": true, "core": true, "bw": true,
}

type lookupKind int

const (
	lookupGuild lookupKind = iota
	lookupGamemode
)

type lookupRequest struct {
	ID          string
	Kind        lookupKind
	Mode        string
	Usernames   []string
	Subcategory string
	Top         bool
}

// Dispatcher matches guild chat messages against the command grammar and
// routes them: shortcut/alias management replies through the gate, stat and
// guild-info lookups go to a second worker so slow scrapes never delay
// command replies. Chat events themselves are queued too, keeping store
// round trips off the line-reading goroutine entirely.
type Dispatcher struct {
	gate     *outbound.Gate
	store    *shortcuts.Store
	resolver *shortcuts.Resolver
	lookup   stats.Lookup
	cat      *msgcat.Catalog
	logger   *zap.Logger

	botUsername  string
	guildChannel string

	evMu   sync.Mutex
	evQ    []protocol.Event
	evWake chan struct{}
	evDone chan struct{}

	queueMu sync.Mutex
	queue   []lookupRequest
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

func New(gate *outbound.Gate, store *shortcuts.Store, lookup stats.Lookup, cat *msgcat.Catalog, botUsername, guildChannel string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		gate:         gate,
		store:        store,
		resolver:     shortcuts.NewResolver(store),
		lookup:       lookup,
		cat:          cat,
		logger:       logger,
		botUsername:  botUsername,
		guildChannel: guildChannel,
		evWake:       make(chan struct{}, 1),
		evDone:       make(chan struct{}),
		wake:         make(chan struct{}, 1),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the event and lookup workers.
func (d *Dispatcher) Start() {
	go d.eventWorker()
	go d.worker()
}

// Stop signals the workers and waits for them to finish work in flight.
func (d *Dispatcher) Stop() {
	close(d.quit)
	<-d.evDone
	<-d.done
}

// HandleEvent queues chat events for the event worker. Registered as a
// line-channel subscriber, so it must return without touching the store.
func (d *Dispatcher) HandleEvent(ev protocol.Event) {
	if ev.Kind != protocol.KindChat {
		return
	}
	d.evMu.Lock()
	d.evQ = append(d.evQ, ev)
	d.evMu.Unlock()
	select {
	case d.evWake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) dequeueEvent() (protocol.Event, bool) {
	d.evMu.Lock()
	defer d.evMu.Unlock()
	if len(d.evQ) == 0 {
		return protocol.Event{}, false
	}
	ev := d.evQ[0]
	d.evQ = d.evQ[1:]
	return ev, true
}

func (d *Dispatcher) eventWorker() {
	defer close(d.evDone)
	for {
		ev, ok := d.dequeueEvent()
		if !ok {
			select {
			case <-d.evWake:
				continue
			case <-d.quit:
				return
			}
		}
		d.Dispatch(ev)
	}
}

// Dispatch processes one chat event as a potential command. Returns false
// when the event is not command-eligible: wrong channel, or sent by the bot
// itself. Unknown verbs are silently ignored so arbitrary chat is never
// echoed back as an error.
func (d *Dispatcher) Dispatch(ev protocol.Event) bool {
	if ev.Channel != d.guildChannel || ev.Sender == d.botUsername {
		return false
	}

	verb, args := shortcuts.SplitVerb(ev.Message)
	if verb == "" {
		return false
	}
	// Expanded args must not smuggle console commands.
	args = strings.ReplaceAll(args, "/", "")

	ctx := context.Background()
	resolved, err := d.resolver.Resolve(ctx, ev.Sender, verb, args, 0)
	switch {
	case errors.Is(err, shortcuts.ErrMaxRecursion):
		d.replyError(d.cat.MustRender("error.max_recursion", nil))
		return true
	case errors.Is(err, shortcuts.ErrDirectRecursion):
		d.replyError(d.cat.MustRender("error.direct_recursion", map[string]any{"Name": verb}))
		return true
	case err != nil:
		d.logger.Warn("shortcut resolution failed", zap.String("sender", ev.Sender), zap.Error(err))
		return false
	}

	d.logger.Info("command",
		zap.String("sender", ev.Sender),
		zap.String("verb", resolved.Verb),
		zap.String("args", resolved.Args))

	switch {
	case resolved.Verb == "shortcut":
		d.handleShortcut(ctx, ev.Sender, resolved.Args)
	case resolved.Verb == "list":
		d.handleList(ctx, ev.Sender, resolved.Args)
	case resolved.Verb == "usr":
		d.handleUsr(ctx, ev.Sender, resolved.Args)
	case resolved.Verb == "g":
		d.handleGuildInfo(ctx, ev.Sender, resolved.Args)
	case gamemodeVerbs[resolved.Verb]:
		d.handleGamemode(ctx, ev.Sender, resolved.Verb, resolved.Args)
	}
	return true
}

func (d *Dispatcher) replyError(reason string) {
	d.gate.Send(d.cat.MustRender("error.prefix", map[string]any{"Reason": reason}))
}

func (d *Dispatcher) handleShortcut(ctx context.Context, owner, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		d.replyError(d.cat.MustRender("error.missing_shortcut_args", nil))
		return
	}

	name, expansion := shortcuts.SplitVerb(args)
	if expansion != "" {
		if !protocol.ShortcutNameRE.MatchString(name) {
			d.gate.Send(d.cat.MustRender("error.invalid_shortcut_name", nil))
			return
		}
		if err := d.store.SaveShortcut(ctx, owner, name, expansion); err != nil {
			d.logger.Error("save shortcut failed", zap.String("owner", owner), zap.Error(err))
			return
		}
		d.gate.Send(d.cat.MustRender("shortcut.created", map[string]any{"Name": name, "Expansion": expansion}))
		return
	}

	removed, err := d.store.DeleteShortcut(ctx, owner, name)
	if err != nil {
		d.logger.Error("delete shortcut failed", zap.String("owner", owner), zap.Error(err))
		return
	}
	key := "shortcut.not_found"
	if removed {
		key = "shortcut.deleted"
	}
	d.gate.Send(d.cat.MustRender(key, map[string]any{"Name": name, "Owner": owner}))
}

func (d *Dispatcher) handleList(ctx context.Context, owner, args string) {
	if strings.TrimSpace(args) != "shortcut" {
		return
	}
	table, err := d.store.ListShortcuts(ctx, owner)
	if err != nil {
		d.logger.Error("list shortcuts failed", zap.String("owner", owner), zap.Error(err))
		return
	}
	if len(table) == 0 {
		d.gate.Send(d.cat.MustRender("shortcut.list_empty", map[string]any{"Owner": owner}))
		return
	}
	for name, expansion := range table {
		d.gate.Send(d.cat.MustRender("shortcut.list_entry", map[string]any{"Name": name, "Expansion": expansion}))
	}
}

func (d *Dispatcher) handleUsr(ctx context.Context, owner, args string) {
	args = strings.TrimSpace(args)
	switch {
	case strings.HasPrefix(args, "shortcut"):
		parts := strings.Fields(args)
		if len(parts) < 2 {
			d.replyError(d.cat.MustRender("error.invalid_usr_format", nil))
			return
		}
		canonical := parts[1]
		aliases := parts[2:]
		if !protocol.UsernameRE.MatchString(canonical) {
			d.replyError(d.cat.MustRender("error.invalid_username", nil))
			return
		}
		if len(aliases) == 0 {
			d.deleteAllAliases(ctx, owner, canonical)
			return
		}
		var invalid []string
		for _, a := range aliases {
			if !protocol.AliasRE.MatchString(a) {
				invalid = append(invalid, a)
			}
		}
		if len(invalid) > 0 {
			d.gate.Send(d.cat.MustRender("error.invalid_alias_format", map[string]any{"Aliases": strings.Join(invalid, ", ")}))
			return
		}
		if err := d.store.SaveAliases(ctx, owner, canonical, aliases); err != nil {
			d.logger.Error("save aliases failed", zap.String("owner", owner), zap.Error(err))
			return
		}
		d.gate.Send(d.cat.MustRender("alias.created", map[string]any{
			"Aliases":  strings.Join(aliases, ", "),
			"Username": canonical,
		}))

	case strings.HasPrefix(args, "delete"):
		parts := strings.Fields(args)
		if len(parts) < 2 {
			d.replyError(d.cat.MustRender("error.invalid_usr_delete", nil))
			return
		}
		removed, err := d.store.DeleteAlias(ctx, owner, parts[1])
		if err != nil {
			d.logger.Error("delete alias failed", zap.String("owner", owner), zap.Error(err))
			return
		}
		key := "alias.not_found"
		if removed {
			key = "alias.deleted"
		}
		d.gate.Send(d.cat.MustRender(key, map[string]any{"Alias": parts[1]}))

	case args == "list shortcut":
		table, err := d.store.ListAliases(ctx, owner)
		if err != nil {
			d.logger.Error("list aliases failed", zap.String("owner", owner), zap.Error(err))
			return
		}
		if len(table) == 0 {
			d.gate.Send(d.cat.MustRender("alias.list_empty", nil))
			return
		}
		for alias, canonical := range table {
			d.gate.Send(d.cat.MustRender("alias.list_entry", map[string]any{"Alias": alias, "Username": canonical}))
		}
	}
}

func (d *Dispatcher) deleteAllAliases(ctx context.Context, owner, canonical string) {
	removed, err := d.store.DeleteAliasesFor(ctx, owner, canonical)
	if err != nil {
		d.logger.Error("delete aliases failed", zap.String("owner", owner), zap.Error(err))
		return
	}
	key := "alias.none_for_user"
	if removed {
		key = "alias.deleted_all"
	}
	d.gate.Send(d.cat.MustRender(key, map[string]any{"Username": canonical}))
}

func (d *Dispatcher) handleGuildInfo(ctx context.Context, owner, args string) {
	usernames := extractUsernames(args, owner)
	for i, u := range usernames {
		usernames[i] = d.store.ResolveUsername(ctx, owner, u)
	}
	d.enqueue(lookupRequest{ID: uuid.NewString(), Kind: lookupGuild, Usernames: usernames})
}

func (d *Dispatcher) handleGamemode(ctx context.Context, owner, mode, args string) {
	components := strings.Fields(args)

	top := false
	kept := components[:0]
	for _, c := range components {
		if c == "top" {
			top = true
			continue
		}
		kept = append(kept, c)
	}
	components = kept

	subcategory := "all"
	if len(components) > 0 && stats.IsSubcategory(components[0]) {
		subcategory = components[0]
		components = components[1:]
	}

	var usernames []string
	for _, c := range components {
		if protocol.UsernameRE.MatchString(c) {
			usernames = append(usernames, c)
		}
	}
	if len(usernames) == 0 {
		usernames = []string{owner}
	}
	for i, u := range usernames {
		usernames[i] = d.store.ResolveUsername(ctx, owner, u)
	}

	d.enqueue(lookupRequest{
		ID:          uuid.NewString(),
		Kind:        lookupGamemode,
		Mode:        mode,
		Usernames:   usernames,
		Subcategory: subcategory,
		Top:         top,
	})
}

func extractUsernames(args, fallback string) []string {
	var usernames []string
	for _, c := range strings.Fields(args) {
		if protocol.UsernameRE.MatchString(c) {
			usernames = append(usernames, c)
		}
	}
	if len(usernames) == 0 {
		usernames = []string{fallback}
	}
	return usernames
}

func (d *Dispatcher) enqueue(req lookupRequest) {
	d.queueMu.Lock()
	d.queue = append(d.queue, req)
	d.queueMu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) dequeue() (lookupRequest, bool) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	if len(d.queue) == 0 {
		return lookupRequest{}, false
	}
	req := d.queue[0]
	d.queue = d.queue[1:]
	return req, true
}

// worker drains the lookup queue. Lookup failures are converted to "no
// result" at this boundary instead of propagating.
func (d *Dispatcher) worker() {
	defer close(d.done)
	for {
		req, ok := d.dequeue()
		if !ok {
			select {
			case <-d.wake:
				continue
			case <-d.quit:
				return
			}
		}
		d.process(req)
	}
}

func (d *Dispatcher) process(req lookupRequest) {
	ctx := context.Background()
	switch req.Kind {
	case lookupGuild:
		for _, u := range req.Usernames {
			res, err := d.lookup.GuildInfo(ctx, u)
			if err != nil {
				d.logger.Warn("guild info lookup failed",
					zap.String("request", req.ID), zap.String("username", u), zap.Error(err))
				continue
			}
			if res != "" {
				d.gate.Send(res)
			}
		}
	case lookupGamemode:
		if req.Top {
			d.processTop(ctx, req)
			return
		}
		for _, u := range req.Usernames {
			res, err := d.lookup.GamemodeStats(ctx, u, req.Mode, req.Subcategory)
			if err != nil {
				d.logger.Warn("stat lookup failed",
					zap.String("request", req.ID), zap.String("username", u), zap.Error(err))
				continue
			}
			if res != "" {
				d.gate.Send(res)
			}
		}
	}
}

// processTop issues one lookup per candidate and replies with the single
// highest value and its owner. Ties keep the first-seen user; users whose
// result cannot be parsed are silently excluded.
func (d *Dispatcher) processTop(ctx context.Context, req lookupRequest) {
	var (
		bestUser string
		bestVal  float64
		found    bool
	)
	for _, u := range req.Usernames {
		res, err := d.lookup.GamemodeStats(ctx, u, req.Mode, req.Subcategory)
		if err != nil || res == "" {
			if err != nil {
				d.logger.Warn("top stat lookup failed",
					zap.String("request", req.ID), zap.String("username", u), zap.Error(err))
			}
			continue
		}
		val, ok := extractStatValue(res, req.Subcategory)
		if !ok {
			continue
		}
		if !found || val > bestVal {
			bestUser = u
			bestVal = val
			found = true
		}
	}

	if !found {
		d.gate.Send(d.cat.MustRender("stats.top_empty", nil))
		return
	}
	d.gate.Send(d.cat.MustRender("stats.top_result", map[string]any{
		"Username":    bestUser,
		"Subcategory": capitalize(req.Subcategory),
		"Value":       formatStatValue(bestVal),
	}))
}

var levelValueRE = regexp.MustCompile(`\s(\d+(?:\.\d+)?)`)

func extractStatValue(result, subcategory string) (float64, bool) {
	var m []string
	if subcategory == "lvl" {
		m = levelValueRE.FindStringSubmatch(result)
	} else {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(subcategory) + `\s+(\d+(?:,\d+)*(?:\.\d+)?)`)
		if err != nil {
			return 0, false
		}
		m = re.FindStringSubmatch(result)
	}
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatStatValue(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%.2f", v)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
