/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Picturebox picture guessing game
//
// Two teams, blue and red, take turns opening a numbered card, looking at the
// hidden picture and typing what they think it shows.
//
// Features:
//   - Every game lives at /path/:gameid; visiting /path creates a new one
//   - Any number of browser tabs can show the same game over a WebSocket
//     (e.g. a laptop driving the board and a TV mirroring it)
//   - Guess results are shown to everyone before they are scored
//   - Game state survives restarts through the configured store
//   - Changing the image directory starts every game over with the new cards
//   - Idle games are unloaded after a configurable timeout
//   - In-browser QR button to open the current game elsewhere, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/picturebox/games/pictures"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/afero"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var validGameID = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "start", "reset", "open", "close", "guess", "reveal", "finish"
	Card  int    `json:"card,omitempty"`  // open / guess / reveal
	Guess string `json:"guess,omitempty"` // guess
}

// CardView is the public view of a card. Answers stay hidden until the card
// is solved or revealed.
type CardView struct {
	ID        int             `json:"id"`
	IsSolved  bool            `json:"isSolved"`
	SolvedBy  pictures.Team   `json:"solvedBy,omitempty"`
	FailedBy  []pictures.Team `json:"failedBy"`
	Exhausted bool            `json:"exhausted"`
	Pending   bool            `json:"pending"`
	Answer    string          `json:"answer,omitempty"`
	Image     string          `json:"image"`
}

// GameStateMessage is broadcast after every change.
type GameStateMessage struct {
	Type       string        `json:"type"` // "game_state"
	IsStarted  bool          `json:"isStarted"`
	IsFinished bool          `json:"isFinished"`
	ActiveTeam pictures.Team `json:"activeTeam"`
	BlueScore  int           `json:"blueScore"`
	RedScore   int           `json:"redScore"`
	OpenCardID *int          `json:"openCardId,omitempty"`
	Cards      []CardView    `json:"cards"`
	Complete   bool          `json:"complete"`
	Winner     string        `json:"winner,omitempty"` // "blue", "red" or "tie" once finished
}

// GuessResultMessage announces a guess before it is scored.
type GuessResultMessage struct {
	Type    string        `json:"type"` // "guess_result"
	Card    int           `json:"card"`
	Team    pictures.Team `json:"team"`
	Correct bool          `json:"correct"`
	Answer  string        `json:"answer,omitempty"` // only when correct
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type command struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id       string
	base     string
	cfg      *Config
	game     *pictures.Manager
	deferred *pictures.Deferrer

	// pending is the guess waiting out the feedback delay. While it is set
	// every card command is ignored.
	pending pictures.DeferredKey

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan command
	quit     chan struct{}
	once     sync.Once

	mu sync.RWMutex

	lastActive time.Time
}

func newHub(cfg *Config, id, base string, game *pictures.Manager) *Hub {
	return &Hub{
		id:         id,
		base:       base,
		cfg:        cfg,
		game:       game,
		deferred:   pictures.NewDeferrer(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		quit:       make(chan struct{}),
		lastActive: time.Now(),
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true

			select {
			case c.send <- h.stateLocked():
			default:
			}
			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case cmd := <-h.commands:
			h.handleCommand(cmd.msg)
		}
	}
}

// handleCommand applies one client command. Commands that make no sense in
// the current state are dropped.
func (h *Hub) handleCommand(msg ClientMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	s, epoch := h.game.Snapshot()
	playing := s.IsStarted && !s.IsFinished && !h.busyLocked(epoch)

	switch msg.Type {
	case "start":
		h.applyLocked(epoch, pictures.Start())

	case "reset":
		h.deferred.CancelEpoch(epoch)
		h.pending = pictures.DeferredKey{}
		if _, err := h.game.Reset(context.Background()); err != nil {
			errorf("GAMES: Reset of %s: %v", h.id, err)
		}
		logf(h.cfg, "GAMES: Reset %s", h.id)
		h.broadcastLocked(h.stateLocked())

	case "open":
		if playing {
			h.applyLocked(epoch, pictures.OpenCard(msg.Card))
		}

	case "close":
		if playing && s.OpenCardID != nil {
			h.applyLocked(epoch, pictures.CloseCard())
		}

	case "guess":
		if playing {
			h.guessLocked(s, epoch, msg)
		}

	case "reveal":
		if playing && s.OpenCardID != nil && *s.OpenCardID == msg.Card {
			h.applyLocked(epoch, pictures.RevealAndClose(msg.Card))
		}

	case "finish":
		if s.IsStarted && s.Complete() && !s.IsFinished {
			h.deferred.Cancel(pictures.DeferredKey{Epoch: epoch, Card: pictures.FinishCard})
			h.applyLocked(epoch, pictures.Finish())
		}
	}
}

// busyLocked reports whether a guess in epoch is still waiting to be scored.
func (h *Hub) busyLocked(epoch string) bool {
	return h.pending.Card != 0 && h.pending.Epoch == epoch
}

// guessLocked announces the result of a guess and schedules the matching
// score change after the feedback delay.
func (h *Hub) guessLocked(s pictures.Session, epoch string, msg ClientMessage) {
	if s.OpenCardID == nil || *s.OpenCardID != msg.Card || strings.TrimSpace(msg.Guess) == "" {
		return
	}

	card, ok := s.Card(msg.Card)
	if !ok || card.IsSolved || card.Exhausted() {
		return
	}

	key := pictures.DeferredKey{Epoch: epoch, Card: card.ID}
	correct := pictures.MatchAnswer(msg.Guess, card.Answer)

	result := GuessResultMessage{
		Type:    "guess_result",
		Card:    card.ID,
		Team:    s.ActiveTeam,
		Correct: correct,
	}
	cmd := pictures.SubmitWrong(card.ID)
	if correct {
		result.Answer = card.Answer
		cmd = pictures.SubmitCorrect(card.ID)
	}
	cmd = pictures.AsTeam(s.ActiveTeam, cmd)

	logf(h.cfg, "GAMES: Team %s guessed %q for card %d in %s (correct: %t)", s.ActiveTeam, msg.Guess, card.ID, h.id, correct)

	h.broadcastLocked(result)

	h.pending = key
	if !h.deferLocked(key, h.cfg.feedbackDelay, func() {
		h.commitLocked(key, cmd)
	}) {
		h.pending = pictures.DeferredKey{}
	}

	// Show the card as pending until the commit lands.
	h.broadcastLocked(h.stateLocked())
}

// commitLocked scores the guess behind key and releases the board.
func (h *Hub) commitLocked(key pictures.DeferredKey, cmd pictures.Command) {
	if h.pending == key {
		h.pending = pictures.DeferredKey{}
	}

	h.applyLocked(key.Epoch, cmd)
}

// deferLocked runs fn after delay with h.mu held, unless the key already
// has an action pending.
func (h *Hub) deferLocked(key pictures.DeferredKey, delay time.Duration, fn func()) bool {
	if delay <= 0 {
		if h.deferred.Pending(key) {
			return false
		}
		fn()
		return true
	}

	return h.deferred.Schedule(key, delay, func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		fn()
	})
}

// applyLocked runs cmd, broadcasts the result and arranges the automatic
// finish once every card is solved.
func (h *Hub) applyLocked(epoch string, cmd pictures.Command) {
	s, err := h.game.Apply(context.Background(), epoch, cmd)
	switch {
	case errors.Is(err, pictures.ErrStaleEpoch):
		return
	case errors.Is(err, pictures.ErrUnknownCard),
		errors.Is(err, pictures.ErrCardSolved),
		errors.Is(err, pictures.ErrCardExhausted),
		errors.Is(err, pictures.ErrCardNotExhausted),
		errors.Is(err, pictures.ErrNotTurn):
		logf(h.cfg, "GAMES: Ignored command in %s: %v", h.id, err)
		return
	case err != nil:
		errorf("GAMES: %s: %v", h.id, err)
	}

	if s.IsStarted && s.Complete() && !s.IsFinished {
		h.deferLocked(pictures.DeferredKey{Epoch: epoch, Card: pictures.FinishCard}, h.cfg.finishDelay, func() {
			h.applyLocked(epoch, pictures.Finish())
		})
	}

	if s.IsFinished {
		logf(h.cfg, "GAMES: Finished %s (blue %d, red %d)", h.id, s.BlueScore, s.RedScore)
	}

	h.broadcastLocked(h.stateLocked())
}

// replace swaps in a new dataset, discarding the game if its cards changed.
func (h *Hub) replace(d pictures.Dataset) {
	h.mu.Lock()
	defer h.mu.Unlock()

	old := h.game.Epoch()
	replaced, err := h.game.Replace(context.Background(), d)
	if err != nil {
		errorf("GAMES: Replacing dataset of %s: %v", h.id, err)
	}
	if !replaced {
		return
	}

	h.deferred.CancelEpoch(old)
	h.pending = pictures.DeferredKey{}
	logf(h.cfg, "GAMES: Images changed, restarted %s", h.id)
	h.broadcastLocked(h.stateLocked())
}

func (h *Hub) stateLocked() GameStateMessage {
	s, epoch := h.game.Snapshot()

	cards := make([]CardView, 0, len(s.Cards))
	for _, c := range s.Cards {
		view := CardView{
			ID:        c.ID,
			IsSolved:  c.IsSolved,
			SolvedBy:  c.SolvedBy,
			FailedBy:  c.FailedBy,
			Exhausted: c.Exhausted(),
			Pending:   h.pending == pictures.DeferredKey{Epoch: epoch, Card: c.ID},
			Image:     h.base + "/" + h.id + "/cards/" + strconv.Itoa(c.ID) + "/image",
		}
		if c.IsSolved {
			view.Answer = c.Answer
		}
		cards = append(cards, view)
	}

	msg := GameStateMessage{
		Type:       "game_state",
		IsStarted:  s.IsStarted,
		IsFinished: s.IsFinished,
		ActiveTeam: s.ActiveTeam,
		BlueScore:  s.BlueScore,
		RedScore:   s.RedScore,
		OpenCardID: s.OpenCardID,
		Cards:      cards,
		Complete:   s.Complete(),
	}

	if s.IsFinished {
		msg.Winner = string(s.Winner())
		if msg.Winner == "" {
			msg.Winner = "tie"
		}
	}

	return msg
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// closeAll disconnects all clients of this hub and stops its timers (used by reaper).
func (h *Hub) closeAll() {
	h.once.Do(func() {
		close(h.quit)
	})

	h.deferred.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	cfg         *Config
	base        string
	fs          afero.Fs
	store       pictures.Store
	dataset     pictures.Dataset
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newGameManager(cfg *Config, base string, fs afero.Fs, store pictures.Store, dataset pictures.Dataset) *GameManager {
	return &GameManager{
		cfg:         cfg,
		base:        base,
		fs:          fs,
		store:       store,
		dataset:     dataset,
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
	}
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	game, outcome := pictures.NewManager(context.Background(), gameID, gm.dataset, gm.store,
		pictures.WithLogger(gameLogger(gm.cfg)))
	logf(gm.cfg, "GAMES: Loaded %s (%s)", gameID, outcome)

	hub := newHub(gm.cfg, gameID, gm.base, game)
	gm.hubs[gameID] = hub
	go hub.run()
	return hub
}

// setDataset is called when the image directory changes.
func (gm *GameManager) setDataset(d pictures.Dataset) {
	gm.mu.Lock()
	gm.dataset = d
	hubs := make([]*Hub, 0, len(gm.hubs))
	for _, hub := range gm.hubs {
		hubs = append(hubs, hub)
	}
	gm.mu.Unlock()

	for _, hub := range hubs {
		hub.replace(d)
	}
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with loaded games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < 8 {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if b <= max && len(out) < 8 {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
		}

		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			gm.closeAll()
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		idle := len(hub.clients) == 0
		hub.mu.RUnlock()

		if idle && last.Before(cutoff) {
			delete(gm.hubs, id)
			logf(gm.cfg, "GAMES: Unloaded idle game %s", id)
			go hub.closeAll()
		}
	}
}

func (gm *GameManager) closeAll() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.closeAll()
	}
}

// gameHub resolves :gameid, answering 404 for malformed ids.
func (gm *GameManager) gameHub(w http.ResponseWriter, r *http.Request, ps httprouter.Params) *Hub {
	gameID := ps.ByName("gameid")
	if !validGameID.MatchString(gameID) {
		http.NotFound(w, r)
		return nil
	}

	return gm.getHub(gameID)
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub := gm.gameHub(w, r, ps)
		if hub == nil {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Upgrade error: %v", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: %s connected to %s", realIP(r), hub.id)

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start", "reset", "open", "close", "guess", "reveal", "finish":
			select {
			case h.commands <- command{client: c, msg: msg}:
			case <-h.quit:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveState returns the public game state as JSON.
func serveState(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub := gm.gameHub(w, r, ps)
		if hub == nil {
			return
		}

		hub.mu.RLock()
		state := hub.stateLocked()
		hub.mu.RUnlock()

		data, err := json.Marshal(state)
		if err != nil {
			errs <- err
			http.Error(w, "state unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// serveCardImage streams the image behind a card. Filenames give the answer
// away, so images are only addressed by card id.
func serveCardImage(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		hub := gm.gameHub(w, r, ps)
		if hub == nil {
			return
		}

		id, err := strconv.Atoi(ps.ByName("card"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		s, _ := hub.game.Snapshot()
		card, ok := s.Card(id)
		if !ok {
			http.NotFound(w, r)
			return
		}

		data, contentType, err := readImage(gm.fs, cfg.images, card.ImageRef)
		if err != nil {
			logf(cfg, "GAMES: Image for card %d in %s unavailable: %v", id, hub.id, err)
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err
			return
		}

		logf(cfg, "SERVE: Card %d of %s (%s) to %s in %s",
			id,
			hub.id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID.MatchString(ps.ByName("gameid")) {
			http.NotFound(w, r)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")
		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID.MatchString(ps.ByName("gameid")) {
			http.NotFound(w, r)
			return
		}

		data, err := assets.ReadFile("assets/picture/index.html")
		if err != nil {
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)
		_, _ = w.Write(data)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerPictureGame sets up routes so that:
//   - $path                         → redirects to new random game (8-char ID)
//   - $path/:gameid                 → HTML client
//   - $path/:gameid/ws              → WebSocket for that game
//   - $path/:gameid/state           → JSON snapshot of that game
//   - $path/:gameid/qr              → PNG QR code for that game URL
//   - $path/:gameid/cards/:card/image → image behind a card
func registerPictureGame(cfg *Config, path string, mux *httprouter.Router, gm *GameManager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/state", serveState(cfg, gm, errs))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/cards/:card/image", serveCardImage(cfg, gm, errs))
}
