package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/dorkfun/backend/internal/chain"
	"github.com/dorkfun/backend/internal/config"
	"github.com/dorkfun/backend/internal/match"
	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/modules"
	"github.com/dorkfun/backend/internal/ws"
)

// Error tags surfaced to clients (ERROR frames / HTTP 4xx bodies)
var (
	ErrMatchNotFound  = errors.New("match_not_found")
	ErrEmergencyMode  = errors.New("match_emergency_mode")
	ErrPlayerNotFound = errors.New("player_not_found")
	ErrChatTooLong    = errors.New("chat_too_long")
	ErrChatEmpty      = errors.New("chat_empty")
)

// LiveMatch is the authoritative in-memory match object. Every mutation
// happens under its lock; no lock is held across I/O except the (fast)
// canonical-encoding hash computation inside the orchestrator.
type LiveMatch struct {
	mu sync.Mutex

	ID         string
	GameID     string
	Players    []string
	StakeWei   *big.Int
	Status     string
	InviteCode string
	Seed       string

	Orc *match.Orchestrator // nil while a private match waits for its opponent

	DepositConfirmed map[string]bool
	Winner           string
	Reason           string
	SettlementTx     string

	CreatedAt    time.Time
	LastActivity time.Time
	CompletedAt  time.Time

	moveTimer    *time.Timer
	depositTimer *time.Timer
	turnGen      int // bumped each time the move clock is re-armed
}

// Staked reports whether this match requires deposits
func (lm *LiveMatch) Staked() bool {
	return lm.StakeWei != nil && lm.StakeWei.Sign() > 0
}

func (lm *LiveMatch) terminal() bool {
	return lm.Status == models.StatusCompleted || lm.Status == models.StatusSettled || lm.Status == models.StatusDisputed
}

// Broadcaster is the room-manager surface the service fans events out
// through. *ws.Hub satisfies it.
type Broadcaster interface {
	Broadcast(matchID string, frame *ws.Frame, exclude *ws.Client)
	BroadcastSpectators(matchID string, frame *ws.Frame)
	SendToPlayer(matchID, playerID string, frame *ws.Frame)
	CloseMatch(matchID string)
}

// Service owns the set of live matches and the mutex discipline required to
// touch them. It is the single entry point for all match mutation.
type Service struct {
	db       *sqlx.DB
	rdb      *redis.Client
	cfg      *config.Config
	registry *modules.Registry
	hub      Broadcaster
	chain    *chain.Client

	mu        sync.RWMutex
	matches   map[string]*LiveMatch
	byChainID map[[32]byte]string // matchIdBytes32 -> matchId (staked only)
	emergency bool

	joinLocks *keyedMutex
}

// NewService creates the Match Service. chainClient may be nil (unstaked
// deployments).
func NewService(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, registry *modules.Registry, hub Broadcaster, chainClient *chain.Client) *Service {
	return &Service{
		db:        db,
		rdb:       rdb,
		cfg:       cfg,
		registry:  registry,
		hub:       hub,
		chain:     chainClient,
		matches:   make(map[string]*LiveMatch),
		byChainID: make(map[[32]byte]string),
		joinLocks: newKeyedMutex(),
	}
}

// Registry exposes the module catalog for listings
func (s *Service) Registry() *modules.Registry {
	return s.registry
}

// Chain exposes the chain client for the config endpoints
func (s *Service) Chain() *chain.Client {
	return s.chain
}

func (s *Service) getMatch(matchID string) (*LiveMatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lm, ok := s.matches[matchID]
	return lm, ok
}

// LiveMatches returns a snapshot of live match summaries
func (s *Service) LiveMatches() []map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]map[string]interface{}, 0, len(s.matches))
	for _, lm := range s.matches {
		lm.mu.Lock()
		out = append(out, map[string]interface{}{
			"id":        lm.ID,
			"gameId":    lm.GameID,
			"players":   lm.Players,
			"status":    lm.Status,
			"stakeWei":  lm.StakeWei.String(),
			"createdAt": lm.CreatedAt.UnixMilli(),
		})
		lm.mu.Unlock()
	}
	return out
}

// generateToken generates a secure random hex token
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// createMatch instantiates the orchestrator, registers the live match, and
// mints one-time WS tokens for every player. Staked matches start WAITING
// behind the deposit gate; unstaked go ACTIVE immediately.
func (s *Service) createMatch(ctx context.Context, gameID string, players []string, stake *big.Int) (*LiveMatch, map[string]string, error) {
	if s.isEmergency() {
		return nil, nil, ErrEmergencyMode
	}

	module, err := s.registry.Get(gameID)
	if err != nil {
		return nil, nil, errors.New("match_not_found")
	}

	matchID := uuid.New().String()
	seed := generateToken(16)

	orc, err := match.New(matchID, module, players, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("internal: %w", err)
	}

	now := time.Now()
	lm := &LiveMatch{
		ID:               matchID,
		GameID:           gameID,
		Players:          append([]string(nil), players...),
		StakeWei:         stake,
		Seed:             seed,
		Orc:              orc,
		DepositConfirmed: make(map[string]bool),
		CreatedAt:        now,
		LastActivity:     now,
	}

	if lm.Staked() {
		lm.Status = models.StatusWaiting
		for _, p := range players {
			lm.DepositConfirmed[p] = false
		}
	} else {
		lm.Status = models.StatusActive
	}

	s.mu.Lock()
	s.matches[matchID] = lm
	if lm.Staked() {
		s.byChainID[chain.MatchIDBytes32(matchID)] = matchID
	}
	s.mu.Unlock()

	s.persistMatch(lm)

	if lm.Staked() {
		s.startDepositTimer(lm)
	} else {
		s.setActiveIndex(ctx, matchID, gameID, stake.String(), players)
		lm.mu.Lock()
		s.scheduleMoveTimer(lm, orc.CurrentPlayer())
		lm.mu.Unlock()
	}

	tokens := make(map[string]string, len(players))
	ttl := time.Duration(s.cfg.WSTokenTTLSeconds) * time.Second
	for _, p := range players {
		token, terr := ws.MintToken(ctx, s.rdb, matchID, p, ttl)
		if terr != nil {
			log.Printf("[MATCH] Failed to mint WS token for %s: %v", p, terr)
			continue
		}
		tokens[p] = token
	}

	log.Printf("[MATCH] Created %s game=%s stake=%s players=%v status=%s",
		matchID, gameID, stake.String(), players, lm.Status)
	return lm, tokens, nil
}

// activateLocked transitions a match to ACTIVE, broadcasts GAME_STATE, and
// arms the first mover's timeout. The status write and the active-match
// index go out in a goroutine so no I/O runs under the lock.
// Caller must hold lm.mu.
func (s *Service) activateLocked(lm *LiveMatch) {
	lm.Status = models.StatusActive
	lm.LastActivity = time.Now()
	if lm.depositTimer != nil {
		lm.depositTimer.Stop()
		lm.depositTimer = nil
	}

	for _, p := range lm.Players {
		s.hub.SendToPlayer(lm.ID, p, s.gameStateFrameLocked(lm, p))
	}
	s.hub.BroadcastSpectators(lm.ID, s.spectateFrameLocked(lm))

	s.scheduleMoveTimer(lm, lm.Orc.CurrentPlayer())

	matchID, gameID, stake := lm.ID, lm.GameID, lm.StakeWei.String()
	players := append([]string(nil), lm.Players...)
	go func() {
		s.updateMatchStatus(matchID, models.StatusActive)
		s.setActiveIndex(context.Background(), matchID, gameID, stake, players)
	}()
	log.Printf("[MATCH] %s is ACTIVE", lm.ID)
}

// gameStateFrameLocked builds a GAME_STATE frame for one player.
// Caller must hold lm.mu.
func (s *Service) gameStateFrameLocked(lm *LiveMatch, player string) *ws.Frame {
	payload := map[string]interface{}{
		"status":   lm.Status,
		"gameId":   lm.GameID,
		"players":  lm.Players,
		"stakeWei": lm.StakeWei.String(),
	}
	seq := 0
	root := ""
	if lm.Orc != nil {
		payload["observation"] = lm.Orc.Observation(player)
		payload["yourTurn"] = lm.Orc.CurrentPlayer() == player
		payload["legalActions"] = lm.Orc.LegalActions(player)
		seq = lm.Orc.MoveCount()
		root = lm.Orc.Root()
	}
	return ws.NewFrame(ws.TypeGameState, lm.ID, payload, seq, root)
}

// spectateFrameLocked builds the public SPECTATE_STATE view.
// Caller must hold lm.mu.
func (s *Service) spectateFrameLocked(lm *LiveMatch) *ws.Frame {
	payload := map[string]interface{}{
		"status":   lm.Status,
		"gameId":   lm.GameID,
		"players":  lm.Players,
		"stakeWei": lm.StakeWei.String(),
	}
	seq := 0
	root := ""
	if lm.Orc != nil {
		payload["observation"] = lm.Orc.Observation("")
		seq = lm.Orc.MoveCount()
		root = lm.Orc.Root()
	}
	return ws.NewFrame(ws.TypeSpectateState, lm.ID, payload, seq, root)
}

// ApplyAction validates and applies a move through the orchestrator, fans
// the step result out to the room, and completes the match when terminal.
// Fan-out happens under the lock (enqueue only); the database writes happen
// after it is released. Invoked by the session transport.
func (s *Service) ApplyAction(ctx context.Context, matchID, playerID string, action json.RawMessage) error {
	lm, ok := s.getMatch(matchID)
	if !ok {
		return ErrMatchNotFound
	}

	lm.mu.Lock()

	if lm.terminal() {
		lm.mu.Unlock()
		return match.ErrAlreadyOver
	}
	if lm.Status != models.StatusActive || lm.Orc == nil {
		lm.mu.Unlock()
		return errors.New("deposit_required")
	}

	result, err := lm.Orc.SubmitAction(playerID, action)
	if err != nil {
		lm.mu.Unlock()
		if errors.Is(err, match.ErrAlreadyOver) || errors.Is(err, match.ErrNotYourTurn) || errors.Is(err, match.ErrInvalidAction) {
			return err
		}
		log.Printf("[MATCH] Internal apply failure on %s: %v", matchID, err)
		return errors.New("internal")
	}

	lm.LastActivity = time.Now()

	// Per-player STEP_RESULT (observations can differ), public copy to spectators
	for _, p := range lm.Players {
		payload := map[string]interface{}{
			"player":      playerID,
			"action":      action,
			"observation": lm.Orc.Observation(p),
			"yourTurn":    lm.Orc.CurrentPlayer() == p,
			"terminal":    result.Terminal,
		}
		if result.Terminal {
			payload["outcome"] = result.Outcome
		}
		s.hub.SendToPlayer(lm.ID, p, ws.NewFrame(ws.TypeStepResult, lm.ID, payload, result.Entry.Sequence, lm.Orc.Root()))
	}
	s.hub.BroadcastSpectators(lm.ID, s.spectateFrameLocked(lm))

	var rec *completionRecord
	if result.Terminal {
		rec = s.completeLocked(lm, result.Outcome)
	} else {
		s.scheduleMoveTimer(lm, lm.Orc.CurrentPlayer())
	}
	lm.mu.Unlock()

	s.persistMove(matchID, result.Entry)
	s.persistOutcome(ctx, rec)
	return nil
}

// Forfeit terminates the match immediately; the other player wins. A forfeit
// after the match is over is a no-op, not an error.
func (s *Service) Forfeit(ctx context.Context, matchID, playerID string) error {
	return s.forceForfeit(ctx, matchID, playerID, "forfeit")
}

func (s *Service) forceForfeit(ctx context.Context, matchID, playerID, reason string) error {
	lm, ok := s.getMatch(matchID)
	if !ok {
		return ErrMatchNotFound
	}

	lm.mu.Lock()
	if lm.terminal() {
		lm.mu.Unlock()
		return nil
	}
	rec := s.forfeitLocked(lm, playerID, reason)
	lm.mu.Unlock()

	s.persistOutcome(ctx, rec)
	return nil
}

// forfeitLocked synthesizes the terminal outcome against playerID.
// Caller must hold lm.mu.
func (s *Service) forfeitLocked(lm *LiveMatch, playerID, reason string) *completionRecord {
	var winner string
	for _, p := range lm.Players {
		if p != playerID {
			winner = p
			break
		}
	}

	outcome := modules.Outcome{Winner: winner, Reason: reason}
	if lm.Orc != nil {
		lm.Orc.ForceOutcome(outcome)
	}
	log.Printf("[MATCH] %s forfeited by %s (reason=%s winner=%s)", lm.ID, playerID, reason, winner)
	return s.completeLocked(lm, outcome)
}

// SyncRequest returns the authoritative view, SYNC_RESPONSE first. If the
// client's turn assertion diverges, a full GAME_STATE follows in the same
// slice so the transport writes the frames in that order.
func (s *Service) SyncRequest(ctx context.Context, matchID, playerID string, clientIsMyTurn bool) ([]*ws.Frame, error) {
	lm, ok := s.getMatch(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	yourTurn := lm.Orc != nil && lm.Orc.CurrentPlayer() == playerID
	payload := map[string]interface{}{
		"status":   lm.Status,
		"yourTurn": yourTurn,
	}
	seq := 0
	root := ""
	if lm.Orc != nil {
		seq = lm.Orc.MoveCount()
		root = lm.Orc.Root()
	}

	frames := []*ws.Frame{ws.NewFrame(ws.TypeSyncResponse, matchID, payload, seq, root)}
	if yourTurn != clientIsMyTurn {
		// server view wins; the full observation follows the response
		frames = append(frames, s.gameStateFrameLocked(lm, playerID))
	}
	return frames, nil
}

const maxChatRunes = 500

// validateChat rejects empty lines and lines over the length cap, counted
// in runes so multibyte text gets the full budget
func validateChat(message string) error {
	if message == "" {
		return ErrChatEmpty
	}
	if utf8.RuneCountInString(message) > maxChatRunes {
		return ErrChatTooLong
	}
	return nil
}

// Chat validates, persists, and fans out a chat line
func (s *Service) Chat(ctx context.Context, matchID, playerID, message string) error {
	if err := validateChat(message); err != nil {
		return err
	}

	lm, ok := s.getMatch(matchID)
	if !ok {
		return ErrMatchNotFound
	}

	lm.mu.Lock()
	lm.LastActivity = time.Now()
	root := ""
	if lm.Orc != nil {
		root = lm.Orc.Root()
	}
	lm.mu.Unlock()

	s.persistChat(matchID, playerID, message)
	s.hub.Broadcast(matchID, ws.NewFrame(ws.TypeChat, matchID, map[string]string{
		"player":  playerID,
		"message": message,
	}, 0, root), nil)
	return nil
}

// completionRecord snapshots everything persistOutcome needs so no database
// or Redis call happens under the match lock
type completionRecord struct {
	matchID     string
	gameID      string
	players     []string
	stakeWei    string
	staked      bool
	outcome     modules.Outcome
	root        string
	completedAt time.Time
}

// completeLocked finishes a match in memory: terminal status, timers
// stopped, GAME_OVER broadcast. It returns the snapshot the caller must pass
// to persistOutcome once lm.mu is released, or nil when already terminal.
// Caller must hold lm.mu.
func (s *Service) completeLocked(lm *LiveMatch, outcome modules.Outcome) *completionRecord {
	if lm.terminal() {
		return nil
	}

	lm.Status = models.StatusCompleted
	lm.Winner = outcome.Winner
	lm.Reason = outcome.Reason
	lm.CompletedAt = time.Now()

	if lm.moveTimer != nil {
		lm.moveTimer.Stop()
		lm.moveTimer = nil
	}
	if lm.depositTimer != nil {
		lm.depositTimer.Stop()
		lm.depositTimer = nil
	}

	root := ""
	if lm.Orc != nil {
		root = lm.Orc.Root()
	}

	payload := map[string]interface{}{
		"winner": outcome.Winner,
		"draw":   outcome.Draw,
		"reason": outcome.Reason,
		"scores": outcome.Scores,
		"root":   root,
	}
	seq := 0
	if lm.Orc != nil {
		seq = lm.Orc.MoveCount()
	}
	s.hub.Broadcast(lm.ID, ws.NewFrame(ws.TypeGameOver, lm.ID, payload, seq, root), nil)

	log.Printf("[MATCH] %s completed winner=%q draw=%v reason=%s root=%s",
		lm.ID, outcome.Winner, outcome.Draw, outcome.Reason, root)

	return &completionRecord{
		matchID:     lm.ID,
		gameID:      lm.GameID,
		players:     append([]string(nil), lm.Players...),
		stakeWei:    lm.StakeWei.String(),
		staked:      lm.Staked(),
		outcome:     outcome,
		root:        root,
		completedAt: lm.CompletedAt,
	}
}

// persistOutcome flushes a finished match to the database and Redis and
// kicks off settlement. Must run with lm.mu released; nil is a no-op.
func (s *Service) persistOutcome(ctx context.Context, rec *completionRecord) {
	if rec == nil {
		return
	}
	s.persistCompletion(rec)
	s.applyRatings(rec)
	s.clearActiveIndex(ctx, rec.players)

	if rec.staked {
		go s.settleMatch(rec.matchID, rec.outcome, rec.root)
	}
}
