package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/dorkfun/backend/internal/auth"
	"github.com/dorkfun/backend/internal/chain"
	"github.com/dorkfun/backend/internal/config"
	"github.com/dorkfun/backend/internal/game"
)

// signedRequest is the auth envelope on every player-scoped mutation: the
// caller proves address ownership with a fresh EIP-191 signature
type signedRequest struct {
	PlayerID  string `json:"playerId"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// verifySigned recovers and returns the canonical signer address, writing
// the error response itself on failure
func verifySigned(c *gin.Context, cfg *config.Config, req signedRequest) (string, bool) {
	window := time.Duration(cfg.AuthWindowMinutes) * time.Minute
	player, err := auth.VerifyPlayer(req.PlayerID, req.Signature, req.Timestamp, window)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return "", false
	}
	return player, true
}

// respondError maps service error tags onto HTTP statuses. Anything that
// is not a client-facing tag collapses to a bare 500.
func respondError(c *gin.Context, err error) {
	code := err.Error()
	status := http.StatusBadRequest
	switch {
	case strings.Contains(code, ": "):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	case strings.HasPrefix(code, "auth_"):
		status = http.StatusUnauthorized
	case code == "match_not_found" || code == "player_not_found" ||
		code == "invite_not_found" || code == "queue_ticket_not_found":
		status = http.StatusNotFound
	case code == "match_emergency_mode" || code == "queue_staking_unavailable":
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": code})
}

// HealthCheck reports liveness of the process and its backing stores, plus
// the emergency flag
func HealthCheck(db *sqlx.DB, rdb *redis.Client, svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			status = "degraded"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"emergency": svc.EmergencyStatus()["emergency"],
		})
	}
}

// ListGames returns the registered module catalog
func ListGames(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"games": svc.Registry().List()})
	}
}

// ListQueues returns the live matchmaking queue depths
func ListQueues(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		queues, err := svc.QueueSnapshot(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"queues": queues})
	}
}

// ListMatches returns all live matches
func ListMatches(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"matches": svc.LiveMatches()})
	}
}

// GetMatch returns one match, live or archived
func GetMatch(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := svc.MatchDetail(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// GetMatchMoves returns a match's full transcript
func GetMatchMoves(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		moves, err := svc.MatchMoves(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"moves": moves})
	}
}

// CheckActiveMatch tells a returning client which live match to rejoin
func CheckActiveMatch(svc *game.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		player, ok := verifySigned(c, cfg, req)
		if !ok {
			return
		}

		entry, active := svc.CheckActiveMatch(c.Request.Context(), player)
		if !active {
			c.JSON(http.StatusOK, gin.H{"active": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"active": true, "match": entry})
	}
}

// ListArchive pages finished matches with optional game/player filters
func ListArchive(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		player := c.Query("player")
		if player != "" {
			canonical, err := auth.CanonicalAddress(player)
			if err != nil {
				respondError(c, err)
				return
			}
			player = canonical
		}

		matches, err := svc.ListArchive(c.Request.Context(), c.Query("gameId"), player, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

// Leaderboard returns a rating page, overall or per-game
func Leaderboard(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		gameID := c.Param("gameId")
		if gameID == "" {
			gameID = c.Query("gameId")
		}
		rows, err := svc.Leaderboard(c.Request.Context(), gameID, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
	}
}

// GetPlayer returns one player's profile and per-game records
func GetPlayer(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		address, err := auth.CanonicalAddress(c.Param("address"))
		if err != nil {
			respondError(c, err)
			return
		}
		profile, err := svc.PlayerProfile(c.Request.Context(), address)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// MinimumStake exposes the escrow's minimum stake for client-side validation
func MinimumStake(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		chainClient := svc.Chain()
		if chainClient == nil {
			c.JSON(http.StatusOK, gin.H{"stakingEnabled": false, "minimumStakeWei": "0"})
			return
		}
		min, err := chainClient.MinimumStake(c.Request.Context())
		if err != nil {
			respondError(c, game.ErrStakingUnavailable)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"stakingEnabled":  true,
			"minimumStakeWei": min.String(),
			"escrowAddress":   chainClient.EscrowAddress(),
		})
	}
}

// ResolveENS reverse-resolves a batch of addresses to ENS names
func ResolveENS(ens *chain.ENSResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Addresses []string `json:"addresses"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Addresses) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "addresses required"})
			return
		}
		if len(req.Addresses) > 50 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at most 50 addresses per batch"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"names": ens.ResolveBatch(c.Request.Context(), req.Addresses)})
	}
}

// JoinQueue is the matchmaking poll endpoint
func JoinQueue(svc *game.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			signedRequest
			GameID string `json:"gameId"`
			Stake  string `json:"stake"`
			Ticket string `json:"ticket"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		player, ok := verifySigned(c, cfg, req.signedRequest)
		if !ok {
			return
		}

		result, err := svc.JoinQueue(c.Request.Context(), player, req.GameID, req.Stake, req.Ticket)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// LeaveQueue abandons a matchmaking ticket. The ticket itself is the
// bearer credential; no signature needed.
func LeaveQueue(svc *game.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Ticket string `json:"ticket"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Ticket == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}

		if err := svc.LeaveQueue(c.Request.Context(), req.Ticket); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"left": true})
	}
}

// CreatePrivateMatch opens an invite-only match
func CreatePrivateMatch(svc *game.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			signedRequest
			GameID string `json:"gameId"`
			Stake  string `json:"stake"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		player, ok := verifySigned(c, cfg, req.signedRequest)
		if !ok {
			return
		}

		result, err := svc.CreatePrivateMatch(c.Request.Context(), player, req.GameID, req.Stake)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// AcceptPrivateMatch fills an invite-only match by code
func AcceptPrivateMatch(svc *game.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			signedRequest
			InviteCode string `json:"inviteCode"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.InviteCode == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		player, ok := verifySigned(c, cfg, req.signedRequest)
		if !ok {
			return
		}

		result, err := svc.AcceptPrivateMatch(c.Request.Context(), player, strings.ToUpper(req.InviteCode))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
