package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/dorkfun/backend/internal/chain"
	"github.com/dorkfun/backend/internal/config"
	"github.com/dorkfun/backend/internal/game"
	"github.com/dorkfun/backend/internal/ws"
)

// SetupRoutes wires every HTTP and WebSocket endpoint
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, svc *game.Service, ens *chain.ENSResolver, cfg *config.Config) {
	router.GET("/health/check", HealthCheck(db, rdb, svc))

	api := router.Group("/api")
	{
		// Catalog and public reads
		api.GET("/games", ListGames(svc))
		api.GET("/queues", ListQueues(svc))
		api.GET("/matches", ListMatches(svc))
		api.GET("/matches/:id", GetMatch(svc))
		api.GET("/matches/:id/moves", GetMatchMoves(svc))
		api.GET("/archive", ListArchive(svc))
		api.GET("/leaderboard", Leaderboard(svc))
		api.GET("/leaderboard/:gameId", Leaderboard(svc))
		api.GET("/players/:address", GetPlayer(svc))
		api.GET("/config/minimum-stake", MinimumStake(svc))
		api.POST("/ens/resolve", ResolveENS(ens))

		// Player-signed operations
		api.POST("/matchmaking/join", JoinQueue(svc, cfg))
		api.POST("/matchmaking/leave", LeaveQueue(svc, cfg))
		api.POST("/matches/private", CreatePrivateMatch(svc, cfg))
		api.POST("/matches/accept", AcceptPrivateMatch(svc, cfg))
		api.POST("/matches/active", CheckActiveMatch(svc, cfg))

		// Admin surface
		admin := api.Group("/admin")
		{
			admin.POST("/login", AdminLogin(cfg))

			authed := admin.Group("", AdminAuth(cfg))
			{
				authed.GET("/emergency-status", AdminStatus(svc))
				authed.POST("/emergency-draw-all", AdminEmergency(svc))
				authed.POST("/emergency-resume", AdminResume(svc))
			}
		}
	}

	// Session transport
	router.GET("/ws/game/:matchId", ws.HandleGameWebSocket)
	router.GET("/ws/spectate/:matchId", ws.HandleSpectateWebSocket)
}
