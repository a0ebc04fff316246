package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

type playerStatsRequest struct {
	UserID string `json:"user_id"`
}

// rpcPlayerStats returns win/loss/draw counters for the payload's user, or the caller when omitted.
func (mh *matchHandler) rpcPlayerStats(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req playerStatsRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid stats payload", errCodeInvalidArgument)
		}
	}
	if req.UserID == "" {
		req.UserID, _ = ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	}
	if req.UserID == "" {
		return "", runtime.NewError("user_id is required", errCodeInvalidArgument)
	}

	stats, err := mh.results.PlayerStats(ctx, req.UserID)
	if err != nil {
		logger.Error("rpcPlayerStats: %v", err)
		return "", err
	}
	b, err := json.Marshal(map[string]interface{}{
		"user_id": stats.UserID,
		"wins":    stats.Wins,
		"losses":  stats.Losses,
		"draws":   stats.Draws,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
