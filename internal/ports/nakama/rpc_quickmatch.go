package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"durak/internal/domain"
)

const (
	quickMatchListLimit = 10
	// errCodeInvalidArgument is the gRPC INVALID_ARGUMENT status Nakama forwards to the client.
	errCodeInvalidArgument = 3
)

// QuickMatchRequest is the optional RPC payload.
type QuickMatchRequest struct {
	Tier string `json:"tier"`
}

// QuickMatchResponse is the payload returned to clients when requesting a waiting room.
type QuickMatchResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
	Tier    string `json:"tier"`
}

// matchFinder is the part of runtime.NakamaModule quick match needs.
type matchFinder interface {
	MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize, maxSize *int, query string) ([]*api.Match, error)
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
}

// quickMatchQuery selects waiting durak matches of one tier that still have a free seat.
func quickMatchQuery(tier string) string {
	return fmt.Sprintf("+label.game:%s +label.phase:%s +label.tier:%s +label.open:>=1", gameLabel, domain.PhaseWaiting, tier)
}

func (mh *matchHandler) rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return mh.quickMatch(ctx, logger, nk, payload)
}

func (mh *matchHandler) quickMatch(ctx context.Context, logger runtime.Logger, nk matchFinder, payload string) (string, error) {
	var req QuickMatchRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid quick match payload", errCodeInvalidArgument)
		}
	}
	tier := req.Tier
	if tier == "" {
		tier = mh.games.DefaultTier
	}
	if !mh.games.HasTier(tier) {
		return "", runtime.NewError(fmt.Sprintf("unknown tier %q", tier), errCodeInvalidArgument)
	}

	minSize := 0
	maxSize := mh.games.MaxPlayers - 1
	matches, err := nk.MatchList(ctx, quickMatchListLimit, true, "", &minSize, &maxSize, quickMatchQuery(tier))
	if err != nil {
		logger.Error("MatchList error: %v", err)
		return "", err
	}

	resp := QuickMatchResponse{Tier: tier}
	if len(matches) > 0 {
		resp.MatchID = matches[0].MatchId
	} else {
		// Seats are claimed in MatchJoin.
		matchID, err := nk.MatchCreate(ctx, MatchNameDurak, map[string]interface{}{"tier": tier})
		if err != nil {
			logger.Error("MatchCreate error: %v", err)
			return "", err
		}
		resp.MatchID = matchID
		resp.IsNew = true
	}

	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
