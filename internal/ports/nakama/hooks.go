package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/form3tech-oss/jwt-go"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

type openingGrant interface {
	GrantOnce(ctx context.Context, userID string, amount int64) (bool, error)
}

// afterAuthenticateDevice credits the opening balance to accounts created by this authentication.
func afterAuthenticateDevice(grant openingGrant, amount int64) func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, *api.Session, *api.AuthenticateDeviceRequest) error {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error {
		if !out.Created || amount <= 0 {
			return nil
		}
		userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if userID == "" {
			resolved, err := extractUserIDFromToken(out.Token)
			if err != nil {
				logger.Error("AfterAuthenticateDevice: Failed to extract user ID from token: %v", err)
				return err
			}
			userID = resolved
		}

		granted, err := grant.GrantOnce(ctx, userID, amount)
		if err != nil {
			logger.Error("AfterAuthenticateDevice: Opening balance failed for user %s: %v", userID, err)
			return err
		}
		if !granted {
			logger.Info("AfterAuthenticateDevice: Opening balance already granted for user %s", userID)
			return nil
		}
		logger.Info("AfterAuthenticateDevice: Granted %d coins to new user %s", amount, userID)
		return nil
	}
}

// extractUserIDFromToken reads the uid claim of a session token Nakama has just issued.
func extractUserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("invalid token format: %w", err)
	}
	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return "", fmt.Errorf("token claims missing uid")
	}
	return uid, nil
}
