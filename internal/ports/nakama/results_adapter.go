package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"durak/internal/ports"
)

const (
	resultsCollection = "durak_results"
	statsKey          = "stats"
	matchesCollection = "durak_matches"
	// recordAttempts bounds retries when another match updates the same stats object concurrently.
	recordAttempts = 3
)

type storedStats struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// NakamaResultsAdapter implements ports.ResultsPort on Nakama storage. Each human has a stats
// object; each match is a system-owned object keyed by room id so a result is recorded once.
// Bots have no Nakama account and get no stats object.
type NakamaResultsAdapter struct {
	nk storageModule
}

// NewNakamaResultsAdapter creates a results adapter.
func NewNakamaResultsAdapter(nk storageModule) *NakamaResultsAdapter {
	return &NakamaResultsAdapter{nk: nk}
}

// RecordMatch stores rec and bumps every human's counters in one storage update.
func (a *NakamaResultsAdapter) RecordMatch(ctx context.Context, rec ports.MatchRecord) error {
	matchValue, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal match record: %w", err)
	}

	var humans []string
	for _, id := range rec.Players {
		if !slices.Contains(rec.Bots, id) {
			humans = append(humans, id)
		}
	}

	for attempt := 1; ; attempt++ {
		err = a.recordOnce(ctx, rec, string(matchValue), humans)
		if !errors.Is(err, runtime.ErrStorageRejectedVersion) || attempt == recordAttempts {
			return err
		}
	}
}

func (a *NakamaResultsAdapter) recordOnce(ctx context.Context, rec ports.MatchRecord, matchValue string, humans []string) error {
	reads := []*runtime.StorageRead{{Collection: matchesCollection, Key: rec.RoomID}}
	for _, id := range humans {
		reads = append(reads, &runtime.StorageRead{Collection: resultsCollection, Key: statsKey, UserID: id})
	}
	objects, err := a.nk.StorageRead(ctx, reads)
	if err != nil {
		return fmt.Errorf("failed to read results: %w", err)
	}

	current := make(map[string]*api.StorageObject, len(objects))
	for _, obj := range objects {
		if obj.Collection == matchesCollection {
			return fmt.Errorf("%w: %s", ports.ErrDuplicateMatch, rec.RoomID)
		}
		current[obj.UserId] = obj
	}

	writes := []*runtime.StorageWrite{{
		Collection:      matchesCollection,
		Key:             rec.RoomID,
		Value:           matchValue,
		Version:         "*",
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}}
	for _, id := range humans {
		var stats storedStats
		version := "*"
		if obj, ok := current[id]; ok {
			if err := json.Unmarshal([]byte(obj.Value), &stats); err != nil {
				return fmt.Errorf("failed to unmarshal stats for %s: %w", id, err)
			}
			version = obj.Version
		}
		switch {
		case rec.Draw:
			stats.Draws++
		case slices.Contains(rec.Winners, id):
			stats.Wins++
		default:
			stats.Losses++
		}
		value, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats for %s: %w", id, err)
		}
		writes = append(writes, &runtime.StorageWrite{
			Collection:      resultsCollection,
			Key:             statsKey,
			UserID:          id,
			Value:           string(value),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}

	if _, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return err
		}
		return fmt.Errorf("failed to record match %s: %w", rec.RoomID, err)
	}
	return nil
}

// PlayerStats returns the stored counters for userID, zero when none exist.
func (a *NakamaResultsAdapter) PlayerStats(ctx context.Context, userID string) (ports.PlayerStats, error) {
	out := ports.PlayerStats{UserID: userID}
	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{{Collection: resultsCollection, Key: statsKey, UserID: userID}})
	if err != nil {
		return out, fmt.Errorf("failed to read stats: %w", err)
	}
	if len(objects) == 0 {
		return out, nil
	}
	var stats storedStats
	if err := json.Unmarshal([]byte(objects[0].Value), &stats); err != nil {
		return out, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	out.Wins, out.Losses, out.Draws = stats.Wins, stats.Losses, stats.Draws
	return out, nil
}

var _ ports.ResultsPort = (*NakamaResultsAdapter)(nil)
