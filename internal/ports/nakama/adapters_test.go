package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"durak/internal/ports"
)

// fakeNakama implements the wallet, storage and match listing slices of runtime.NakamaModule.
type fakeNakama struct {
	wallets  map[string]map[string]int64
	objects  map[string]*api.StorageObject
	version  int
	rejectN  int // MultiUpdate calls to fail with a version conflict
	matches  []*api.Match
	created  []map[string]interface{}
	lastList string
	ledger   []map[string]interface{}
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{
		wallets: make(map[string]map[string]int64),
		objects: make(map[string]*api.StorageObject),
	}
}

func objectID(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (f *fakeNakama) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	if userID == "missing" {
		return nil, errors.New("account not found")
	}
	wallet, err := json.Marshal(f.wallets[userID])
	if err != nil {
		return nil, err
	}
	return &api.Account{Wallet: string(wallet)}, nil
}

func (f *fakeNakama) WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error) {
	if f.wallets[userID] == nil {
		f.wallets[userID] = make(map[string]int64)
	}
	prev := make(map[string]int64)
	for k, v := range f.wallets[userID] {
		prev[k] = v
	}
	for k, v := range changeset {
		f.wallets[userID][k] += v
	}
	if updateLedger {
		f.ledger = append(f.ledger, metadata)
	}
	return f.wallets[userID], prev, nil
}

func (f *fakeNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	var out []*api.StorageObject
	for _, r := range reads {
		if obj, ok := f.objects[objectID(r.Collection, r.Key, r.UserID)]; ok {
			out = append(out, proto.Clone(obj).(*api.StorageObject))
		}
	}
	return out, nil
}

func (f *fakeNakama) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	if f.rejectN > 0 {
		f.rejectN--
		return nil, nil, runtime.ErrStorageRejectedVersion
	}
	for _, w := range storageWrites {
		existing, ok := f.objects[objectID(w.Collection, w.Key, w.UserID)]
		switch {
		case w.Version == "*" && ok:
			return nil, nil, runtime.ErrStorageRejectedVersion
		case w.Version != "" && w.Version != "*" && (!ok || existing.Version != w.Version):
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}
	var acks []*api.StorageObjectAck
	for _, w := range storageWrites {
		f.version++
		obj := &api.StorageObject{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Value:      w.Value,
			Version:    fmt.Sprint(f.version),
		}
		f.objects[objectID(w.Collection, w.Key, w.UserID)] = obj
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, Version: obj.Version, UserId: w.UserID})
	}
	for _, u := range walletUpdates {
		if _, _, err := f.WalletUpdate(ctx, u.UserID, u.Changeset, u.Metadata, updateLedger); err != nil {
			return nil, nil, err
		}
	}
	return acks, nil, nil
}

func (f *fakeNakama) MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize, maxSize *int, query string) ([]*api.Match, error) {
	f.lastList = query
	return f.matches, nil
}

func (f *fakeNakama) MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	if module != MatchNameDurak {
		return "", fmt.Errorf("unknown module %s", module)
	}
	f.created = append(f.created, params)
	return fmt.Sprintf("match-%d.node-1", len(f.created)), nil
}

func TestEconomyAdapter(t *testing.T) {
	nk := newFakeNakama()
	nk.wallets["alice"] = map[string]int64{walletCurrency: 700, "gems": 3}
	economy := NewNakamaEconomyAdapter(nk)
	ctx := context.Background()

	balance, err := economy.GetBalance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(700), balance)

	balance, err = economy.GetBalance(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, balance)

	_, err = economy.GetBalance(ctx, "missing")
	require.Error(t, err)

	err = economy.UpdateBalances(ctx, []ports.WalletUpdate{
		{UserID: "alice", Amount: -200, Metadata: map[string]interface{}{"room_id": "r1"}},
		{UserID: "bob", Amount: 0},
		{UserID: "carol", Amount: 200},
	})
	require.NoError(t, err)
	require.Equal(t, int64(500), nk.wallets["alice"][walletCurrency])
	require.Equal(t, int64(200), nk.wallets["carol"][walletCurrency])
	require.NotContains(t, nk.wallets, "bob")
	require.Len(t, nk.ledger, 2)
}

func TestResultsAdapter(t *testing.T) {
	nk := newFakeNakama()
	results := NewNakamaResultsAdapter(nk)
	ctx := context.Background()

	rec := ports.MatchRecord{
		RoomID:     "r1",
		DeckSize:   36,
		Stake:      100,
		Players:    []string{"alice", "bob", "bot-1"},
		Bots:       []string{"bot-1"},
		Winners:    []string{"alice", "bot-1"},
		LoserID:    "bob",
		FinishedAt: time.Unix(1700000000, 0),
	}
	require.NoError(t, results.RecordMatch(ctx, rec))
	require.ErrorIs(t, results.RecordMatch(ctx, rec), ports.ErrDuplicateMatch)
	require.NotContains(t, nk.objects, objectID(resultsCollection, statsKey, "bot-1"))

	draw := rec
	draw.RoomID = "r2"
	draw.Draw = true
	draw.Winners = nil
	draw.LoserID = ""
	nk.rejectN = 1
	require.NoError(t, results.RecordMatch(ctx, draw))

	stats, err := results.PlayerStats(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, ports.PlayerStats{UserID: "alice", Wins: 1, Draws: 1}, stats)

	stats, err = results.PlayerStats(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, ports.PlayerStats{UserID: "bob", Losses: 1, Draws: 1}, stats)

	stats, err = results.PlayerStats(ctx, "stranger")
	require.NoError(t, err)
	require.Equal(t, ports.PlayerStats{UserID: "stranger"}, stats)
}

func TestResultsAdapterGivesUpAfterRepeatedConflicts(t *testing.T) {
	nk := newFakeNakama()
	nk.rejectN = recordAttempts
	err := NewNakamaResultsAdapter(nk).RecordMatch(context.Background(), ports.MatchRecord{RoomID: "r1", Players: []string{"alice"}})
	require.ErrorIs(t, err, runtime.ErrStorageRejectedVersion)
}

func TestWelcomeBonusGrantedOnce(t *testing.T) {
	nk := newFakeNakama()
	grant := NewNakamaWelcomeBonusAdapter(nk)
	ctx := context.Background()

	granted, err := grant.GrantOnce(ctx, "alice", 10000)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = grant.GrantOnce(ctx, "alice", 10000)
	require.NoError(t, err)
	require.False(t, granted)
	require.Equal(t, int64(10000), nk.wallets["alice"][walletCurrency])

	_, err = grant.GrantOnce(ctx, "", 10)
	require.Error(t, err)
	_, err = grant.GrantOnce(ctx, "bob", 0)
	require.Error(t, err)
}

type recordingGrant struct {
	users []string
}

func (g *recordingGrant) GrantOnce(ctx context.Context, userID string, amount int64) (bool, error) {
	g.users = append(g.users, userID)
	return true, nil
}

func TestAfterAuthenticateDevice(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": "user-from-token"})
	signed, err := token.SignedString([]byte("server-key"))
	require.NoError(t, err)

	grant := &recordingGrant{}
	hook := afterAuthenticateDevice(grant, 500)

	require.NoError(t, hook(context.Background(), noopLogger{}, nil, nil, &api.Session{Created: false, Token: signed}, nil))
	require.Empty(t, grant.users)

	require.NoError(t, hook(context.Background(), noopLogger{}, nil, nil, &api.Session{Created: true, Token: signed}, nil))
	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, "user-from-ctx")
	require.NoError(t, hook(ctx, noopLogger{}, nil, nil, &api.Session{Created: true, Token: signed}, nil))
	require.Equal(t, []string{"user-from-token", "user-from-ctx"}, grant.users)

	require.Error(t, hook(context.Background(), noopLogger{}, nil, nil, &api.Session{Created: true, Token: "garbage"}, nil))
}

func TestQuickMatch(t *testing.T) {
	mh := newMatchHandler(testGameConfig(), nil, nil, nil)
	nk := newFakeNakama()
	ctx := context.Background()

	out, err := mh.quickMatch(ctx, noopLogger{}, nk, "")
	require.NoError(t, err)
	var resp QuickMatchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.True(t, resp.IsNew)
	require.Equal(t, "bronze", resp.Tier)
	require.Equal(t, []map[string]interface{}{{"tier": "bronze"}}, nk.created)
	require.True(t, strings.Contains(nk.lastList, "+label.tier:bronze"), nk.lastList)
	require.True(t, strings.Contains(nk.lastList, "+label.phase:waiting"), nk.lastList)

	nk.matches = []*api.Match{{MatchId: "open-1.node-1"}}
	out, err = mh.quickMatch(ctx, noopLogger{}, nk, `{"tier":"gold"}`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.False(t, resp.IsNew)
	require.Equal(t, "open-1.node-1", resp.MatchID)
	require.Equal(t, "gold", resp.Tier)

	_, err = mh.quickMatch(ctx, noopLogger{}, nk, `{"tier":"platinum"}`)
	require.Error(t, err)
	_, err = mh.quickMatch(ctx, noopLogger{}, nk, `{`)
	require.Error(t, err)
}
