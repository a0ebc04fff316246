// Command durak-sim plays bot-only rooms concurrently and prints how each match ended.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"durak/internal/app"
	"durak/internal/bot"
	"durak/internal/config"
	"durak/internal/logging"
	"durak/internal/ports"
)

func main() {
	rooms := flag.Int("rooms", 8, "number of rooms to play")
	players := flag.Int("players", 2, "bots per room")
	deck := flag.Int("deck", 36, "deck size (24, 36 or 52)")
	levels := flag.String("levels", "good,smart", "comma separated bot levels to seat")
	seed := flag.Int64("seed", 0, "shuffle seed; 0 picks one from the clock")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up on rooms still playing after this long")
	logLevel := flag.String("log-level", "warn", "room log level")
	flag.Parse()

	if err := run(simOptions{
		rooms:    *rooms,
		players:  *players,
		deck:     *deck,
		levels:   strings.Split(*levels, ","),
		seed:     *seed,
		timeout:  *timeout,
		logLevel: *logLevel,
	}); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

type simOptions struct {
	rooms    int
	players  int
	deck     int
	levels   []string
	seed     int64
	timeout  time.Duration
	logLevel string
}

// collector is an in-process ResultsPort.
type collector struct {
	mu      sync.Mutex
	records map[string]ports.MatchRecord
}

func (c *collector) RecordMatch(_ context.Context, rec ports.MatchRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[rec.RoomID]; ok {
		return fmt.Errorf("%w: %s", ports.ErrDuplicateMatch, rec.RoomID)
	}
	c.records[rec.RoomID] = rec
	return nil
}

func (c *collector) PlayerStats(_ context.Context, userID string) (ports.PlayerStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := ports.PlayerStats{UserID: userID}
	for _, rec := range c.records {
		for _, id := range rec.Players {
			if id != userID {
				continue
			}
			switch {
			case rec.Draw:
				out.Draws++
			case rec.LoserID == userID:
				out.Losses++
			default:
				out.Wins++
			}
		}
	}
	return out, nil
}

// watcher keeps the last update a room sent. Deliver never blocks the room.
type watcher struct {
	mu   sync.Mutex
	last app.Update
}

func (w *watcher) ViewerID() string { return "" }

func (w *watcher) Deliver(u app.Update) {
	w.mu.Lock()
	w.last = u
	w.mu.Unlock()
}

func (w *watcher) seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.Seq
}

func identities(levels []string, perLevel int) ([]bot.BotIdentity, error) {
	var out []bot.BotIdentity
	for _, raw := range levels {
		level := strings.TrimSpace(raw)
		if _, err := bot.ParseLevel(level); err != nil {
			return nil, err
		}
		for i := 1; i <= perLevel; i++ {
			id := fmt.Sprintf("%s-%d", level, i)
			out = append(out, bot.BotIdentity{UserID: id, Username: id, DisplayName: id, Difficulty: level})
		}
	}
	return out, nil
}

func run(opts simOptions) error {
	if opts.rooms <= 0 {
		return fmt.Errorf("rooms must be positive")
	}
	log, err := logging.NewFromConfig(opts.logLevel, "text", os.Stderr)
	if err != nil {
		return err
	}
	ids, err := identities(opts.levels, opts.players)
	if err != nil {
		return err
	}
	if opts.seed == 0 {
		opts.seed = time.Now().UnixNano()
	}

	games := config.Default()
	games.DeckSize = opts.deck
	games.MinPlayers = opts.players
	games.MaxPlayers = opts.players
	games.Tiers = []config.StakeTier{{ID: "sim", Stake: 0}}
	games.DefaultTier = "sim"
	games.FinishedLingerSeconds = 0
	games.Bots.MoveMs = config.MsWindow{Min: 1, Max: 5}
	games.Bots.JoinMs = config.MsWindow{Min: 1, Max: 10}
	games.Bots.LeaveAfterMs = config.MsWindow{Min: 3600000, Max: 3600000}
	if err := games.Validate(); err != nil {
		return err
	}
	cfg := games.RoomConfig("sim")
	cfg.Bots.Enabled = true
	cfg.KeepAliveWithoutHumans = true

	results := &collector{records: make(map[string]ports.MatchRecord)}
	seeds := rand.New(rand.NewSource(opts.seed))
	pool := bot.NewPool(ids)

	pterm.DefaultHeader.Println("durak bot simulation")
	pterm.Info.Printfln("%d rooms, %d bots each, %d-card deck, levels %s, seed %d",
		opts.rooms, opts.players, opts.deck, strings.Join(opts.levels, "/"), opts.seed)

	progress, err := pterm.DefaultProgressbar.WithTotal(opts.rooms).WithTitle("Playing").Start()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	seqs := make(map[string]uint64, opts.rooms)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.rooms; i++ {
		roomSeed := seeds.Int63()
		g.Go(func() error {
			room, err := app.NewRoom(uuid.NewString(), cfg, app.RoomDeps{
				Logger:  log,
				Rand:    rand.New(rand.NewSource(roomSeed)),
				Results: results,
				Bots:    pool,
			})
			if err != nil {
				return err
			}
			w := &watcher{}
			if err := room.Subscribe(gctx, "sim", w); err != nil {
				return err
			}
			select {
			case <-room.Done():
			case <-gctx.Done():
				room.Close()
			}
			mu.Lock()
			seqs[room.ID()] = w.seq()
			progress.Increment()
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	_, _ = progress.Stop()
	if err != nil {
		return err
	}

	renderResults(results, seqs)
	return nil
}

func renderResults(results *collector, seqs map[string]uint64) {
	results.mu.Lock()
	records := make([]ports.MatchRecord, 0, len(results.records))
	for _, rec := range results.records {
		records = append(records, rec)
	}
	results.mu.Unlock()
	sort.Slice(records, func(i, j int) bool { return records[i].FinishedAt.Before(records[j].FinishedAt) })

	table := pterm.TableData{{"Room", "Players", "Winners", "Loser", "Outcome", "Updates"}}
	wins := make(map[string]int)
	losses := make(map[string]int)
	for _, rec := range records {
		outcome := "loser found"
		switch {
		case rec.Draw:
			outcome = pterm.LightYellow("draw")
		case rec.Forfeit:
			outcome = pterm.LightRed("forfeit")
		}
		loser := rec.LoserID
		if loser == "" {
			loser = "-"
		}
		table = append(table, []string{
			rec.RoomID[:8],
			strings.Join(rec.Players, ", "),
			pterm.LightGreen(strings.Join(rec.Winners, ", ")),
			loser,
			outcome,
			fmt.Sprint(seqs[rec.RoomID]),
		})
		for _, id := range rec.Winners {
			wins[levelOf(id)]++
		}
		if rec.LoserID != "" {
			losses[levelOf(rec.LoserID)]++
		}
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
		pterm.Error.Println(err)
	}

	levels := make([]string, 0, len(wins)+len(losses))
	seen := map[string]bool{}
	for _, m := range []map[string]int{wins, losses} {
		for level := range m {
			if !seen[level] {
				seen[level] = true
				levels = append(levels, level)
			}
		}
	}
	sort.Strings(levels)
	summary := pterm.TableData{{"Level", "Wins", "Losses"}}
	for _, level := range levels {
		summary = append(summary, []string{level, fmt.Sprint(wins[level]), fmt.Sprint(losses[level])})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(summary).Render(); err != nil {
		pterm.Error.Println(err)
	}

	if unfinished := len(seqs) - len(records); unfinished > 0 {
		pterm.Warning.Printfln("%d rooms did not finish before the timeout", unfinished)
		return
	}
	pterm.Success.Printfln("%d matches finished", len(records))
}

// levelOf strips the seat counter from a simulated bot id.
func levelOf(id string) string {
	if i := strings.LastIndex(id, "-"); i > 0 {
		return id[:i]
	}
	return id
}
