package gamedetect

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

// Match is a known game found among the running processes.
type Match struct {
	Game    Game   `json:"game"`
	Process string `json:"process"`
}

// Signal is what the detector hands to node selection: which games run
// and the regions they prefer. An empty Signal means no game is running.
type Signal struct {
	Games   []string  `json:"games"`
	Regions []string  `json:"regions"`
	At      time.Time `json:"at"`
}

// Active reports whether any game is running.
func (s Signal) Active() bool { return len(s.Games) > 0 }

// Key identifies the signal's game set; equal keys mean no change.
func (s Signal) Key() string { return strings.Join(s.Games, ",") }

// Error wraps a failed process sample.
type Error struct {
	AppError domain.AppError
	Cause    error
}

func (e *Error) Error() string { return e.AppError.Message + ": " + e.Cause.Error() }
func (e *Error) Unwrap() error { return e.Cause }

// Detector matches running processes against a game table.
type Detector struct {
	lister ProcessLister
	table  *Table
	log    logger.Logger
	now    func() time.Time
}

func New(lister ProcessLister, table *Table, log logger.Logger) *Detector {
	if table == nil {
		table = DefaultTable()
	}
	return &Detector{lister: lister, table: table, log: log.With(logger.Component("gamedetect")), now: time.Now}
}

// Table returns the table in use.
func (d *Detector) Table() *Table { return d.table }

// Detect returns every known game with at least one running process, in table order.
func (d *Detector) Detect(ctx context.Context) ([]Match, error) {
	procs, err := d.lister.ListRunningProcessNames(ctx)
	if err != nil {
		return nil, &Error{
			AppError: domain.AppError{
				Code:    "PROCESS_LIST_FAILED",
				Message: "cannot list running processes",
				Stage:   domain.StageDetect,
			},
			Cause: err,
		}
	}

	lowered := make([]string, 0, len(procs))
	original := make(map[string]string, len(procs))
	for p := range procs {
		l := strings.ToLower(p)
		lowered = append(lowered, l)
		original[l] = p
	}
	sort.Strings(lowered)

	var matches []Match
	for _, g := range d.table.Games {
		if proc, ok := matchGame(g, lowered); ok {
			matches = append(matches, Match{Game: g, Process: original[proc]})
		}
	}
	return matches, nil
}

func matchGame(g Game, processes []string) (string, bool) {
	for _, target := range g.Processes {
		t := strings.ToLower(target)
		if t == "" {
			continue
		}
		if p, ok := lo.Find(processes, func(p string) bool { return strings.Contains(p, t) }); ok {
			return p, true
		}
	}
	return "", false
}

// Sample runs Detect and folds the matches into a Signal.
func (d *Detector) Sample(ctx context.Context) (Signal, error) {
	matches, err := d.Detect(ctx)
	if err != nil {
		return Signal{}, err
	}
	return d.signal(matches), nil
}

func (d *Detector) signal(matches []Match) Signal {
	sig := Signal{At: d.now()}
	for _, m := range matches {
		sig.Games = append(sig.Games, m.Game.ID)
		sig.Regions = append(sig.Regions, m.Game.Regions...)
	}
	sig.Regions = lo.Uniq(lo.Map(sig.Regions, func(r string, _ int) string { return strings.ToUpper(strings.TrimSpace(r)) }))
	sort.Strings(sig.Regions)
	if len(sig.Games) > 0 {
		d.log.Debug("games detected", logger.Strings("games", sig.Games), logger.Strings("regions", sig.Regions))
	}
	return sig
}
