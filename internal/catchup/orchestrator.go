package catchup

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"jazz/internal/agent"
	"jazz/internal/groove"
	"jazz/internal/history"
	"jazz/internal/schedule"
)

const defaultMaxIterations = 50

// Prompter is the narrow interface onto interactive widgets. MultiSelect
// presents every option pre-selected and returns the indexes kept.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
	MultiSelect(title string, options []string) ([]int, error)
}

// Candidate pairs a scheduled entry with the decision that made it runnable.
type Candidate struct {
	Entry    schedule.Entry
	Meta     groove.Metadata
	Decision Decision
}

// Orchestrator drives startup catch-up: it discovers missed grooves and runs
// them, recording every attempt in the history store. Failures anywhere are
// recoverable; catch-up never blocks the command it is attached to.
type Orchestrator struct {
	Scheduler schedule.Scheduler
	History   *history.Store
	Grooves   groove.Provider
	Agents    agent.Resolver
	Executor  agent.Executor
	Prompter  Prompter
	Log       zerolog.Logger

	// Out receives the interactive summary lines. Defaults to stdout.
	Out io.Writer
	// Now is swappable for tests. Defaults to time.Now.
	Now func() time.Time
	// Interactive reports whether a terminal is attached. Defaults to
	// checking stdin and stdout.
	Interactive func() bool

	wg sync.WaitGroup
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return os.Stdout
}

func (o *Orchestrator) interactive() bool {
	if o.Interactive != nil {
		return o.Interactive()
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Candidates lists the scheduled grooves whose missed firing should be caught
// up right now. Discovery is fail-soft: scheduler or history trouble yields
// an empty result, never an error that would block startup.
func (o *Orchestrator) Candidates() []Candidate {
	entries, err := o.Scheduler.List()
	if err != nil {
		o.Log.Warn().Err(err).Msg("listing scheduled grooves failed; skipping catch-up")
		return nil
	}
	lastSeen := o.lastSeenTimes()
	now := o.now()

	var out []Candidate
	for _, entry := range entries {
		meta, err := o.Grooves.Get(entry.Groove)
		if err != nil {
			o.Log.Warn().Err(err).Str("groove", entry.Groove).Msg("scheduled groove has no definition")
			continue
		}
		d := Decide(meta, lastRunPtr(lastSeen, entry.Groove), now)
		if !d.ShouldRun {
			continue
		}
		out = append(out, Candidate{Entry: entry, Meta: meta, Decision: d})
	}
	return out
}

// lastSeenTimes folds the run history into the newest timestamp per groove,
// taking the later of completion and start for each record. A history that
// cannot be read counts as empty.
func (o *Orchestrator) lastSeenTimes() map[string]time.Time {
	records, err := o.History.Load()
	if err != nil {
		o.Log.Warn().Err(err).Msg("loading run history failed; assuming empty")
		records = nil
	}
	seen := make(map[string]time.Time, len(records))
	for _, rec := range records {
		t := rec.StartedAt
		if rec.CompletedAt != nil && rec.CompletedAt.After(t) {
			t = *rec.CompletedAt
		}
		if prev, ok := seen[rec.Groove]; !ok || t.After(prev) {
			seen[rec.Groove] = t
		}
	}
	return seen
}

func lastRunPtr(seen map[string]time.Time, name string) *time.Time {
	if t, ok := seen[name]; ok {
		return &t
	}
	return nil
}

// RunBatch executes each entry independently: metadata, agent, and prompt are
// re-resolved, the decision is re-evaluated against current history, and one
// groove's failure never stops its siblings.
func (o *Orchestrator) RunBatch(ctx context.Context, entries []schedule.Entry) {
	if len(entries) == 0 {
		return
	}
	lastSeen := o.lastSeenTimes()
	now := o.now()

	for _, entry := range entries {
		log := o.Log.With().Str("groove", entry.Groove).Logger()

		meta, prompt, err := o.Grooves.Load(entry.Groove)
		if err != nil {
			log.Warn().Err(err).Msg("skipping groove: definition unavailable")
			continue
		}
		agentID := entry.Agent
		if agentID == "" {
			agentID = meta.Agent
		}
		info, err := o.Agents.ByIdentifier(agentID)
		if err != nil {
			log.Warn().Err(err).Msg("skipping groove: agent unavailable")
			continue
		}

		// Time may have passed since candidates were computed.
		d := Decide(meta, lastRunPtr(lastSeen, entry.Groove), now)
		if !d.ShouldRun {
			log.Debug().Str("reason", string(d.Reason)).Msg("groove no longer due")
			continue
		}

		o.runOne(ctx, log, meta, info, prompt)
	}
}

func (o *Orchestrator) runOne(ctx context.Context, log zerolog.Logger, meta groove.Metadata, info agent.Info, prompt string) {
	startedAt := o.now()
	if err := o.History.Append(history.RunRecord{
		Groove:      meta.Name,
		StartedAt:   startedAt,
		Status:      history.StatusRunning,
		TriggeredBy: history.TriggerScheduled,
	}); err != nil {
		// Lock contention is transient; skip this groove, not the batch.
		log.Warn().Err(err).Msg("skipping groove: could not record run start")
		return
	}

	runID := fmt.Sprintf("groove-%s-%s", meta.Name, ulid.MustNew(ulid.Timestamp(startedAt), rand.Reader))
	maxIterations := meta.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	autoApprove := true // unattended runs cannot sit on an approval prompt
	if meta.AutoApprove != nil {
		autoApprove = *meta.AutoApprove
	}

	_, runErr := o.Executor.Run(ctx, agent.Request{
		Agent:          info,
		UserInput:      prompt,
		SessionID:      runID,
		ConversationID: runID,
		MaxIterations:  maxIterations,
		AutoApprove:    autoApprove,
	})

	completedAt := o.now()
	update := history.Update{CompletedAt: &completedAt, Status: history.StatusCompleted}
	if runErr != nil {
		update.Status = history.StatusFailed
		update.Error = runErr.Error()
		log.Error().Err(runErr).Msg("groove run failed")
	} else {
		log.Info().Str("run_id", runID).Msg("groove run completed")
	}
	if err := o.History.PatchLatestRunning(meta.Name, update); err != nil {
		log.Warn().Err(err).Msg("could not record run outcome")
	}
}

// RunAllNonInteractive runs every scheduled groove through the batch path,
// letting the per-groove re-evaluation decide what is actually due. Used for
// headless startup.
func (o *Orchestrator) RunAllNonInteractive(ctx context.Context) {
	entries, err := o.Scheduler.List()
	if err != nil {
		o.Log.Warn().Err(err).Msg("listing scheduled grooves failed; skipping catch-up")
		return
	}
	o.RunBatch(ctx, entries)
}

// PromptInteractive offers missed grooves for confirmation and hands the
// selected subset to a detached background batch; it returns immediately.
// Without a terminal it is a no-op.
func (o *Orchestrator) PromptInteractive() {
	if !o.interactive() || o.Prompter == nil {
		return
	}
	cands := o.Candidates()
	if len(cands) == 0 {
		return
	}

	now := o.now()
	fmt.Fprintf(o.out(), "%d groove(s) missed their scheduled run:\n", len(cands))
	options := make([]string, len(cands))
	for i, c := range cands {
		phrase := ""
		if c.Decision.ScheduledAt != nil {
			phrase = missedPhrase(*c.Decision.ScheduledAt, now)
		}
		fmt.Fprintf(o.out(), "  %s (%s)\n", c.Entry.Groove, phrase)
		options[i] = fmt.Sprintf("%s — %s", c.Entry.Groove, phrase)
	}

	ok, err := o.Prompter.Confirm(fmt.Sprintf("Run %d missed groove(s) now?", len(cands)), false)
	if err != nil || !ok {
		return
	}
	picked, err := o.Prompter.MultiSelect("Select grooves to catch up", options)
	if err != nil {
		o.Log.Warn().Err(err).Msg("groove selection failed")
		return
	}
	if len(picked) == 0 {
		fmt.Fprintln(o.out(), "No grooves selected.")
		return
	}

	selected := make([]schedule.Entry, 0, len(picked))
	for _, idx := range picked {
		if idx >= 0 && idx < len(cands) {
			selected = append(selected, cands[idx].Entry)
		}
	}

	// Detach so the invoking command returns immediately; completion is
	// logged, not surfaced here. The batch outlives the caller's context.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.RunBatch(context.Background(), selected)
		o.Log.Info().Int("count", len(selected)).Msg("catch-up batch finished")
	}()
}

// Wait blocks until any detached batch has finished. Tests and process
// shutdown use it; the interactive flow never does.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// missedPhrase renders a short human phrase for when the firing was missed,
// comparing calendar days against now.
func missedPhrase(scheduledAt, now time.Time) string {
	clock := scheduledAt.Format("15:04")
	sy, sm, sd := scheduledAt.Date()
	ny, nm, nd := now.Date()
	if sy == ny && sm == nm && sd == nd {
		return "missed " + clock + " today"
	}
	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	if sy == yy && sm == ym && sd == yd {
		return "missed " + clock + " yesterday"
	}
	return "missed " + clock + " on " + scheduledAt.Format("Jan 2")
}
