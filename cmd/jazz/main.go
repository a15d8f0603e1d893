package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"jazz/internal/agent"
	"jazz/internal/appinfo"
	"jazz/internal/catchup"
	"jazz/internal/config"
	"jazz/internal/groove"
	"jazz/internal/history"
	"jazz/internal/paths"
	"jazz/internal/prompt"
	"jazz/internal/schedule"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "schedule":
		err = runSchedule(os.Args[2:])
	case "unschedule":
		err = runUnschedule(os.Args[2:])
	case "schedules":
		err = runSchedules(os.Args[2:])
	case "run":
		err = runGroove(os.Args[2:])
	case "catchup":
		err = runCatchUp(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	case "version":
		fmt.Println(appinfo.Display())
	default:
		fmt.Fprintf(os.Stderr, "jazz: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `jazz – recurring autonomous-agent tasks

Commands:
  schedule <groove> [--agent id]   Register a groove with the OS scheduler
  unschedule <groove>              Remove a groove's OS registration
  schedules                        List registered grooves
  run <groove> [--agent id] [--auto-approve]
                                   Run a groove now, recording the attempt
  catchup [--all|--interactive]    Run grooves that missed their schedule
  history [groove] [-n N]          Show recent run attempts
  version                          Print the version`)
}

// app bundles the wiring every subcommand shares.
type app struct {
	dataDir   string
	cfg       config.Config
	log       zerolog.Logger
	store     *history.Store
	grooves   *groove.DirProvider
	scheduler schedule.Scheduler
	resolver  agent.Resolver
	executor  agent.Executor
}

func newApp() (*app, error) {
	dataDir, err := paths.DataDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigPath(dataDir))
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	scheduler, err := schedule.New(schedule.Options{
		SchedulesDir: paths.SchedulesDir(dataDir),
		LogsDir:      paths.LogsDir(dataDir),
		ExecPath:     execPath,
		Log:          log,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		dataDir:   dataDir,
		cfg:       cfg,
		log:       log,
		store:     history.NewStore(paths.HistoryPath(dataDir), paths.HistoryLockPath(dataDir)),
		grooves:   groove.NewDirProvider(paths.GroovesDir(dataDir)),
		scheduler: scheduler,
		resolver:  cfg.Resolver(),
		executor:  &agent.CommandExecutor{Log: log},
	}, nil
}

func (a *app) orchestrator() *catchup.Orchestrator {
	return &catchup.Orchestrator{
		Scheduler: a.scheduler,
		History:   a.store,
		Grooves:   a.grooves,
		Agents:    a.resolver,
		Executor:  a.executor,
		Prompter:  prompt.NewTTY(),
		Log:       a.log,
	}
}

func runSchedule(args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	agentID := fs.String("agent", "", "agent to run the groove with")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: jazz schedule <groove> [--agent id]")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	name := fs.Arg(0)
	meta, err := a.grooves.Get(name)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(*agentID)
	if id == "" {
		id = meta.Agent
	}
	if _, err := a.resolver.ByIdentifier(id); err != nil {
		return err
	}
	if err := a.scheduler.Schedule(meta, id); err != nil {
		return err
	}
	fmt.Printf("Scheduled %s (%s) via %s\n", meta.Name, meta.Schedule, a.scheduler.Type())
	return nil
}

func runUnschedule(args []string) error {
	fs := flag.NewFlagSet("unschedule", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: jazz unschedule <groove>")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.scheduler.Unschedule(fs.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("Unscheduled %s\n", fs.Arg(0))
	return nil
}

func runSchedules(args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	entries, err := a.scheduler.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No grooves scheduled.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-24s %-16s agent=%s\n", e.Groove, e.Schedule, e.Agent)
	}
	return nil
}

func runGroove(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	agentID := fs.String("agent", "", "agent to run the groove with")
	autoApprove := fs.Bool("auto-approve", false, "approve agent actions without prompting")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: jazz run <groove> [--agent id] [--auto-approve]")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	name := fs.Arg(0)
	meta, promptText, err := a.grooves.Load(name)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(*agentID)
	if id == "" {
		id = meta.Agent
	}
	info, err := a.resolver.ByIdentifier(id)
	if err != nil {
		return err
	}

	// launchd and cron invocations have no terminal attached.
	trigger := history.TriggerManual
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		trigger = history.TriggerScheduled
	}

	startedAt := time.Now()
	if err := a.store.Append(history.RunRecord{
		Groove:      meta.Name,
		StartedAt:   startedAt,
		Status:      history.StatusRunning,
		TriggeredBy: trigger,
	}); err != nil {
		return err
	}

	maxIterations := meta.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 50
	}
	approve := *autoApprove
	if meta.AutoApprove != nil {
		approve = *meta.AutoApprove
	}
	runID := fmt.Sprintf("groove-%s-%d", meta.Name, startedAt.UnixNano())
	result, runErr := a.executor.Run(context.Background(), agent.Request{
		Agent:          info,
		UserInput:      promptText,
		SessionID:      runID,
		ConversationID: runID,
		MaxIterations:  maxIterations,
		AutoApprove:    approve,
	})

	completedAt := time.Now()
	update := history.Update{CompletedAt: &completedAt, Status: history.StatusCompleted}
	if runErr != nil {
		update.Status = history.StatusFailed
		update.Error = runErr.Error()
	}
	if err := a.store.PatchLatestRunning(meta.Name, update); err != nil {
		a.log.Warn().Err(err).Str("groove", meta.Name).Msg("could not record run outcome")
	}
	if runErr != nil {
		return runErr
	}
	fmt.Print(result.Output)
	return nil
}

func runCatchUp(args []string) error {
	fs := flag.NewFlagSet("catchup", flag.ExitOnError)
	all := fs.Bool("all", false, "run every scheduled groove through the batch path")
	interactive := fs.Bool("interactive", false, "confirm and select grooves before running")
	fs.Parse(args)
	a, err := newApp()
	if err != nil {
		return err
	}
	o := a.orchestrator()
	switch {
	case *all:
		o.RunAllNonInteractive(context.Background())
	case *interactive:
		o.PromptInteractive()
		// The batch is detached; hold the process open until it finishes.
		o.Wait()
	default:
		cands := o.Candidates()
		if len(cands) == 0 {
			fmt.Println("Nothing to catch up.")
			return nil
		}
		entries := make([]schedule.Entry, 0, len(cands))
		for _, c := range cands {
			entries = append(entries, c.Entry)
		}
		o.RunBatch(context.Background(), entries)
	}
	return nil
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of records to show")
	fs.Parse(args)
	a, err := newApp()
	if err != nil {
		return err
	}
	var records []history.RunRecord
	if fs.NArg() > 0 {
		records, err = a.store.Query(fs.Arg(0))
	} else {
		records, err = a.store.Recent(*limit)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No run history.")
		return nil
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s  %-24s %-9s %s",
			rec.StartedAt.Local().Format("2006-01-02 15:04"), rec.Groove, rec.Status, rec.TriggeredBy)
		if rec.Error != "" {
			line += "  " + rec.Error
		}
		fmt.Println(line)
	}
	return nil
}
