// Command tiergate-check validates one combat log offline and prints the
// verdict. The log is a local Elite Insights JSON file or a dps.report
// permalink. With -db, results are kept in a SQLite file so quota and
// duplicate checks see earlier runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tiergate/internal/adapters/logsource"
	"github.com/okian/tiergate/internal/adapters/repository"
	app "github.com/okian/tiergate/internal/app"
	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/internal/rules"
	"github.com/okian/tiergate/pkg/logger"
)

// Exit codes.
const (
	exitPassed = 0
	exitDenied = 1
	exitFault  = 2
)

const defaultTimeout = 60 * time.Second

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	account   string
	submitter string
	tier      int
	role      string
	rulesPath string
	dbPath    string
	minBuild  int
	debug     bool
	mechanic  string
	timeout   time.Duration
	log       string
}

func parse(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("tiergate-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.account, "account", "", "Account name to check, e.g. Name.1234 (required)")
	fs.StringVar(&o.submitter, "submitter", "", "Submitter id used for history (default: account)")
	fs.IntVar(&o.tier, "tier", 1, "Tier applied for (1-3)")
	fs.StringVar(&o.role, "role", "", "Role played in the log")
	fs.StringVar(&o.rulesPath, "rules", "", "Rule pack YAML (default: embedded pack)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite file keeping earlier results (default: in memory)")
	fs.IntVar(&o.minBuild, "min-build", 0, "Reject logs from older game builds")
	fs.BoolVar(&o.debug, "debug", false, "Report every mechanic count")
	fs.StringVar(&o.mechanic, "mechanic", "", "Only evaluate this mechanic")
	fs.DurationVar(&o.timeout, "timeout", defaultTimeout, "Overall timeout")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() != 1 {
		return o, errors.New("expected exactly one log file or permalink")
	}
	o.log = fs.Arg(0)
	if strings.TrimSpace(o.account) == "" {
		return o, errors.New("-account is required")
	}
	if o.submitter == "" {
		o.submitter = o.account
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parse(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFault
	}
	if err := logger.Init(logger.WithOutput(stderr)); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFault
	}
	_ = logger.SetLevelString("warn")

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	verdict, err := check(ctx, o)
	if err != nil {
		fmt.Fprintln(stderr, "check failed:", err)
		return exitFault
	}
	fmt.Fprint(stdout, feedback.Render(verdict))
	if verdict.Severity() == feedback.Error {
		return exitDenied
	}
	return exitPassed
}

func check(ctx context.Context, o options) (*feedback.Collection, error) {
	pack, err := rules.Load(o.rulesPath)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, o.dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	svc := app.New(
		app.WithStore(store),
		app.WithLogSource(source{remote: logsource.NewClient()}),
		app.WithRules(pack),
		app.WithMinGameBuild(o.minBuild),
		app.WithWorkerCount(1),
		app.WithResumePending(false),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = svc.Stop(context.Background()) }()

	now := time.Now()
	sub := model.Submission{
		ID:          uuid.NewString(),
		SubmitterID: o.submitter,
		AccountName: o.account,
		Tier:        o.tier,
		Role:        o.role,
		LogURL:      o.log,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.Create(ctx, sub); err != nil {
		return nil, err
	}

	verdict, err := svc.Revalidate(ctx, sub.ID, o.debug, o.mechanic)
	if err != nil {
		_ = store.SaveVerdict(ctx, sub.ID, model.StatusError, err.Error(), nil)
		return nil, err
	}
	status := model.StatusPending
	if verdict.Severity() == feedback.Error {
		status = model.StatusDenied
	}
	if err := store.SaveVerdict(ctx, sub.ID, status, "", verdict); err != nil {
		return nil, err
	}
	return verdict, nil
}

func openStore(ctx context.Context, path string) (repository.Store, error) {
	if path == "" {
		return repository.NewMemoryStore(), nil
	}
	return repository.NewSQLiteStore(ctx, path)
}

// source reads local files and sends permalinks to the log host.
type source struct {
	remote *logsource.Client
}

func (s source) Fetch(ctx context.Context, target string) (*model.EncounterRecord, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return s.remote.Fetch(ctx, target)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", logsource.ErrFetch, err)
	}
	var rec model.EncounterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", logsource.ErrDecode, err)
	}
	return &rec, nil
}
