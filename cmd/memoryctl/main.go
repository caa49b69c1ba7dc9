// Command memoryctl is a thin CLI over the session store manager and the
// triple store adapter. It exists to exercise the two packages end to end;
// a real embedding (an editor extension, an agent runtime) would call the
// Go API directly instead of shelling out to this binary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jido-ai/jido-memory/pkg/config"
	"github.com/jido-ai/jido-memory/pkg/logging"
	"github.com/jido-ai/jido-memory/pkg/memory"
	"github.com/jido-ai/jido-memory/pkg/sessionstore"
)

func main() {
	global := flag.NewFlagSet("memoryctl", flag.ExitOnError)
	configPath := global.String("config", "", "path to a YAML config file, overriding MEMORY_* environment defaults")
	global.Parse(os.Args[1:])
	if global.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger()
	logger.SetLevel(parseLogLevel(cfg.LogLevel))
	logger.SetService("memoryctl")

	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		logger.Fatal("create base path", err, logging.String("base_path", cfg.BasePath))
	}

	mgr := sessionstore.NewManager(sessionstore.Config{
		BasePath:        cfg.BasePath,
		MaxOpenStores:   cfg.MaxOpenStores,
		IdleTimeout:     time.Duration(cfg.IdleTimeoutMS) * time.Millisecond,
		CleanupInterval: time.Duration(cfg.CleanupIntervalMS) * time.Millisecond,
		CloseTimeout:    time.Duration(cfg.CloseTimeoutMS) * time.Millisecond,
	}, logger)
	mgr.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down, closing open session stores")
		mgr.CloseAll()
	}()

	adapter := memory.NewAdapter(cfg.SessionMemoryLimit)

	cmd := global.Arg(0)
	args := global.Args()[1:]

	var runErr error
	switch cmd {
	case "persist":
		runErr = runPersist(ctx, mgr, adapter, args)
	case "get":
		runErr = runGet(ctx, mgr, adapter, args)
	case "list":
		runErr = runList(ctx, mgr, adapter, args)
	case "context":
		runErr = runContext(ctx, mgr, adapter, args)
	case "related":
		runErr = runRelated(ctx, mgr, adapter, args)
	case "supersede":
		runErr = runSupersede(ctx, mgr, adapter, args)
	case "delete":
		runErr = runDelete(ctx, mgr, adapter, args)
	case "touch":
		runErr = runTouch(ctx, mgr, adapter, args)
	case "update":
		runErr = runUpdate(ctx, mgr, adapter, args)
	case "export":
		runErr = runExport(ctx, mgr, adapter, args)
	case "stats":
		runErr = runStats(ctx, mgr, adapter, args)
	default:
		usage()
		os.Exit(2)
	}

	mgr.CloseAll()

	if runErr != nil {
		logger.Error("command failed", runErr, logging.String("command", cmd))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: memoryctl <persist|get|list|context|related|supersede|delete|touch|update|export|stats> [flags]")
}

func openSession(ctx context.Context, mgr *sessionstore.Manager, sessionID string) (*sessionstore.Handle, error) {
	return mgr.OpenOrCreate(ctx, sessionID)
}

func runPersist(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("persist", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	memType := fs.String("type", string(memory.TypeFact), "memory type")
	content := fs.String("content", "", "memory content")
	confidence := fs.Float64("confidence", 0.8, "confidence score [0,1]")
	source := fs.String("source", string(memory.SourceAgent), "source type")
	project := fs.String("project", "", "project id")
	rationale := fs.String("rationale", "", "rationale")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}

	r := &memory.Record{
		ID:         "mem-" + uuid.New().String(),
		SessionID:  *session,
		ProjectID:  *project,
		Content:    *content,
		MemoryType: memory.Type(*memType),
		Confidence: *confidence,
		SourceType: memory.SourceType(*source),
		Rationale:  *rationale,
	}
	id, err := a.Persist(ctx, h.Store(), r)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runGet(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	id := fs.String("id", "", "memory id")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	r, err := a.QueryByIDForSession(ctx, h.Store(), *session, *id)
	if err != nil {
		return err
	}
	return printJSON(r)
}

func runList(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	memType := fs.String("type", "", "filter by memory type, optional")
	limit := fs.Int("limit", 0, "result limit, 0 for default")
	includeSuperseded := fs.Bool("include-superseded", false, "include superseded/deleted records")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	opts := memory.QueryOptions{Limit: *limit, IncludeSuperseded: *includeSuperseded}

	var records []*memory.Record
	if *memType != "" {
		records, err = a.QueryByType(ctx, h.Store(), *session, memory.Type(*memType), opts)
	} else {
		records, err = a.QueryBySession(ctx, h.Store(), *session, opts)
	}
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runContext(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	hint := fs.String("hint", "", "context hint text")
	limit := fs.Int("limit", 0, "result limit, 0 for default")
	recencyWeight := fs.Float64("recency-weight", 0.3, "recency weight [0,1]")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	records, err := a.GetContext(ctx, h.Store(), *session, *hint, memory.ContextOptions{
		Limit:         *limit,
		RecencyWeight: *recencyWeight,
	})
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runRelated(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("related", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	id := fs.String("id", "", "start memory id")
	tag := fs.String("relationship", "", "relationship tag")
	depth := fs.Int("depth", 1, "traversal depth")
	limit := fs.Int("limit", 0, "per-level limit, 0 for default")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	records, err := a.QueryRelated(ctx, h.Store(), *session, *id, memory.Relationship(*tag), memory.RelatedOptions{
		Depth: *depth,
		Limit: *limit,
	})
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runSupersede(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("supersede", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	oldID := fs.String("old-id", "", "id of the record being superseded")
	newID := fs.String("new-id", "", "id of the replacement record")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	return a.Supersede(ctx, h.Store(), *session, *oldID, *newID)
}

func runDelete(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	id := fs.String("id", "", "memory id")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	return a.Delete(ctx, h.Store(), *session, *id)
}

func runTouch(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("touch", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	id := fs.String("id", "", "memory id")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	return a.RecordAccess(ctx, h.Store(), *session, *id)
}

func runUpdate(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	id := fs.String("id", "", "memory id")
	confidence := fs.Float64("confidence", -1, "new confidence score [0,1], omit to leave unchanged")
	evidence := fs.String("append-evidence", "", "comma-separated evidence refs to append")
	rationale := fs.String("append-rationale", "", "rationale text to append")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}

	opts := memory.UpdateOptions{AppendRationale: *rationale}
	if *confidence >= 0 {
		opts.Confidence = confidence
	}
	if *evidence != "" {
		opts.AppendEvidenceRefs = strings.Split(*evidence, ",")
	}
	return a.Update(ctx, h.Store(), *session, *id, opts)
}

func runExport(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	viz, err := a.Export(ctx, h.Store(), *session)
	if err != nil {
		return err
	}
	return printJSON(viz)
}

func runStats(ctx context.Context, mgr *sessionstore.Manager, a *memory.Adapter, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	fs.Parse(args)

	h, err := openSession(ctx, mgr, *session)
	if err != nil {
		return err
	}
	stats, err := a.Stats(ctx, h.Store(), *session)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLogLevel(level string) logging.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logging.DEBUG
	case "warn", "warning":
		return logging.WARN
	case "error":
		return logging.ERROR
	case "fatal":
		return logging.FATAL
	default:
		return logging.INFO
	}
}
