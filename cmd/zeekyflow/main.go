package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/k0kubun/pp/v3"
	_ "go.uber.org/automaxprocs"

	"github.com/joachimaross/zeekyflow"
)

func main() {
	var (
		dbPath   = flag.String("db", "zeekyflow.db", "path to the SQLite database (empty for in-memory)")
		template = flag.String("template", "daily-summary", "workflow template to run")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	opts := []zeekyflow.Option{zeekyflow.WithPath(*dbPath)}
	if *dbPath == "" {
		opts = []zeekyflow.Option{zeekyflow.WithMemory()}
	}
	if *verbose {
		opts = append(opts, zeekyflow.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}

	ctx := context.Background()
	zf, err := zeekyflow.New(ctx, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer zf.Close()

	workflow, err := zf.CreateWorkflowFromTemplate(*template)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Printf("created workflow %s (%s)\n", workflow.ID, workflow.Name)

	execution, err := zf.RunNow(ctx, workflow.ID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	pp.Println(execution)

	history, err := zf.History(10)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Printf("history holds %d execution(s)\n", len(history))
}
