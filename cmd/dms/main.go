package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/qinyiguo/DMS2.0/internal/catalog"
	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/connectors"
	gmailconnector "github.com/qinyiguo/DMS2.0/internal/connectors/gmail"
	imapconnector "github.com/qinyiguo/DMS2.0/internal/connectors/imap"
	"github.com/qinyiguo/DMS2.0/internal/ingest"
	"github.com/qinyiguo/DMS2.0/internal/listener"
	"github.com/qinyiguo/DMS2.0/internal/pipeline"
	"github.com/qinyiguo/DMS2.0/internal/server"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	switch os.Args[1] {
	case "serve":
		srv, err := server.New(db, cfg)
		must(err)
		must(srv.ListenAndServe(cfg.HTTPAddr))

	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		file := fs.String("file", "", "path to the spreadsheet to import")
		name := fs.String("name", "", "override for the recorded file name")
		must(fs.Parse(os.Args[2:]))
		if *file == "" {
			fmt.Println("import requires --file")
			os.Exit(1)
		}
		blob, err := os.ReadFile(*file)
		must(err)
		fileName := *name
		if fileName == "" {
			fileName = filepath.Base(*file)
		}
		imp, err := pipeline.NewImportService(db, cfg)
		must(err)
		summary, err := imp.ImportFile(fileName, blob)
		must(err)
		fmt.Printf("batch=%d batchNo=%s staged=%d canonical=%d errors=%d\n",
			summary.BatchID, summary.BatchNo, summary.StagedCount, summary.CanonicalCount, summary.ErrorCount)
		if len(summary.MissingRequired) > 0 {
			fmt.Printf("missing required columns: %s\n", strings.Join(summary.MissingRequired, ", "))
		}
		if len(summary.UnknownColumns) > 0 {
			fmt.Printf("unknown columns staged: %s\n", strings.Join(summary.UnknownColumns, ", "))
		}

	case "parts:initial-sync":
		count, err := catalog.NewSyncService(db, cfg).InitialSync(context.Background())
		must(err)
		fmt.Printf("parts initial sync done, upserted %d records\n", count)

	case "parts:incremental-sync":
		fs := flag.NewFlagSet("parts:incremental-sync", flag.ExitOnError)
		mode := fs.String("mode", "hour", "incremental window: hour or day")
		must(fs.Parse(os.Args[2:]))
		count, err := catalog.NewSyncService(db, cfg).IncrementalSync(context.Background(), *mode)
		must(err)
		fmt.Printf("parts incremental sync (%s) done, upserted %d records\n", *mode, count)

	case "mail:fetch":
		fs := flag.NewFlagSet("mail:fetch", flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "mail provider: gmail or imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox or label to fetch from")
		max := fs.Int("max", cfg.MailListenerFetchMax, "maximum messages to fetch")
		must(fs.Parse(os.Args[2:]))
		conn, err := makeConnector(cfg, *provider)
		must(err)
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn).FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("fetched %d messages, stored %d\n", result.Fetched, result.Stored)

	case "mail:process":
		fs := flag.NewFlagSet("mail:process", flag.ExitOnError)
		provider := fs.String("provider", "", "restrict to one provider")
		messageID := fs.String("messageId", "", "process a single message by Message-ID")
		batch := fs.Int("batch", cfg.MailListenerBatch, "maximum messages to process")
		must(fs.Parse(os.Args[2:]))
		imp, err := pipeline.NewImportService(db, cfg)
		must(err)
		svc := ingest.NewService(db, imp)
		if *messageID != "" {
			if *provider == "" {
				fmt.Println("mail:process --messageId requires --provider")
				os.Exit(1)
			}
			res, err := svc.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("email=%d batches=%d skipped=%d\n", res.EmailID, len(res.Batches), res.Skipped)
			break
		}
		results, err := svc.ProcessPending(*batch, *provider)
		must(err)
		for _, res := range results {
			fmt.Printf("email=%d batches=%d skipped=%d\n", res.EmailID, len(res.Batches), res.Skipped)
		}
		fmt.Printf("processed %d emails\n", len(results))

	case "mail:listen":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		must(listener.NewService(db, cfg).Run(ctx))

	case "export:xlsx":
		fs := flag.NewFlagSet("export:xlsx", flag.ExitOnError)
		batchID := fs.Int64("batchId", 0, "batch to export")
		out := fs.String("out", "", "output path (defaults under OUTPUT_DIR)")
		must(fs.Parse(os.Args[2:]))
		if *batchID == 0 {
			fmt.Println("export:xlsx requires --batchId")
			os.Exit(1)
		}
		outputPath := *out
		if outputPath == "" {
			outputPath = filepath.Join(cfg.OutputDir, fmt.Sprintf("batch-%d.xlsx", *batchID))
		}
		must(pipeline.ExportBatchToXLSX(db, *batchID, outputPath))
		fmt.Printf("exported batch %d to %s\n", *batchID, outputPath)

	default:
		usage()
		os.Exit(1)
	}
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	}
	return nil, fmt.Errorf("unsupported mail provider: %s", provider)
}

func usage() {
	fmt.Println("usage: dms <command> [flags]")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  serve                        start the HTTP import API")
	fmt.Println("  import --file <path>         import one spreadsheet from disk")
	fmt.Println("  parts:initial-sync           full parts master sync")
	fmt.Println("  parts:incremental-sync       recent parts master changes (--mode=hour|day)")
	fmt.Println("  mail:fetch                   fetch report mail into the raw store")
	fmt.Println("  mail:process                 import attachments of fetched mail")
	fmt.Println("  mail:listen                  fetch and process on an interval")
	fmt.Println("  export:xlsx --batchId <id>   export a batch to a workbook")
}

func must(err error) {
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}
