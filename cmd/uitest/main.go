package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"

	"github.com/AngHelll/AutomationFrameworkP/config"
	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/log"
	"github.com/AngHelll/AutomationFrameworkP/report"
	"github.com/AngHelll/AutomationFrameworkP/review"
	"github.com/AngHelll/AutomationFrameworkP/runner"
	"github.com/AngHelll/AutomationFrameworkP/types"
)

var version = "dev"

func main() {
	singleCheck := flag.String("s", "", "The name of the check to be run.")
	toStdout := flag.Bool("stdout", false, "If set to true the results will be written to stdout despite any other existing writer configurations.")
	configLoc := flag.String("c", "./config.yml", "The location of the configuration file.")
	printVersion := flag.Bool("v", false, "The version of uitest.")
	reviewFlag := flag.Bool("review", false, "Browse the diagnostic records of the last run instead of running checks.")
	debugFlag := flag.Bool("debug", false, "Prints debug logs.")

	flag.Parse()

	if *printVersion {
		buildInfo, ok := debug.ReadBuildInfo()
		if ok {
			if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
				fmt.Println(buildInfo.Main.Version)
				return
			}
		}
		fmt.Println(version)
		return
	}

	config.Debug = *debugFlag

	cfg, err := config.NewConfig(*configLoc)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		os.Exit(1)
	}
	log.InitializeDefaultLogger(cfg.LogFile)

	if *reviewFlag {
		if err := review.Browse(cfg.Diagnostics.Dir); err != nil {
			slog.Error(fmt.Sprintf("%v", err))
			os.Exit(1)
		}
		return
	}

	if *singleCheck != "" {
		filtered := []types.Check{}
		for _, c := range cfg.Checks {
			if c.Name == *singleCheck {
				filtered = append(filtered, c)
			}
		}
		cfg.Checks = filtered
	}
	if len(cfg.Checks) == 0 {
		slog.Error("no checks to run")
		os.Exit(1)
	}

	if cfg.Browser.UserAgent == "" {
		cfg.Browser.UserAgent = "uitest automation runner (github.com/AngHelll/AutomationFrameworkP)"
	}

	var writer report.Writer
	if *toStdout {
		writer = report.NewStdoutWriter(&cfg.Writer)
	} else {
		switch cfg.Writer.Type {
		case report.STDOUT_WRITER_TYPE, "":
			writer = report.NewStdoutWriter(&cfg.Writer)
		case report.FILE_WRITER_TYPE:
			writer = report.NewFileWriter(&cfg.Writer)
		default:
			slog.Error(fmt.Sprintf("writer of type %s not implemented", cfg.Writer.Type))
			os.Exit(1)
		}
	}

	drv := driver.NewCDP()

	rc := make(chan report.Result)
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	slog.Debug("starting writer")
	go func() {
		defer writerWg.Done()
		writer.Write(rc)
	}()

	summary := runner.New(drv, cfg).Run(context.Background(), rc)
	writerWg.Wait()
	writer.WriteSummary(summary)
	// workers release their own sessions; this only sweeps up after a
	// panic-free but incomplete teardown
	drv.Close()

	if summary.Failed+summary.Errors > 0 {
		os.Exit(1)
	}
}
