package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/machilusZ/cs511-project2/bridge"
	"github.com/machilusZ/cs511-project2/config"
	"github.com/machilusZ/cs511-project2/host"
	"github.com/machilusZ/cs511-project2/logging"
	"github.com/machilusZ/cs511-project2/polars"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var version = "0.1.0"

// app 命令执行期间共享的状态
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
	tp      *sdktrace.TracerProvider
	metrics *http.Server
}

func main() {
	a := &app{}
	if err := a.execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute 运行命令行；无论命令成败都会关闭 setup 打开的资源
func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	defer a.shutdown()
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wake",
		Short:         "Zero-copy columnar interchange over the Arrow C Data Interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "Path to config file (yaml/json/toml)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("wake v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			if a.cfg.Library == "" {
				return nil
			}

			// 加载动态库
			brg, err := bridge.LoadBridge(a.cfg.Library)
			if err != nil {
				return err
			}
			fmt.Printf("ABI Version: %d\n", brg.AbiVersion())
			engineVer, err := brg.EngineVersion()
			if err != nil {
				return fmt.Errorf("failed to get engine version: %w", err)
			}
			fmt.Printf("Engine Version: %s\n", engineVer)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "formats",
		Short: "List the format strings that can cross the boundary",
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range bridge.SupportedFormats() {
				fmt.Println(f)
			}
		},
	})

	var csvPath string
	var useEngine bool
	roundtrip := &cobra.Command{
		Use:   "roundtrip",
		Short: "Send every column of a CSV file to the host runtime and back",
		Long: `Load a CSV file into columns, rechunk each column, export it through the
C Data Interface to the host runtime, import it back and print the rows as NDJSON.

Example:
  wake roundtrip --csv testdata/sample.csv --config wake.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.roundtrip(cmd.Context(), csvPath, useEngine)
		},
	}
	roundtrip.Flags().StringVar(&csvPath, "csv", "", "Path to CSV file (required)")
	roundtrip.Flags().BoolVar(&useEngine, "engine", false, "Use the native engine library as host instead of the in-process loopback")
	_ = roundtrip.MarkFlagRequired("csv")
	root.AddCommand(roundtrip)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log, err = logging.New(cfg.Log)
	if err != nil {
		return err
	}
	logging.Install(a.log)

	if cfg.Trace.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		a.tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		a.log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}
	return nil
}

func (a *app) shutdown() {
	ctx := context.Background()
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if a.tp != nil {
		_ = a.tp.Shutdown(ctx)
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) tracerProvider() trace.TracerProvider {
	if a.tp == nil {
		return nil
	}
	return a.tp
}

func (a *app) roundtrip(ctx context.Context, csvPath string, useEngine bool) error {
	mem, err := a.cfg.NewAllocator()
	if err != nil {
		return err
	}

	df, err := polars.ReadCSVFile(mem, csvPath, polars.CSVOptions{ChunkSize: a.cfg.ChunkSize})
	if err != nil {
		return err
	}
	defer df.Release()
	a.log.Info("loaded table", zap.String("path", csvPath), zap.Int("rows", df.Height()), zap.Int("columns", df.Width()))

	var imp host.Importer = host.NewLoopback(mem)
	if useEngine {
		brg, err := bridge.LoadBridge(a.cfg.Library)
		if err != nil {
			return err
		}
		imp = host.NewEngine(brg)
	}
	rt := host.NewRuntime(a.tracerProvider())

	hosted, err := host.DataFrameToHost(ctx, rt, imp, mem, df)
	if err != nil {
		return err
	}
	defer func() {
		for _, h := range hosted {
			h.Release()
		}
	}()

	cols := make([]*polars.Series, 0, df.Width())
	defer func() {
		for _, s := range cols {
			s.Release()
		}
	}()
	for _, name := range df.Names() {
		back, err := host.SeriesFromHost(ctx, rt, hosted[name])
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		named := back.Rename(name)
		back.Release()
		cols = append(cols, named)

		orig, _ := df.Column(name)
		if !array.ChunkedEqual(orig.Chunked(), named.Chunked()) {
			return fmt.Errorf("column %q changed during round trip", name)
		}
	}

	out, err := polars.NewDataFrame(cols...)
	if err != nil {
		return err
	}
	defer out.Release()
	return out.WriteNDJSON(os.Stdout)
}
