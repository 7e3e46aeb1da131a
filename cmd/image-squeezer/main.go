package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"image-squeezer-go/internal/batch"
	"image-squeezer-go/internal/compressor"
	"image-squeezer-go/internal/config"
	"image-squeezer-go/internal/imagemeta"
	"image-squeezer-go/internal/logger"
	"image-squeezer-go/internal/statistics"
	"image-squeezer-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	quality   float64
	targetDir string
	zipPath   string
	verbose   bool
	quiet     bool
	version   string
	buildTime string
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-squeezer [files...]",
	Short: "Compress batches of images with a quality/size trade-off",
	Long: `ImageSqueezer compresses batches of raster images. Each image is
resized to fit a maximum dimension, re-encoded as JPEG at a configurable
quality, and stepped down in quality until it fits a soft size target.

Features:
- Batches of up to 20 images per run
- Soft 1 MB output size target, 1920 px dimension cap
- Per-file outcomes: unsupported or failed files never abort the batch
- Individual output files or a single zip archive
- Web interface with live progress and bulk download`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(args)
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts a web server exposing the compression workflow over HTTP.
The API allows clients to:
- Upload a batch of images and compress them concurrently
- Adjust quality and re-run the whole batch or a single image
- Download results individually or as a zip archive
- Follow pass progress over a websocket

Access the API at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// inspectCmd probes a single image file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show format, dimensions and EXIF capture time of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().Float64Var(&quality, "quality", 0, "compression quality in 0.10..0.90 (default from config)")
	rootCmd.Flags().StringVar(&targetDir, "target", "compressed", "target directory for compressed files")
	rootCmd.Flags().StringVar(&zipPath, "zip", "", "write all compressed files into a single zip archive instead")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-squeezer")
		viper.AddConfigPath("/etc/image-squeezer")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runCompress compresses the given files and writes the results.
func runCompress(args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	q := cfg.Compression.DefaultQuality
	if quality != 0 {
		if quality < compressor.MinQuality || quality > compressor.MaxQuality {
			return fmt.Errorf("quality must be between %.2f and %.2f", compressor.MinQuality, compressor.MaxQuality)
		}
		q = quality
	}

	log := setupLogger(cfg)

	candidates, err := readSourceFiles(args)
	if err != nil {
		return err
	}

	files := batch.Select(candidates, cfg.Compression.AcceptPatterns, cfg.Compression.MaxBatchSize)
	if dropped := len(candidates) - len(files); dropped > 0 {
		log.Warnf("Dropped %d file(s) by the selection filter", dropped)
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported images selected")
	}

	stats := statistics.New()
	orch := newOrchestrator(cfg, log, stats)

	results, err := orch.CompressAll(context.Background(), files, q)
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	stats.IncrementPassesRun()

	if zipPath != "" {
		data, err := batch.BuildArchive(results, "compressed-")
		if err != nil {
			return fmt.Errorf("failed to build archive: %w", err)
		}
		if err := os.WriteFile(zipPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write archive: %w", err)
		}
		stats.IncrementArchivesBuilt()
	} else {
		if err := writeResults(results, targetDir); err != nil {
			return err
		}
	}

	for _, item := range results {
		switch item.Outcome {
		case batch.OutcomeUnsupported:
			log.Warnf("Unsupported media type, skipped: %s", item.Original.Name)
		case batch.OutcomeError:
			log.Errorf("Failed to compress %s: %s", item.Original.Name, item.Err)
		}
	}

	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
	}

	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}

	log := setupLogger(cfg)
	stats := statistics.New()
	orch := newOrchestrator(cfg, log, stats)
	server := web.NewServer(cfg, log, orch, stats)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	if !quiet {
		fmt.Printf("ImageSqueezer started on http://localhost:%d\n", port)
		fmt.Printf("Press Ctrl+C to stop the server\n\n")
	}

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// runInspect probes a single image and prints its metadata.
func runInspect(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	info, err := imagemeta.Probe(data)
	if err != nil {
		return fmt.Errorf("failed to probe image: %w", err)
	}

	fmt.Printf("File: %s\n", filePath)
	fmt.Printf("Format: %s\n", info.Format)
	fmt.Printf("Dimensions: %dx%d\n", info.Width, info.Height)
	if info.TakenAt != nil {
		fmt.Printf("Taken at: %s\n", info.TakenAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Taken at: unknown (no EXIF date)")
	}

	return nil
}

// newOrchestrator wires the imaging compressor with the configured caps.
func newOrchestrator(cfg *config.Config, log *logrus.Logger, stats *statistics.Statistics) *batch.Orchestrator {
	opts := compressor.Options{
		MaxSizeMB:      cfg.Compression.MaxSizeMB,
		MaxDimensionPx: cfg.Compression.MaxDimensionPx,
	}
	return batch.NewOrchestrator(compressor.NewImagingCompressor(), opts, cfg.Compression.SupportedTypes, log, stats)
}

// readSourceFiles loads the given paths into source files. The media type
// is derived from the file extension.
func readSourceFiles(paths []string) ([]batch.SourceFile, error) {
	files := make([]batch.SourceFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("file does not exist: %s", path)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("directories are not supported: %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		files = append(files, batch.SourceFile{
			Name:      filepath.Base(path),
			MediaType: mime.TypeByExtension(filepath.Ext(path)),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Data:      data,
		})
	}
	return files, nil
}

// writeResults writes each compressed item into the target directory.
func writeResults(results batch.ResultBatch, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create target dir: %w", err)
	}
	for _, item := range results {
		if item.Outcome != batch.OutcomeCompressed || item.Blob == nil {
			continue
		}
		outPath := filepath.Join(dir, batch.ArchiveEntryName(item, ""))
		if err := os.WriteFile(outPath, item.Blob.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
	}
	return nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
