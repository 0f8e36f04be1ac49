// Command hunyuan-ocr extracts text from images using a HunyuanOCR
// inference server. It handles a single image or a whole directory,
// with optional server lifecycle management via docker compose.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hunyuanocr/hunyuanocr-go/internal/config"
	"github.com/hunyuanocr/hunyuanocr-go/internal/utils"
	"github.com/hunyuanocr/hunyuanocr-go/pkg/cache"
	"github.com/hunyuanocr/hunyuanocr-go/pkg/manager"
	"github.com/hunyuanocr/hunyuanocr-go/pkg/ocr"
)

func main() {
	var in, dir, task, prompt, server, model, outDir string
	var workers int
	var wait, manage, quiet bool
	var waitTimeout time.Duration

	flag.StringVar(&in, "image", "", "input image path")
	flag.StringVar(&dir, "dir", "", "directory of images to process")
	flag.StringVar(&task, "task", string(ocr.DefaultTask), taskUsage())
	flag.StringVar(&prompt, "prompt", "", "custom prompt (overrides -task)")
	flag.StringVar(&server, "server", "", "server URL (default from environment or http://localhost:8000)")
	flag.StringVar(&model, "model", "", "model identifier (default from environment)")
	flag.StringVar(&outDir, "out", "", "write one .txt per image into this directory instead of stdout")
	flag.IntVar(&workers, "workers", 0, "parallel requests for -dir mode (0 = config default)")
	flag.BoolVar(&wait, "wait", false, "wait for the server to become ready before sending")
	flag.DurationVar(&waitTimeout, "wait-timeout", 0, "override readiness wait timeout (e.g. 120s)")
	flag.BoolVar(&manage, "manage", false, "start the server container via docker compose and stop it on exit")
	flag.BoolVar(&quiet, "quiet", false, "suppress progress logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if quiet {
		log = zerolog.Nop()
	}

	if in == "" && dir == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -image input.png | -dir images/ [-task spotting_en] [-prompt \"...\"] [-workers 4]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	_ = godotenv.Load()
	envCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	cfg := envCfg.Client.OCRConfig()
	if server != "" {
		cfg.ServerURL = server
	}
	if model != "" {
		cfg.Model = model
	}

	opts := &ocr.Options{Prompt: prompt}
	if prompt == "" {
		t := ocr.Task(task)
		if !t.Valid() {
			log.Fatal().Str("task", task).Msg("unknown task")
		}
		opts.Task = t
	}

	ctx := context.Background()

	var service ocr.Service
	if manage {
		mgr := manager.New(cfg, manager.Options{Logger: log})
		if err := mgr.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start OCR server")
		}
		defer mgr.Close()
		service = mgr.Client()
	} else {
		client := ocr.NewClient(cfg)
		defer client.Close()
		client.SetLogger(log)
		if envCfg.Cache.Enable {
			store := cache.NewRedis(envCfg.Cache.Addr, envCfg.Cache.Password, envCfg.Cache.DB, envCfg.Cache.TTL)
			defer store.Close()
			client.SetCache(store)
		}
		service = client
	}

	if wait && !manage {
		log.Info().Str("server", cfg.ServerURL).Msg("waiting for server")
		if err := service.WaitForReady(ctx, waitTimeout, 0); err != nil {
			log.Fatal().Err(err).Msg("server did not become ready")
		}
	}

	switch {
	case in != "":
		if err := runSingle(ctx, service, in, opts, outDir); err != nil {
			log.Fatal().Err(err).Msg("ocr failed")
		}
	default:
		if err := runDirectory(ctx, service, log, dir, opts, workers, outDir); err != nil {
			log.Fatal().Err(err).Msg("batch ocr failed")
		}
	}
}

func runSingle(ctx context.Context, service ocr.Service, path string, opts *ocr.Options, outDir string) error {
	result, err := service.OCRImage(ctx, ocr.FromFile(path), opts)
	if err != nil {
		return err
	}
	return emit(path, result.Text, outDir)
}

func runDirectory(ctx context.Context, service ocr.Service, log zerolog.Logger, dir string, opts *ocr.Options, workers int, outDir string) error {
	paths, err := utils.ListImageFiles(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}
	log.Info().Int("images", len(paths)).Int("workers", workers).Msg("processing directory")

	imgs := make([]ocr.Image, len(paths))
	for i, p := range paths {
		imgs[i] = ocr.FromFile(p)
	}

	var failed int
	callbacks := ocr.BatchCallbacks{
		OnResult: func(i int, r *ocr.Result) {
			log.Info().Str("image", paths[i]).Int("tokens", r.TotalTokens).Msg("done")
			if err := emit(paths[i], r.Text, outDir); err != nil {
				log.Error().Err(err).Str("image", paths[i]).Msg("failed to write output")
			}
		},
		OnError: func(i int, err error) {
			failed++
			log.Error().Err(err).Str("image", paths[i]).Msg("failed")
		},
	}

	batchOpts := &ocr.BatchOptions{Options: *opts, Workers: workers}
	if _, err := service.OCRBatchFunc(ctx, imgs, callbacks, batchOpts); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

// emit writes the extracted text to stdout or to <outDir>/<image>.txt.
func emit(imagePath, text, outDir string) error {
	if outDir == "" {
		fmt.Println(text)
		return nil
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return os.WriteFile(filepath.Join(outDir, base+".txt"), []byte(text), 0o644)
}

func taskUsage() string {
	names := make([]string, 0, len(ocr.Tasks()))
	for _, t := range ocr.Tasks() {
		names = append(names, string(t))
	}
	return "OCR task: " + strings.Join(names, "|")
}
