package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/menta2k/strangeway"
	"github.com/menta2k/strangeway/internal/config"
	"github.com/menta2k/strangeway/internal/server"
	"github.com/menta2k/strangeway/internal/utils"
	"github.com/menta2k/strangeway/pkg/client"
	"github.com/menta2k/strangeway/pkg/detection"
	"github.com/menta2k/strangeway/pkg/llamacpp"
	"github.com/menta2k/strangeway/pkg/ollama"
	"github.com/menta2k/strangeway/pkg/overlay"
	"github.com/menta2k/strangeway/pkg/processing"
	"github.com/menta2k/strangeway/pkg/vision"
)

func main() {
	// Optional .env for listen address and backend URLs
	_ = godotenv.Load()

	var path, imageURL, outDir, ext, configPath, cascadePath string
	var backend, backendURL, model string
	var addr string
	var scale float64
	var quality int
	var serve, debug, testVision bool

	flag.StringVar(&path, "path", "", "input image path (jpg/png/webp)")
	flag.StringVar(&imageURL, "url", "", "input image URL")
	flag.Float64Var(&scale, "scale", overlay.DefaultScale, "overlay enlargement relative to the face box")
	flag.StringVar(&outDir, "out", ".", "output directory")
	flag.StringVar(&ext, "ext", "", "output format: jpg|png|gif|webp (default: keep input format)")
	flag.IntVar(&quality, "quality", 85, "JPEG/WebP output quality (1-100)")

	flag.BoolVar(&serve, "serve", false, "run as an HTTP server instead of processing one image")
	flag.StringVar(&addr, "addr", ":8080", "listen address for server mode")

	flag.StringVar(&backend, "backend", "", "remote detection backend: ollama or llamacpp (default: embedded cascade)")
	flag.StringVar(&backendURL, "backend-url", envDefault("STRANGEWAY_BACKEND_URL", ""), "remote backend server URL")
	flag.StringVar(&model, "model", "openbmb/minicpm-v4.5", "vision model name for remote backends")
	flag.BoolVar(&testVision, "test-vision", false, "send a test image to the remote backend and exit")

	flag.StringVar(&cascadePath, "cascade", "", "detection cascade file (default: embedded cascade)")
	flag.StringVar(&configPath, "config", "", "config file path (default: ~/.config/strangeway/config.json if present)")
	flag.BoolVar(&debug, "debug", false, "also write an overlay image showing the detected boxes")

	flag.Parse()

	cfg := config.Default()
	if configPath == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			configPath = p
		}
	}
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Environment overrides the config file
	if v := os.Getenv("STRANGEWAY_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("STRANGEWAY_CASCADE"); v != "" {
		cfg.Detector.CascadePath = v
	}

	// Flags given on the command line win over environment and config file
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "scale":
			cfg.Overlay.Scale = scale
		case "addr":
			cfg.Server.ListenAddr = addr
		case "quality":
			cfg.Processor.DefaultQuality = quality
		case "ext":
			cfg.Output.DefaultFormat = ext
		case "out":
			cfg.Output.OutputDir = outDir
		case "cascade":
			cfg.Detector.CascadePath = cascadePath
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	filter, err := buildFilter(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if testVision && backend == "" {
		log.Fatal("-test-vision requires -backend ollama or llamacpp")
	}

	// Create the remote detection client when a backend is requested
	if backend != "" {
		var visionClient client.VisionClient

		switch backend {
		case "ollama":
			if backendURL == "" {
				backendURL = "http://localhost:11435/api/chat"
			}
			visionClient, err = ollama.NewClient(backendURL)
			if err != nil {
				log.Fatalf("Failed to create Ollama client: %v", err)
			}
		case "llamacpp":
			if backendURL == "" {
				backendURL = "http://localhost:8080"
			}
			visionClient, err = llamacpp.NewClient(backendURL)
			if err != nil {
				log.Fatalf("Failed to create llama.cpp client: %v", err)
			}
		default:
			log.Fatalf("Unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
		}

		detector := detection.NewDetector(visionClient)

		if testVision {
			runVisionTest(detector, model)
			return
		}

		filter.SetRemoteDetector(detector, model)
	}

	if serve {
		srvConfig := server.DefaultConfig()
		srvConfig.Addr = cfg.Server.ListenAddr
		srvConfig.Scale = cfg.Overlay.Scale
		srvConfig.Quality = cfg.Processor.DefaultQuality

		log.Printf("listening on %s", srvConfig.Addr)
		if err := server.New(filter, srvConfig).Start(); err != nil {
			log.Fatal(err)
		}
		return
	}

	source := path
	if source == "" {
		source = imageURL
	}
	if source == "" {
		log.Fatalf("usage: %s -path input.jpg | -url https://... [-scale 0.55] [-out dir] [-ext jpg|png|gif|webp] [-serve [-addr :8080]] [-backend ollama|llamacpp]",
			filepath.Base(os.Args[0]))
	}
	if path != "" && imageURL != "" {
		log.Fatal("use either -path or -url, not both")
	}
	if path != "" && !utils.IsImageFile(path) {
		log.Printf("warning: %s does not have a known image extension", path)
	}

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		log.Fatal(err)
	}

	img, format, err := filter.LoadImageSmart(source)
	if err != nil {
		log.Fatal(err)
	}

	if err := filter.ValidateImage(img); err != nil {
		log.Fatal(err)
	}

	result, err := filter.Process(img)
	if err != nil {
		log.Fatal(err)
	}
	result.Source = source
	result.Format = format

	log.Printf("detected %d faces in %dx%d image", len(result.Faces), result.Info.Width, result.Info.Height)

	if debug {
		dbg := filter.CreateDebugOverlay(img, result.Faces)
		dbgPath := filepath.Join(cfg.Output.OutputDir, "debug_overlay.png")
		if err := filter.SaveImage(dbg, dbgPath, "png", 92, false); err != nil {
			log.Printf("debug overlay save failed: %v", err)
		} else {
			log.Printf("wrote %s", dbgPath)
		}
	}

	outputPath, err := filter.SaveResult(result, cfg.Output.OutputDir, cfg.Output.DefaultFormat)
	if err != nil {
		log.Fatal(err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		log.Printf("wrote %s (%s)", outputPath, utils.FormatFileSize(info.Size()))
	}

	fmt.Println(outputPath)
}

// buildFilter assembles the filter from the effective configuration
func buildFilter(cfg *config.Config) (*strangeway.Filter, error) {
	visionConfig := vision.DefaultConfig()
	visionConfig.MinSize = cfg.Detector.MinSize
	visionConfig.MaxSize = cfg.Detector.MaxSize
	visionConfig.ShiftFactor = cfg.Detector.ShiftFactor
	visionConfig.ScaleFactor = cfg.Detector.ScaleFactor
	visionConfig.IoUThreshold = cfg.Detector.IoUThreshold
	visionConfig.Angle = cfg.Detector.Angle
	visionConfig.ScoreThreshold = float32(cfg.Detector.ScoreThreshold)

	processorOptions := processing.DefaultOptions()
	processorOptions.HTTPTimeout = time.Duration(cfg.Processor.HTTPTimeoutSeconds) * time.Second
	processorOptions.UserAgent = cfg.Processor.UserAgent
	processorOptions.Quality = cfg.Processor.DefaultQuality
	processorOptions.MinImageSize = cfg.Processor.MinImageSize

	filter, err := strangeway.NewWithConfig(visionConfig, overlay.Config{Scale: cfg.Overlay.Scale}, processorOptions)
	if err != nil {
		return nil, err
	}

	if cfg.Detector.CascadePath != "" {
		detector, err := vision.NewFromFile(cfg.Detector.CascadePath, visionConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load cascade %s: %w", cfg.Detector.CascadePath, err)
		}
		filter.SetDetector(detector)
	}

	return filter, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// runVisionTest sends a small test image to the backend and prints the reply
func runVisionTest(detector *detection.Detector, model string) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))

	data, err := processing.NewProcessor().EncodeImage(img, "jpg", 85)
	if err != nil {
		log.Fatalf("Failed to encode test image: %v", err)
	}

	reply, err := detector.TestVision(context.Background(), model, data)
	if err != nil {
		log.Fatalf("Vision test failed: %v", err)
	}

	log.Printf("model replied: %s", reply)
}
