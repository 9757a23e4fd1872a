package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	yml "gopkg.in/yaml.v2"

	"github.com/areaDetector/ADProsilica/generichttp"
	"github.com/areaDetector/ADProsilica/imgrec"
	"github.com/areaDetector/ADProsilica/logging"
	"github.com/areaDetector/ADProsilica/prosilica"
	"github.com/areaDetector/ADProsilica/pvapi"
	"github.com/areaDetector/ADProsilica/pvapi/pvsim"
	"github.com/areaDetector/ADProsilica/server/middleware/locker"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "pshttp.yml"
	k              = koanf.New(".")
)

type recorder struct {
	// Root is the root folder to write to.  Each camera writes below Root/<name>
	Root string `yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix"`

	// Format is fits or tiff
	Format string `yaml:"Format"`

	// Enabled turns on writing of every image served in fits format
	Enabled bool `yaml:"Enabled"`
}

type cameraConfig struct {
	// Name is the URL prefix of the camera
	Name string `yaml:"Name"`

	// UniqueID is the camera's id on the GigE network
	UniqueID uint32 `yaml:"UniqueID"`

	// BootupArgs are parameters written once the camera connects, keyed by parameter name
	BootupArgs map[string]interface{} `yaml:"BootupArgs"`
}

type config struct {
	Addr           string         `yaml:"Addr"`
	Root           string         `yaml:"Root"`
	Simulate       bool           `yaml:"Simulate"`
	Cameras        []cameraConfig `yaml:"Cameras"`
	MaxBuffers     int            `yaml:"MaxBuffers"`
	MaxMemory      int            `yaml:"MaxMemory"`
	DeliveryQueue  int            `yaml:"DeliveryQueue"`
	StatsInterval  string         `yaml:"StatsInterval"`
	ConnectTimeout string         `yaml:"ConnectTimeout"`
	LogLevel       string         `yaml:"LogLevel"`
	Recorder       recorder       `yaml:"Recorder"`
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:     ":8000",
		Root:     "/",
		Simulate: true,
		Cameras: []cameraConfig{{Name: "psl", UniqueID: 51000,
			BootupArgs: map[string]interface{}{
				"NumImages":   1,
				"AcquireTime": 0.01}}},
		MaxBuffers:     0,
		MaxMemory:      0,
		DeliveryQueue:  prosilica.DefaultDeliveryQueue,
		StatsInterval:  "5s",
		ConnectTimeout: "30s",
		LogLevel:       "info",
		Recorder:       recorder{Root: "images", Prefix: "img", Format: imgrec.FITS}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `pshttp exposes control of Prosilica GigE cameras over HTTP
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	pshttp <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `pshttp is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Keys are not case-sensitive.
The command mkconf generates the configuration file with the default values.

Each entry in Cameras is served below Root/<Name>, for example /psl/image.
GET /<Name>/endpoints lists the routes of a camera.  Prometheus metrics are
served at /metrics.

If a camera cannot be opened at bootup, pshttp keeps retrying until
ConnectTimeout passes, then serves the camera disconnected; POST /<Name>/connect
tries again.  A camera opened by another program as master is not retried.

BootupArgs are written to a camera once it connects.  Keys are parameter names
as listed by GET /<Name>/param, for example NumImages or AcquireTime.  A
parameter that fails is logged and the rest are still applied.

Simulate serves simulated cameras; this build carries no binding to the
vendor SDK, so Simulate must be true.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("pshttp version %v\n", Version)
}

func gateway(cfg config) (pvapi.Gateway, error) {
	if !cfg.Simulate {
		return nil, errors.New("built without PvAPI support, set Simulate: true")
	}
	cams := make([]pvsim.Camera, len(cfg.Cameras))
	for i, c := range cfg.Cameras {
		cams[i] = pvsim.DefaultCamera(c.UniqueID)
	}
	return pvsim.New(cams...), nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q: %w", s, err)
	}
	return d, nil
}

func run() error {
	cfg := config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	statsInterval, err := parseDuration(cfg.StatsInterval)
	if err != nil {
		return err
	}
	timeout, err := parseDuration(cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	logger, err := logging.New("pshttp", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := gateway(cfg)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry := prosilica.NewRegistry(gw, prosilica.Config{
		MaxBuffers:    cfg.MaxBuffers,
		MaxMemory:     cfg.MaxMemory,
		DeliveryQueue: cfg.DeliveryQueue,
		StatsInterval: statsInterval,
		Logger:        logger,
		Metrics:       prosilica.NewMetrics(reg),
	})
	defer registry.Close()

	// clean up the submux string
	hndlrS := generichttp.SubMuxSanitize(cfg.Root)
	top := chi.NewRouter()
	mux := chi.NewRouter()
	top.Mount(hndlrS, mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range cfg.Cameras {
		args := cfg.Recorder
		rec, err := imgrec.New(filepath.Join(args.Root, c.Name), args.Prefix, args.Format)
		if err != nil {
			return err
		}
		rec.Enabled = args.Enabled
		d, err := registry.Create(c.Name, c.UniqueID, func(pc *prosilica.Config) { pc.Writer = rec })
		if err != nil {
			return err
		}
		rec.Metadata = d.CollectHeaderMetadata

		w := prosilica.NewHTTPWrapper(d, rec)
		imgrec.NewHTTPWrapper(rec).Inject(w)
		l := locker.New()
		locker.Inject(w, l)
		sub := chi.NewRouter()
		sub.Use(l.Check)
		w.RT().Bind(sub)
		mux.Mount(generichttp.SubMuxSanitize(c.Name), sub)

		name, boot := c.Name, c.BootupArgs
		g.Go(func() error {
			err := d.ConnectWithRetry(ctx, timeout)
			if err != nil {
				logger.Warnw("camera not connected, serving it disconnected", "camera", name, "error", err)
				return nil
			}
			if err := d.Configure(boot); err != nil {
				logger.Warnw("some bootup args were not applied", "camera", name, "error", err)
			}
			return nil
		})
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: top}
	g.Go(func() error {
		logger.Infow("now listening for requests", "addr", cfg.Addr+hndlrS)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	logger.Info("shutting down")
	return err
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		if err := run(); err != nil {
			log.Fatal(err)
		}
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
