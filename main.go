package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/martin-sucha/proxy-listing/api"
	"github.com/martin-sucha/proxy-listing/config"
	"github.com/martin-sucha/proxy-listing/httpserver"
	"github.com/martin-sucha/proxy-listing/listing"
	"github.com/martin-sucha/proxy-listing/logging"
	"github.com/martin-sucha/proxy-listing/metrics"
	"github.com/martin-sucha/proxy-listing/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	configFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "load environment variables from `FILE` (default .env)",
		},
		&cli.StringFlag{
			Name:  "alias-sites",
			Usage: "directory scanned for Alias directives",
		},
		&cli.StringFlag{
			Name:  "proxy-sites",
			Usage: "directory scanned for x-ipstudio and x-nmos locations",
		},
	}
	return &cli.App{
		Name:  "proxy-listing",
		Usage: "List reverse proxy targets configured in apache2 sites",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the listings over HTTP until interrupted",
				Action: doServe,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "host:port to listen on",
					},
				}, configFlags...),
			},
			{
				Name:      "list",
				Usage:     "print a listing",
				ArgsUsage: "[root|x-ipstudio|x-nmos]",
				Action:    doList,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "one of text, json or yaml",
						Value: "text",
					},
				}, configFlags...),
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("alias-sites") {
		cfg.AliasSites = c.String("alias-sites")
	}
	if c.IsSet("proxy-sites") {
		cfg.ProxySites = c.String("proxy-sites")
	}
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	return cfg, nil
}

func doServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := logging.New(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	scanner := &listing.Scanner{Logger: logger}
	serverOpts := httpserver.Options{
		Logger:          logger,
		RateLimit:       rate.Limit(cfg.RateLimit),
		RateBurst:       cfg.RateBurst,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New("", reg)
		scanner.Observer = m
		serverOpts.Metrics = m
		serverOpts.Gatherer = reg
	}

	svc := service.New(cfg, api.New(cfg, scanner),
		service.WithLogger(logger),
		service.WithListenerFactory(func(addr string) service.Listener {
			opts := serverOpts
			opts.Addr = addr
			return httpserver.New(opts)
		}),
	)
	return svc.Run()
}

var listPaths = map[string]string{
	"":           api.RootPath,
	"root":       api.RootPath,
	"x-ipstudio": api.IpstudioPath,
	"x-nmos":     api.NmosPath,
}

func doList(c *cli.Context) error {
	if c.Args().Len() > 1 {
		return fmt.Errorf("too many arguments")
	}
	path, ok := listPaths[strings.Trim(c.Args().First(), "/")]
	if !ok {
		return fmt.Errorf("unknown listing %q", c.Args().First())
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	scanner := &listing.Scanner{Logger: logging.New(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)}
	h, _ := api.New(cfg, scanner).Lookup(path)
	return writeListing(c.App.Writer, c.String("format"), h())
}

func writeListing(w io.Writer, format string, l listing.Listing) error {
	switch format {
	case "", "text":
		for _, entry := range l {
			if _, err := fmt.Fprintln(w, entry); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode([]string(l)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
