package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/laguz/featureflag"
	laguzhttp "github.com/aukilabs/laguz/http"
	"github.com/aukilabs/laguz/models"
	"github.com/aukilabs/laguz/quadtree"
	"github.com/aukilabs/laguz/smoketest"
	lwebsocket "github.com/aukilabs/laguz/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Laguz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "laguz_info",
		Help:        "Laguz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"LAGUZ_ADDR"                  help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"LAGUZ_ADMIN_ADDR"            help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"LAGUZ_PUBLIC_ENDPOINT"       help:"The public endpoint where this Laguz server is reachable."`
	LogLevel           string        `cli:""        env:"LAGUZ_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"LAGUZ_LOG_INDENT"            help:"Indent logs."`
	DefaultIndex       indexConfig   `cli:""        env:"-"                           help:"Index created at startup."`
	MaxNeighbors       int           `cli:",hidden" env:"LAGUZ_MAX_NEIGHBORS"         help:"The maximum k accepted by nearest neighbors queries."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"LAGUZ_CLIENT_IDLE_TIMEOUT"   help:"Time until an idle realtime client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"LAGUZ_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                           help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"LAGUZ_FEATURE_FLAGS"         help:"Comma separated feature flags."`
	Version            bool          `cli:""        env:"-"                           help:"Show version."`
	Help               bool          `cli:""        env:"-"                           help:"Show help."`
}

type indexConfig struct {
	Name   string `cli:"" env:"LAGUZ_DEFAULT_INDEX_NAME"   help:"The name of the index created at startup."`
	Domain string `cli:"" env:"LAGUZ_DEFAULT_INDEX_DOMAIN" help:"The domain of the index created at startup, formatted as minX,minY,maxX,maxY. Empty disables the index."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"LAGUZ_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"LAGUZ_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"LAGUZ_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"LAGUZ_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:           ":4000",
		AdminAddr:      ":18190",
		PublicEndpoint: "http://localhost:4000",
		LogLevel:       logs.InfoLevel.String(),
		DefaultIndex: indexConfig{
			Name:   "default",
			Domain: "0,0,100,100",
		},
		MaxNeighbors:       1000,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Laguz server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "laguz",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	var indexes models.IndexStore
	featureFlags.IfSet(featureflag.FlagDisableKNNPruning, func() {
		indexes.TreeOptions = append(indexes.TreeOptions, quadtree.WithoutPruning())
	})

	if conf.DefaultIndex.Domain != "" {
		domain, err := parseDomain(conf.DefaultIndex.Domain)
		if err != nil {
			logs.Fatal(err)
		}

		idx, err := indexes.Create(conf.DefaultIndex.Name, domain)
		if err != nil {
			logs.Fatal(errors.New("creating default index failed").Wrap(err))
		}

		logs.WithTag("index_id", idx.ID).
			WithTag("name", idx.Name).
			WithTag("domain", domain).
			Info("default index created")
	}

	var service http.ServeMux

	api := laguzhttp.API{
		Indexes:      &indexes,
		MaxNeighbors: conf.MaxNeighbors,
	}
	api.Register(&service)

	service.HandleFunc("/health", laguzhttp.HandleHealthCheck)
	service.HandleFunc("/version", laguzhttp.HandleVersion(version))

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}
	service.HandleFunc("/ready", laguzhttp.HandleReadyCheck(readinessCheck))

	featureFlags.IfNotSet(featureflag.FlagDisableRealtime, func() {
		service.Handle("/realtime", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h lwebsocket.Handler = &lwebsocket.RealtimeHandler{
					ClientIdleTimeout: conf.ClientIdleTimeout,
					Indexes:           &indexes,
					MaxNeighbors:      conf.MaxNeighbors,
					FeatureFlags:      featureFlags,
				}
				h = lwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = lwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
				defer h.Close()

				lwebsocket.Handle(ctx, conn, h)
			},
		})

		service.Handle("/ping", websocket.Server{
			Handler: func(ws *websocket.Conn) {
				defer ws.Close()
				io.Copy(ws, ws)
			},
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", laguzhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", laguzhttp.HandleReadyCheck(readinessCheck))

	featureFlags.IfNotSet(featureflag.FlagDisableRealtime, func() {
		admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
			Endpoint:  realtimeEndpoint(conf.PublicEndpoint),
			Origin:    conf.PublicEndpoint,
			UserAgent: fmt.Sprintf("Laguz %s", version),
			Indexes:   &indexes,
		}))
	})

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", featureFlags.List()).
		Info("starting laguz server")

	laguzhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(
			laguzhttp.HandleWithCORS(&service),
			laguzhttp.MetricsPathFormatter,
		)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.MaxNeighbors <= 0 {
		return errors.New("max neighbors must be greater than zero").
			WithTag("max_neighbors", conf.MaxNeighbors)
	}

	if conf.DefaultIndex.Domain != "" {
		if _, err := parseDomain(conf.DefaultIndex.Domain); err != nil {
			return err
		}
	}

	return nil
}

// parseDomain parses a domain formatted as minX,minY,maxX,maxY.
func parseDomain(s string) (quadtree.Domain, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return quadtree.Domain{}, errors.New("invalid index domain").
			WithTag("domain", s)
	}

	var bounds [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return quadtree.Domain{}, errors.New("invalid index domain bound").
				WithTag("domain", s).
				WithTag("bound", p).
				Wrap(err)
		}
		bounds[i] = v
	}

	domain := quadtree.Domain{
		MinX: bounds[0],
		MinY: bounds[1],
		MaxX: bounds[2],
		MaxY: bounds[3],
	}
	if err := domain.Validate(); err != nil {
		return quadtree.Domain{}, errors.New("invalid index domain").
			WithTag("domain", s).
			Wrap(err)
	}
	return domain, nil
}

// realtimeEndpoint returns the WebSocket url of the realtime endpoint served
// behind the given public endpoint.
func realtimeEndpoint(publicEndpoint string) string {
	endpoint := strings.TrimSuffix(publicEndpoint, "/") + "/realtime"

	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}
