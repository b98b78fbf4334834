package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/auth"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/buildtime"
	configs "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/configs/store"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/distributor"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/orchestrator"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/scaling"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/filewatch"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/k8s"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/workerpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	kubecore "k8s.io/api/core/v1"
)

func main() {
	pconfig := flag.String(
		"config", os.Getenv("STORE_CONFIG"), "path to config file",
	)
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")
	pversion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *pversion {
		fmt.Println(buildtime.VersionString())
		return
	}

	logger := log.New("storesvc")
	lvl, ok := parseLogLevel(*loglevel)
	logger.SetLevel(lvl)
	if !ok {
		logger.Warnf("unknown loglevel: %s . fall-backed to warn", *loglevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf, err := configs.LoadConfig(*pconfig)
	if err != nil {
		logger.Fatalf("failed to load config %s: %s", *pconfig, err)
	}

	// the supervisor restarts this with the new config.
	wctx, wcancel, err := filewatch.UntilModified(ctx, *pconfig)
	if err != nil {
		logger.Fatalf("failed to watch config %s: %s", *pconfig, err)
	}
	defer wcancel()
	ctx = wctx

	clientset, err := k8s.ConnectToK8s()
	if err != nil {
		logger.Fatalf("failed to connect to k8s: %s", err)
	}
	cluster := k8s.AttachCluster(k8s.WrapK8sClient(clientset), conf.Cluster().Namespace())

	authn, err := authenticator(conf.Auth())
	if err != nil {
		logger.Fatalf("failed to load keys: %s", err)
	}

	os.Exit(run(ctx, conf, cluster, authn, logger))
}

func authenticator(conf *configs.AuthConfig) (echo.MiddlewareFunc, error) {
	keys := conf.PublicKeys()
	if len(keys) == 0 {
		return auth.TrustedHeader(conf.TrustedHeader()), nil
	}
	opts, err := auth.LoadPublicKeys(keys...)
	if err != nil {
		return nil, err
	}
	opts = append(opts, auth.WithUsernameClaim(conf.UsernameClaim()))
	return auth.Middleware(auth.NewVerifier(opts...)), nil
}

// resources of a copy worker. Requests and limits are the same.
func resources(conf *configs.WorkerConfig) kubecore.ResourceRequirements {
	list := kubecore.ResourceList{}
	if cpu := conf.CPU(); cpu != nil {
		list[kubecore.ResourceCPU] = *cpu
	}
	if mem := conf.Memory(); mem != nil {
		list[kubecore.ResourceMemory] = *mem
	}
	if len(list) == 0 {
		return kubecore.ResourceRequirements{}
	}
	return kubecore.ResourceRequirements{Requests: list, Limits: list.DeepCopy()}
}

func polling(conf *configs.IntervalConfig) orchestrator.Polling {
	return orchestrator.Polling{Interval: conf.Interval(), Timeout: conf.Timeout()}
}

// run serves until ctx is done. It returns exit code.
func run(ctx context.Context, conf *configs.Config, cluster k8s.Cluster, authn echo.MiddlewareFunc, logger *log.Logger) int {
	pools := workerpool.New(
		cluster,
		workerpool.Config{
			ServiceName:       conf.Service().Name(),
			NamePrefix:        conf.Worker().NamePrefix(),
			Image:             conf.Worker().Image().Name(),
			Port:              conf.Worker().Port(),
			Resources:         resources(conf.Worker()),
			Root:              conf.Worker().Root(),
			VolumeClaim:       conf.Worker().VolumeClaim(),
			ReadinessInterval: conf.Polling().Readiness().Interval(),
			ReadinessTimeout:  conf.Polling().Readiness().Timeout(),
		},
		workerpool.WithLogger(logger),
	)
	dist := distributor.New(distributor.WithLogger(logger))
	store := session.NewStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	replicaCap := conf.Scaling().Cap()
	orch := orchestrator.New(
		store, pools, dist,
		orchestrator.WithCap(replicaCap),
		orchestrator.WithStrategy(scaling.FromCode(scaling.Code(conf.Scaling().Strategy()), replicaCap)),
		orchestrator.WithProbePolling(polling(conf.Polling().Probe())),
		orchestrator.WithCompletionPolling(polling(conf.Polling().Completion())),
		orchestrator.WithServiceName(conf.Service().Name()),
		orchestrator.WithBaseContext(ctx),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(reg),
	)

	{
		cctx, ccancel := context.WithTimeout(ctx, time.Minute)
		if _, err := orch.CleanupOrphans(cctx); err != nil {
			logger.Warnf("failed to delete orphan worker pools: %s", err)
		}
		ccancel()
	}

	sweeper := session.NewSweeper(
		store, conf.Session().TTL(),
		session.WithSweepInterval(conf.Session().SweepInterval()),
		session.BeforeEvict(orch.Reclaim),
		session.WithSweeperLogger(logger),
	)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("sweeper stops with error: %s", err)
		}
	}()

	server := BuildServer(store, orch, session.TokenProvider{}, authn, reg, logger)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := server.Start(fmt.Sprintf(":%d", conf.Port())); err != nil && err != http.ErrServerClosed {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		cause := context.Cause(ctx)
		if mod := new(filewatch.ErrModified); errors.As(cause, &mod) {
			server.Logger.Infof("config has been changed: %s", mod)
		} else {
			server.Logger.Infof("context has been done: %s, cause: %s", ctx.Err(), cause)
			exit = 1
		}
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	server.Logger.Info("shutting down...")
	qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer qcancel()
	if err := server.Shutdown(qctx); err != nil {
		server.Logger.Errorf("Shutdown with error. %+v", err)
		return 1
	}
	return exit
}
