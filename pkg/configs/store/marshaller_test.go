package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kstore "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/configs/store"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/cmp"
	"k8s.io/apimachinery/pkg/api/resource"
)

func TestUnmarshal(t *testing.T) {
	t.Run("it loads config from yaml: ", func(t *testing.T) {
		storeYml := []byte(`
port: 12345
cluster:
  namespace: store-testing-example
service:
  name: store-testing
worker:
  image: registry.example.com/store/copy-worker:v0.0.1
  port: 8080
  namePrefix: cw-
  resources:
    cpu: 500m
    memory: 1Gi
  storage:
    root: /mnt/store
    volumeClaim: store-data
scaling:
  strategy: 3
  cap: 8
polling:
  readiness:
    interval: 1s
    timeout: 2m
  probe:
    interval: 100ms
  completion:
    interval: 10s
    timeout: 1h
session:
  ttl: 1h
  sweepInterval: 1m
auth:
  publicKeys:
    - /etc/store/keys/key1.pem
  usernameClaim: email
`)
		result, err := kstore.Unmarshal(storeYml)
		if err != nil {
			t.Fatalf("failed to parse config.: %v", err)
		}

		t.Run(".port", func(t *testing.T) {
			if actual := result.Port(); actual != 12345 {
				t.Errorf("mismatch. (actual, expected) = (%d, %d)", actual, 12345)
			}
		})

		t.Run(".cluster", func(t *testing.T) {
			if actual := result.Cluster().Namespace(); actual != "store-testing-example" {
				t.Errorf("namespace: %s", actual)
			}
		})

		t.Run(".service.name", func(t *testing.T) {
			if actual := result.Service().Name(); actual != "store-testing" {
				t.Errorf("mismatch: %s", actual)
			}
		})

		t.Run(".worker", func(t *testing.T) {
			w := result.Worker()
			if actual := w.Image().Name(); actual != "registry.example.com/store/copy-worker:v0.0.1" {
				t.Errorf("image: %s", actual)
			}
			if actual := w.Port(); actual != 8080 {
				t.Errorf("port: %d", actual)
			}
			if actual := w.NamePrefix(); actual != "cw-" {
				t.Errorf("namePrefix: %s", actual)
			}
			if actual := w.CPU(); actual == nil || !actual.Equal(resource.MustParse("500m")) {
				t.Errorf("cpu: %v", actual)
			}
			if actual := w.Memory(); actual == nil || !actual.Equal(resource.MustParse("1Gi")) {
				t.Errorf("memory: %v", actual)
			}
			if actual := w.Root(); actual != "/mnt/store" {
				t.Errorf("storage.root: %s", actual)
			}
			if actual := w.VolumeClaim(); actual != "store-data" {
				t.Errorf("storage.volumeClaim: %s", actual)
			}
		})

		t.Run(".scaling", func(t *testing.T) {
			if s, c := result.Scaling().Strategy(), result.Scaling().Cap(); s != 3 || c != 8 {
				t.Errorf("(strategy, cap) = (%d, %d)", s, c)
			}
		})

		t.Run(".polling", func(t *testing.T) {
			p := result.Polling()
			for name, testcase := range map[string]struct {
				actual   *kstore.IntervalConfig
				interval time.Duration
				timeout  time.Duration
			}{
				"readiness":  {actual: p.Readiness(), interval: time.Second, timeout: 2 * time.Minute},
				"probe":      {actual: p.Probe(), interval: 100 * time.Millisecond, timeout: 5 * time.Minute},
				"completion": {actual: p.Completion(), interval: 10 * time.Second, timeout: time.Hour},
			} {
				if testcase.actual.Interval() != testcase.interval || testcase.actual.Timeout() != testcase.timeout {
					t.Errorf(
						"%s: (interval, timeout) = (%s, %s), want (%s, %s)",
						name, testcase.actual.Interval(), testcase.actual.Timeout(),
						testcase.interval, testcase.timeout,
					)
				}
			}
		})

		t.Run(".session", func(t *testing.T) {
			if ttl, sweep := result.Session().TTL(), result.Session().SweepInterval(); ttl != time.Hour || sweep != time.Minute {
				t.Errorf("(ttl, sweepInterval) = (%s, %s)", ttl, sweep)
			}
		})

		t.Run(".auth", func(t *testing.T) {
			a := result.Auth()
			if !cmp.SliceEq(a.PublicKeys(), []string{"/etc/store/keys/key1.pem"}) {
				t.Errorf("publicKeys: %v", a.PublicKeys())
			}
			if a.UsernameClaim() != "email" {
				t.Errorf("usernameClaim: %s", a.UsernameClaim())
			}
			if a.TrustedHeader() != kstore.DefaultTrustedHeader {
				t.Errorf("trustedHeader: %s", a.TrustedHeader())
			}
		})
	})

	t.Run("it fills defaults", func(t *testing.T) {
		result, err := kstore.Unmarshal([]byte(`
cluster:
  namespace: store
worker:
  image: copy-worker:latest
`))
		if err != nil {
			t.Fatal(err)
		}

		if result.Port() != 5678 {
			t.Errorf("port: %d", result.Port())
		}
		if result.Worker().Root() != "/data" || result.Worker().VolumeClaim() != "" {
			t.Errorf("storage: (root, claim) = (%s, %s)", result.Worker().Root(), result.Worker().VolumeClaim())
		}
		if result.Service().Name() != "storesvc" {
			t.Errorf("service name: %s", result.Service().Name())
		}
		w := result.Worker()
		if w.Port() != 5679 || w.NamePrefix() != "copy-worker-" || w.CPU() != nil || w.Memory() != nil {
			t.Errorf("worker: (port, prefix, cpu, memory) = (%d, %s, %v, %v)", w.Port(), w.NamePrefix(), w.CPU(), w.Memory())
		}
		if s := result.Scaling(); s.Strategy() != 0 || s.Cap() != 4 {
			t.Errorf("scaling: (%d, %d)", s.Strategy(), s.Cap())
		}
		p := result.Polling()
		if p.Readiness().Interval() != 500*time.Millisecond || p.Readiness().Timeout() != 5*time.Minute {
			t.Errorf("readiness: (%s, %s)", p.Readiness().Interval(), p.Readiness().Timeout())
		}
		if p.Probe().Interval() != 500*time.Millisecond || p.Probe().Timeout() != 5*time.Minute {
			t.Errorf("probe: (%s, %s)", p.Probe().Interval(), p.Probe().Timeout())
		}
		if p.Completion().Interval() != 2*time.Second || p.Completion().Timeout() != 24*time.Hour {
			t.Errorf("completion: (%s, %s)", p.Completion().Interval(), p.Completion().Timeout())
		}
		if s := result.Session(); s.TTL() != 30*time.Minute || s.SweepInterval() != 5*time.Minute {
			t.Errorf("session: (%s, %s)", s.TTL(), s.SweepInterval())
		}
		if a := result.Auth(); len(a.PublicKeys()) != 0 || a.UsernameClaim() != "preferred_username" {
			t.Errorf("auth: (%v, %s)", a.PublicKeys(), a.UsernameClaim())
		}
	})

	t.Run("it rejects misconfiguration", func(t *testing.T) {
		for name, testcase := range map[string]struct {
			yaml    string
			message string
		}{
			"empty": {
				yaml:    ``,
				message: "empty",
			},
			"no cluster": {
				yaml:    "worker:\n  image: copy-worker:latest\n",
				message: "(root).cluster is required",
			},
			"no namespace": {
				yaml:    "cluster:\n  namespace: \"\"\nworker:\n  image: copy-worker:latest\n",
				message: "(root).cluster.namespace is required",
			},
			"no worker": {
				yaml:    "cluster:\n  namespace: store\n",
				message: "(root).worker is required",
			},
			"no worker image": {
				yaml:    "cluster:\n  namespace: store\nworker:\n  port: 80\n",
				message: "(root).worker.image is required",
			},
			"broken worker image": {
				yaml:    "cluster:\n  namespace: store\nworker:\n  image: \"Not An Image!\"\n",
				message: "(root).worker.image is not an image reference",
			},
			"relative storage root": {
				yaml:    "cluster:\n  namespace: store\nworker:\n  image: cw:1\n  storage:\n    root: data\n",
				message: "(root).worker.storage.root should be an absolute path",
			},
			"broken cpu": {
				yaml:    "cluster:\n  namespace: store\nworker:\n  image: cw:1\n  resources:\n    cpu: lots\n",
				message: "(root).worker.resources.cpu can not be parsed",
			},
			"broken duration": {
				yaml:    "cluster:\n  namespace: store\nworker:\n  image: cw:1\npolling:\n  probe:\n    interval: soon\n",
				message: "(root).polling.probe.interval can not be parsed",
			},
			"negative cap": {
				yaml:    "cluster:\n  namespace: store\nworker:\n  image: cw:1\nscaling:\n  cap: -1\n",
				message: "(root).scaling.cap should be positive",
			},
		} {
			t.Run(name, func(t *testing.T) {
				actual, err := kstore.Unmarshal([]byte(testcase.yaml))
				if err == nil {
					t.Fatalf("no error: %+v", actual)
				}
				if !strings.Contains(err.Error(), testcase.message) {
					t.Errorf("unexpected error: %s", err)
				}
			})
		}
	})

	t.Run("TrySeal panics on misconfiguration", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("it does not panic")
			}
		}()
		kstore.TrySeal(&kstore.ConfigMarshall{})
	})
}

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "store.yaml")
	if err := os.WriteFile(p, []byte("cluster:\n  namespace: store\nworker:\n  image: cw:1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	conf, err := kstore.LoadConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Cluster().Namespace() != "store" {
		t.Errorf("namespace: %s", conf.Cluster().Namespace())
	}

	if _, err := kstore.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("no error for missing file")
	}
}
