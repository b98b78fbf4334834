package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	DefaultPort          = 5678
	DefaultWorkerPort    = 5679
	DefaultNamePrefix    = "copy-worker-"
	DefaultServiceName   = "storesvc"
	DefaultWorkerRoot    = "/data"
	DefaultUsernameClaim = "preferred_username"
	DefaultTrustedHeader = "X-Forwarded-User"
	DefaultCap           = 4
)

var (
	DefaultReadiness  = IntervalConfigMarshall{Interval: "500ms", Timeout: "5m"}
	DefaultProbe      = IntervalConfigMarshall{Interval: "500ms", Timeout: "5m"}
	DefaultCompletion = IntervalConfigMarshall{Interval: "2s", Timeout: "24h"}
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/store.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of the store service.
//
// This type is marshalling value and mutable.
// Unlike `Config`, sections other than cluster and worker are optional.
type ConfigMarshall struct {
	Port    int32                  `yaml:"port,omitempty"`
	Cluster *ClusterConfigMarshall `yaml:"cluster"`
	Service *ServiceConfigMarshall `yaml:"service,omitempty"`
	Worker  *WorkerConfigMarshall  `yaml:"worker"`
	Scaling *ScalingConfigMarshall `yaml:"scaling,omitempty"`
	Polling *PollingConfigMarshall `yaml:"polling,omitempty"`
	Session *SessionConfigMarshall `yaml:"session,omitempty"`
	Auth    *AuthConfigMarshall    `yaml:"auth,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	return &Config{
		port:    or(c.Port, DefaultPort),
		cluster: nonnil(c.Cluster, path+".cluster").trySeal(path + ".cluster"),
		service: orNew(c.Service).trySeal(path + ".service"),
		worker:  nonnil(c.Worker, path+".worker").trySeal(path + ".worker"),
		scaling: orNew(c.Scaling).trySeal(path + ".scaling"),
		polling: orNew(c.Polling).trySeal(path + ".polling"),
		session: orNew(c.Session).trySeal(path + ".session"),
		auth:    orNew(c.Auth).trySeal(path + ".auth"),
	}
}

type ClusterConfigMarshall struct {
	Namespace string `yaml:"namespace"`
}

func (c *ClusterConfigMarshall) trySeal(path string) *ClusterConfig {
	return &ClusterConfig{
		namespace: required(c.Namespace, path+".namespace"),
	}
}

type ServiceConfigMarshall struct {
	Name string `yaml:"name,omitempty"`
}

func (s *ServiceConfigMarshall) trySeal(string) *ServiceConfig {
	return &ServiceConfig{name: or(s.Name, DefaultServiceName)}
}

type WorkerConfigMarshall struct {
	Image      string                   `yaml:"image"`
	Port       int32                    `yaml:"port,omitempty"`
	NamePrefix string                   `yaml:"namePrefix,omitempty"`
	Resources  *ResourcesConfigMarshall `yaml:"resources,omitempty"`
	Storage    *StorageConfigMarshall   `yaml:"storage,omitempty"`
}

type StorageConfigMarshall struct {
	Root        string `yaml:"root,omitempty"`
	VolumeClaim string `yaml:"volumeClaim,omitempty"`
}

type ResourcesConfigMarshall struct {
	CPU    string `yaml:"cpu,omitempty"`
	Memory string `yaml:"memory,omitempty"`
}

func (w *WorkerConfigMarshall) trySeal(path string) *WorkerConfig {
	ref, err := name.ParseReference(required(w.Image, path+".image"))
	if err != nil {
		panic(fmt.Errorf("%s.image is not an image reference: %w", path, err))
	}

	res := orNew(w.Resources)
	storage := orNew(w.Storage)
	root := or(storage.Root, DefaultWorkerRoot)
	if !strings.HasPrefix(root, "/") {
		panic(fmt.Errorf("%s.storage.root should be an absolute path: %s", path, root))
	}
	return &WorkerConfig{
		image:      ref,
		port:       or(w.Port, DefaultWorkerPort),
		namePrefix: or(w.NamePrefix, DefaultNamePrefix),
		cpu:        quantity(res.CPU, path+".resources.cpu"),
		memory:     quantity(res.Memory, path+".resources.memory"),
		root:       root,
		claim:      storage.VolumeClaim,
	}
}

type ScalingConfigMarshall struct {
	Strategy int `yaml:"strategy,omitempty"`
	Cap      int `yaml:"cap,omitempty"`
}

func (s *ScalingConfigMarshall) trySeal(path string) *ScalingConfig {
	if s.Cap < 0 {
		panic(path + ".cap should be positive")
	}
	return &ScalingConfig{
		strategy: s.Strategy,
		cap:      or(s.Cap, DefaultCap),
	}
}

type PollingConfigMarshall struct {
	Readiness  *IntervalConfigMarshall `yaml:"readiness,omitempty"`
	Probe      *IntervalConfigMarshall `yaml:"probe,omitempty"`
	Completion *IntervalConfigMarshall `yaml:"completion,omitempty"`
}

func (p *PollingConfigMarshall) trySeal(path string) *PollingConfig {
	return &PollingConfig{
		readiness:  orDefault(p.Readiness, DefaultReadiness).trySeal(path + ".readiness"),
		probe:      orDefault(p.Probe, DefaultProbe).trySeal(path + ".probe"),
		completion: orDefault(p.Completion, DefaultCompletion).trySeal(path + ".completion"),
	}
}

type IntervalConfigMarshall struct {
	Interval string `yaml:"interval,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
}

func (i *IntervalConfigMarshall) trySeal(path string) *IntervalConfig {
	return &IntervalConfig{
		interval: duration(i.Interval, path+".interval"),
		timeout:  duration(i.Timeout, path+".timeout"),
	}
}

type SessionConfigMarshall struct {
	TTL           string `yaml:"ttl,omitempty"`
	SweepInterval string `yaml:"sweepInterval,omitempty"`
}

func (s *SessionConfigMarshall) trySeal(path string) *SessionConfig {
	ttl := duration(s.TTL, path+".ttl")
	sweep := duration(s.SweepInterval, path+".sweepInterval")
	return &SessionConfig{
		ttl:           or(ttl, DefaultTTL),
		sweepInterval: or(sweep, DefaultSweepInterval),
	}
}

type AuthConfigMarshall struct {
	PublicKeys    []string `yaml:"publicKeys,omitempty"`
	UsernameClaim string   `yaml:"usernameClaim,omitempty"`
	TrustedHeader string   `yaml:"trustedHeader,omitempty"`
}

func (a *AuthConfigMarshall) trySeal(path string) *AuthConfig {
	for n, k := range a.PublicKeys {
		required(k, fmt.Sprintf("%s.publicKeys[%d]", path, n))
	}
	return &AuthConfig{
		publicKeys:    append([]string{}, a.PublicKeys...),
		usernameClaim: or(a.UsernameClaim, DefaultUsernameClaim),
		trustedHeader: or(a.TrustedHeader, DefaultTrustedHeader),
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func or[T comparable](v T, d T) T {
	if v == *new(T) {
		return d
	}
	return v
}

func orNew[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

// fill empty fields of v with d.
func orDefault(v *IntervalConfigMarshall, d IntervalConfigMarshall) *IntervalConfigMarshall {
	if v == nil {
		return &d
	}
	return &IntervalConfigMarshall{
		Interval: or(v.Interval, d.Interval),
		Timeout:  or(v.Timeout, d.Timeout),
	}
}

// empty is zero.
func duration(s string, path string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if d < 0 {
		panic(path + " should not be negative")
	}
	return d
}

// empty is nil.
func quantity(s string, path string) *resource.Quantity {
	if s == "" {
		return nil
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	return &q
}
