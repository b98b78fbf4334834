package store

import (
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Configuration of the store service.
//
// to get `Config` instance, use `TrySeal(*ConfigMarshall)` or `Unmarshal`.
type Config struct {
	port    int32
	cluster *ClusterConfig
	service *ServiceConfig
	worker  *WorkerConfig
	scaling *ScalingConfig
	polling *PollingConfig
	session *SessionConfig
	auth    *AuthConfig
}

// port where the service listens.
func (c *Config) Port() int32 {
	return c.port
}

func (c *Config) Cluster() *ClusterConfig {
	return c.cluster
}

func (c *Config) Service() *ServiceConfig {
	return c.service
}

func (c *Config) Worker() *WorkerConfig {
	return c.worker
}

func (c *Config) Scaling() *ScalingConfig {
	return c.scaling
}

func (c *Config) Polling() *PollingConfig {
	return c.polling
}

func (c *Config) Session() *SessionConfig {
	return c.session
}

func (c *Config) Auth() *AuthConfig {
	return c.auth
}

type ClusterConfig struct {
	namespace string
}

// k8s namespace where worker pools are deployed.
func (c *ClusterConfig) Namespace() string {
	return c.namespace
}

type ServiceConfig struct {
	name string
}

// Name is the value of the service-wide label put on all worker pools of this service.
func (s *ServiceConfig) Name() string {
	return s.name
}

type WorkerConfig struct {
	image      name.Reference
	port       int32
	namePrefix string
	cpu        *resource.Quantity
	memory     *resource.Quantity
	root       string
	claim      string
}

// image of copy workers.
func (w *WorkerConfig) Image() name.Reference {
	return w.image
}

// port where copy workers listen.
func (w *WorkerConfig) Port() int32 {
	return w.port
}

// prefix of worker pool names.
func (w *WorkerConfig) NamePrefix() string {
	return w.namePrefix
}

// cpu request & limit of a worker. nil if not configured.
func (w *WorkerConfig) CPU() *resource.Quantity {
	return w.cpu
}

// memory request & limit of a worker. nil if not configured.
func (w *WorkerConfig) Memory() *resource.Quantity {
	return w.memory
}

// directory in worker containers where files are copied into. default = "/data"
func (w *WorkerConfig) Root() string {
	return w.root
}

// PersistentVolumeClaim mounted at Root. Empty means an emptyDir volume.
func (w *WorkerConfig) VolumeClaim() string {
	return w.claim
}

type ScalingConfig struct {
	strategy int
	cap      int
}

// code of the initial scaling strategy.
func (s *ScalingConfig) Strategy() int {
	return s.strategy
}

func (s *ScalingConfig) Cap() int {
	return s.cap
}

type PollingConfig struct {
	readiness  *IntervalConfig
	probe      *IntervalConfig
	completion *IntervalConfig
}

// polling for worker pool readiness.
func (p *PollingConfig) Readiness() *IntervalConfig {
	return p.readiness
}

// polling for worker idleness before dispatch.
func (p *PollingConfig) Probe() *IntervalConfig {
	return p.probe
}

// polling for completion after dispatch.
func (p *PollingConfig) Completion() *IntervalConfig {
	return p.completion
}

type IntervalConfig struct {
	interval time.Duration
	timeout  time.Duration
}

func (i *IntervalConfig) Interval() time.Duration {
	return i.interval
}

func (i *IntervalConfig) Timeout() time.Duration {
	return i.timeout
}

type SessionConfig struct {
	ttl           time.Duration
	sweepInterval time.Duration
}

// sessions older than this are evicted.
func (s *SessionConfig) TTL() time.Duration {
	return s.ttl
}

func (s *SessionConfig) SweepInterval() time.Duration {
	return s.sweepInterval
}

type AuthConfig struct {
	publicKeys    []string
	usernameClaim string
	trustedHeader string
}

// paths to PEM files of RS256 public keys. Empty means no token verification.
func (a *AuthConfig) PublicKeys() []string {
	return append([]string{}, a.publicKeys...)
}

func (a *AuthConfig) UsernameClaim() string {
	return a.usernameClaim
}

// request header carrying username when no public keys are configured.
func (a *AuthConfig) TrustedHeader() string {
	return a.trustedHeader
}
