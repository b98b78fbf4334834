package workerpool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	derr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/domain/errors"
	xe "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/errors"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/retry"
	k8s "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/k8s"
	"github.com/labstack/gommon/log"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
)

const (
	DefaultReadinessInterval = 500 * time.Millisecond
	DefaultReadinessTimeout  = 5 * time.Minute
)

type Config struct {
	// value of the service-wide label. Worker pools of a service carry this.
	ServiceName string

	// prefix of pool names
	NamePrefix string

	// worker image
	Image string

	// port where workers listen
	Port int32

	Resources kubecore.ResourceRequirements

	// directory in worker containers where files are copied into
	Root string

	// PersistentVolumeClaim mounted at Root. If empty, an emptyDir is mounted.
	VolumeClaim string

	// interval of readiness polling
	ReadinessInterval time.Duration

	// WaitUntilReady gives up after this. Zero or negative means no timeout.
	ReadinessTimeout time.Duration
}

// Handle of a created worker pool.
type Handle struct {
	Name      string
	SessionId string
	Replicas  int32
	Selector  k8s.LabelSelector
}

// Client provisions and reclaims worker pools in the cluster.
type Client struct {
	cluster k8s.Cluster
	conf    Config
	logger  *log.Logger
}

type Option func(*Client) *Client

func WithLogger(l *log.Logger) Option {
	return func(c *Client) *Client {
		c.logger = l
		return c
	}
}

func New(cluster k8s.Cluster, conf Config, options ...Option) *Client {
	if conf.ReadinessInterval <= 0 {
		conf.ReadinessInterval = DefaultReadinessInterval
	}
	c := &Client{cluster: cluster, conf: conf, logger: log.New("workerpool")}
	for _, opt := range options {
		c = opt(c)
	}
	return c
}

// PoolName is the name of the worker pool for the session.
func (c *Client) PoolName(sessionId string) string {
	return PoolName(c.conf.NamePrefix, sessionId)
}

// CreateWorkerPool creates a worker pool for the session.
//
// # Returns
//
// - Handle: created pool
//
// - error: *ErrProvisioning when the cluster rejects the pool.
func (c *Client) CreateWorkerPool(ctx context.Context, sessionId string, replicas int) (Handle, error) {
	desc := NewDescriptor(c.conf, sessionId, int32(replicas))
	depl := desc.Build(c.cluster.Namespace())

	created, err := c.cluster.BaseClient().CreateDeployment(ctx, c.cluster.Namespace(), depl)
	if err != nil {
		return Handle{}, derr.NewProvisioning(desc.Instance(), err)
	}
	c.logger.Infof("worker pool %s is created (replicas: %d)", created.Name, replicas)

	return Handle{
		Name:      created.Name,
		SessionId: sessionId,
		Replicas:  int32(replicas),
		Selector:  desc.Selector(),
	}, nil
}

func isReady(pod kubecore.Pod) bool {
	if pod.DeletionTimestamp != nil || pod.Status.Phase != kubecore.PodRunning || pod.Status.PodIP == "" {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == kubecore.PodReady {
			return cond.Status == kubecore.ConditionTrue
		}
	}
	return false
}

// WaitUntilReady blocks until all replicas of the pool get ready, and returns their addresses.
//
// Addresses are "ip:port", sorted by pod name.
//
// # Returns
//
// - []string: addresses of workers.
//
// - error: ErrNoWorkerPool when the pool is deleted while waiting.
// ErrDeadlineExceeded when the pool does not get ready in the readiness timeout.
// ctx.Err() when ctx is done.
func (c *Client) WaitUntilReady(ctx context.Context, h Handle) ([]string, error) {
	wctx := ctx
	if 0 < c.conf.ReadinessTimeout {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, c.conf.ReadinessTimeout)
		defer cancel()
	}

	client := c.cluster.BaseClient()
	ns := c.cluster.Namespace()
	port := strconv.Itoa(int(c.conf.Port))

	addrs, err := retry.Blocking(
		wctx, retry.StaticBackoff(c.conf.ReadinessInterval),
		func(ctx context.Context) ([]string, error) {
			depl, err := client.GetDeployment(ctx, ns, h.Name)
			if kubeerr.IsNotFound(err) {
				return nil, xe.Wrap(derr.ErrNoWorkerPool)
			} else if err != nil {
				c.logger.Debugf("worker pool %s: %s", h.Name, err)
				return nil, retry.ErrRetry
			}
			if depl.Status.ReadyReplicas < h.Replicas {
				return nil, retry.ErrRetry
			}

			pods, err := client.FindPods(ctx, ns, h.Selector)
			if err != nil {
				c.logger.Debugf("worker pool %s: %s", h.Name, err)
				return nil, retry.ErrRetry
			}
			ready := []kubecore.Pod{}
			for _, p := range pods {
				if isReady(p) {
					ready = append(ready, p)
				}
			}
			if len(ready) < int(h.Replicas) {
				return nil, retry.ErrRetry
			}
			sort.Slice(ready, func(i, j int) bool { return ready[i].Name < ready[j].Name })

			addrs := make([]string, 0, h.Replicas)
			for _, p := range ready[:h.Replicas] {
				addrs = append(addrs, net.JoinHostPort(p.Status.PodIP, port))
			}
			return addrs, nil
		},
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf(
				"%w: worker pool %s is not ready in %s", derr.ErrDeadlineExceeded, h.Name, c.conf.ReadinessTimeout,
			)
		}
		return nil, err
	}
	return addrs, nil
}

// DeleteWorkerPool deletes the pool and its replica sets.
//
// Deleting missing pool is not an error.
//
// # Returns
//
// - string: outcome message
//
// - error
func (c *Client) DeleteWorkerPool(ctx context.Context, name string) (string, error) {
	return c.deletePool(ctx, c.conf.ServiceName, name)
}

func (c *Client) deletePool(ctx context.Context, service string, name string) (string, error) {
	client := c.cluster.BaseClient()
	ns := c.cluster.Namespace()

	gone := false
	if err := client.DeleteDeployment(ctx, ns, name); kubeerr.IsNotFound(err) {
		gone = true
	} else if err != nil {
		return "", xe.Wrap(err)
	}

	rss, err := client.FindReplicaSets(ctx, ns, PoolSelector(service, name))
	if err != nil {
		return "", xe.Wrap(err)
	}
	deleted := 0
	for _, rs := range rss {
		if err := client.DeleteReplicaSet(ctx, ns, rs.Name); kubeerr.IsNotFound(err) {
			continue
		} else if err != nil {
			return "", xe.Wrap(err)
		}
		deleted += 1
	}

	msg := fmt.Sprintf("worker pool %s is deleted (replica sets: %d)", name, deleted)
	if gone {
		msg = fmt.Sprintf("worker pool %s has been deleted already (replica sets: %d)", name, deleted)
	}
	c.logger.Info(msg)
	return msg, nil
}

// DeleteAllWorkerPools deletes every worker pool carrying the service label.
//
// It tries all pools even if some of them fail, and returns how many pools are deleted.
func (c *Client) DeleteAllWorkerPools(ctx context.Context, service string) (int, error) {
	depls, err := c.cluster.BaseClient().FindDeployments(ctx, c.cluster.Namespace(), ServiceSelector(service))
	if err != nil {
		return 0, xe.Wrap(err)
	}

	deleted := 0
	errs := []error{}
	for _, d := range depls {
		if _, err := c.deletePool(ctx, service, d.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted += 1
	}
	return deleted, errors.Join(errs...)
}
