package mock

import (
	"context"
	"errors"
	"sync"

	k8s "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/k8s"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
)

// get mocked k8s.Cluster
//
// # returns
//
//   - k8s.Cluster : using *MockClient as base client
//   - *MockClient : mock object.
//     you can fake k8s behaviours or spy its usage.
func NewCluster() (k8s.Cluster, *MockClient) {
	client := NewMockClient()
	return k8s.AttachCluster(client, "fake-namespace"), client
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

type MockClient struct {
	Impl struct {
		GetDeployment    func(ctx context.Context, namespace string, name string) (*kubeapps.Deployment, error)
		CreateDeployment func(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error)
		DeleteDeployment func(ctx context.Context, namespace string, name string) error
		FindDeployments  func(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubeapps.Deployment, error)

		FindReplicaSets  func(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubeapps.ReplicaSet, error)
		DeleteReplicaSet func(ctx context.Context, namespace string, name string) error

		FindPods func(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubecore.Pod, error)
	}

	// guards Called
	mu sync.Mutex

	Called Calls
}

// how many times each method has been called.
type Calls struct {
	GetDeployment    uint64
	CreateDeployment uint64
	DeleteDeployment uint64
	FindDeployments  uint64

	FindReplicaSets  uint64
	DeleteReplicaSet uint64

	FindPods uint64
}

// MockClient implements k8s.K8sClient
var _ k8s.K8sClient = &MockClient{}

var errNotImplemented = errors.New("[MOCK] not implemented")

func (m *MockClient) count(c *uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*c += 1
}

// Calls returns a snapshot of Called.
func (m *MockClient) Calls() Calls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Called
}

func (m *MockClient) GetDeployment(ctx context.Context, namespace string, name string) (*kubeapps.Deployment, error) {
	m.count(&m.Called.GetDeployment)
	if m.Impl.GetDeployment == nil {
		return nil, errNotImplemented
	}
	return m.Impl.GetDeployment(ctx, namespace, name)
}

func (m *MockClient) CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
	m.count(&m.Called.CreateDeployment)
	if m.Impl.CreateDeployment == nil {
		return nil, errNotImplemented
	}
	return m.Impl.CreateDeployment(ctx, namespace, depl)
}

func (m *MockClient) DeleteDeployment(ctx context.Context, namespace string, name string) error {
	m.count(&m.Called.DeleteDeployment)
	if m.Impl.DeleteDeployment == nil {
		return errNotImplemented
	}
	return m.Impl.DeleteDeployment(ctx, namespace, name)
}

func (m *MockClient) FindDeployments(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubeapps.Deployment, error) {
	m.count(&m.Called.FindDeployments)
	if m.Impl.FindDeployments == nil {
		return nil, errNotImplemented
	}
	return m.Impl.FindDeployments(ctx, namespace, ls)
}

func (m *MockClient) FindReplicaSets(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubeapps.ReplicaSet, error) {
	m.count(&m.Called.FindReplicaSets)
	if m.Impl.FindReplicaSets == nil {
		return nil, errNotImplemented
	}
	return m.Impl.FindReplicaSets(ctx, namespace, ls)
}

func (m *MockClient) DeleteReplicaSet(ctx context.Context, namespace string, name string) error {
	m.count(&m.Called.DeleteReplicaSet)
	if m.Impl.DeleteReplicaSet == nil {
		return errNotImplemented
	}
	return m.Impl.DeleteReplicaSet(ctx, namespace, name)
}

func (m *MockClient) FindPods(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubecore.Pod, error) {
	m.count(&m.Called.FindPods)
	if m.Impl.FindPods == nil {
		return nil, errNotImplemented
	}
	return m.Impl.FindPods(ctx, namespace, ls)
}
