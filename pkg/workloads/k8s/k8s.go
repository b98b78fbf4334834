package k8s

import (
	"context"

	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// subset of kubernetes.Interface which worker pools need.
type K8sClient interface {
	GetDeployment(ctx context.Context, namespace string, name string) (*kubeapps.Deployment, error)
	CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error)
	DeleteDeployment(ctx context.Context, namespace string, name string) error
	FindDeployments(ctx context.Context, namespace string, ls LabelSelector) ([]kubeapps.Deployment, error)

	FindReplicaSets(ctx context.Context, namespace string, ls LabelSelector) ([]kubeapps.ReplicaSet, error)
	DeleteReplicaSet(ctx context.Context, namespace string, name string) error

	FindPods(ctx context.Context, namespace string, ls LabelSelector) ([]kubecore.Pod, error)
}

// A wrapper for kubernetes.Interface; because it does not prefer method chain-style invocations of that type.
type k8sClient struct {
	client kubernetes.Interface
}

// type check: k8sClient implements K8sClient
var _ K8sClient = &k8sClient{}

func WrapK8sClient(c kubernetes.Interface) K8sClient {
	return &k8sClient{client: c}
}

func (k *k8sClient) GetDeployment(ctx context.Context, namespace string, name string) (*kubeapps.Deployment, error) {
	return k.client.AppsV1().Deployments(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
	return k.client.AppsV1().Deployments(namespace).Create(ctx, depl, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeleteDeployment(ctx context.Context, namespace string, name string) error {
	background := kubeapimeta.DeletePropagationBackground
	zero := int64(0)
	return k.client.AppsV1().Deployments(namespace).Delete(ctx, name, kubeapimeta.DeleteOptions{
		GracePeriodSeconds: &zero,
		PropagationPolicy:  &background,
	})
}

func (k *k8sClient) FindDeployments(ctx context.Context, namespace string, ls LabelSelector) ([]kubeapps.Deployment, error) {
	resp, err := k.client.AppsV1().Deployments(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: ls.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) FindReplicaSets(ctx context.Context, namespace string, ls LabelSelector) ([]kubeapps.ReplicaSet, error) {
	resp, err := k.client.AppsV1().ReplicaSets(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: ls.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) DeleteReplicaSet(ctx context.Context, namespace string, name string) error {
	return k.client.AppsV1().ReplicaSets(namespace).Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) FindPods(ctx context.Context, namespace string, ls LabelSelector) ([]kubecore.Pod, error) {
	resp, err := k.client.CoreV1().Pods(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: ls.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Cluster is a K8sClient bound to a namespace.
type Cluster interface {
	// namespace where worker pools live.
	Namespace() string

	BaseClient() K8sClient
}

type cluster struct {
	client    K8sClient
	namespace string
}

func AttachCluster(client K8sClient, namespace string) Cluster {
	return &cluster{client: client, namespace: namespace}
}

func (c *cluster) Namespace() string {
	return c.namespace
}

func (c *cluster) BaseClient() K8sClient {
	return c.client
}
