package workerpool

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	k8s "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/k8s"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/metasource"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const (
	// value of "app.kubernetes.io/name" of worker pools.
	AppName = "copy-worker"

	// label key (under "store/copy-worker.") telling the pool name.
	extraPool = "pool"

	maxNameLength = 63
)

// label key telling the pool name of a resource.
var PoolLabel = "store/" + AppName + "." + extraPool

var reNotDNSLabel = regexp.MustCompile("[^a-z0-9-]+")

// PoolName is the name of the worker pool of a session.
//
// It is a DNS-1123 label (at most 63 characters) and depends only on prefix and sessionId.
// Unless prefix+sessionId is a DNS-1123 label as it is, the name gets a hash of sessionId.
func PoolName(prefix string, sessionId string) string {
	name := reNotDNSLabel.ReplaceAllString(strings.ToLower(prefix+sessionId), "-")
	name = strings.Trim(name, "-")

	if len(name) <= maxNameLength && name == prefix+sessionId {
		return name
	}

	sum := sha256.Sum256([]byte(sessionId))
	hash := hex.EncodeToString(sum[:])[:10]

	head := name
	if limit := maxNameLength - len(hash) - 1; limit < len(head) {
		head = head[:limit]
	}
	head = strings.Trim(head, "-")
	if head == "" {
		return hash
	}
	return head + "-" + hash
}

// Descriptor of a worker pool: a Deployment running workers for a session.
type Descriptor struct {
	poolName  string
	sessionId string
	service   string

	Replicas  int32
	Image     string
	Port      int32
	Resources kubecore.ResourceRequirements

	Root        string
	VolumeClaim string
}

var _ metasource.MetaSource = &Descriptor{}
var _ metasource.Extraer = &Descriptor{}

func NewDescriptor(conf Config, sessionId string, replicas int32) *Descriptor {
	return &Descriptor{
		poolName:  PoolName(conf.NamePrefix, sessionId),
		sessionId: sessionId,
		service:   conf.ServiceName,
		Replicas:  replicas,
		Image:     conf.Image,
		Port:      conf.Port,
		Resources: conf.Resources,

		Root:        conf.Root,
		VolumeClaim: conf.VolumeClaim,
	}
}

func (d *Descriptor) Name() string      { return AppName }
func (d *Descriptor) Instance() string  { return d.poolName }
func (d *Descriptor) Component() string { return "worker" }
func (d *Descriptor) Id() string        { return d.sessionId }
func (d *Descriptor) IdType() string    { return "session" }
func (d *Descriptor) Service() string   { return d.service }

func (d *Descriptor) Extras() map[string]string {
	return map[string]string{extraPool: d.poolName}
}

// Selector finds pods, replica sets and the deployment of this pool.
func (d *Descriptor) Selector() k8s.LabelSelector {
	return PoolSelector(d.service, d.poolName)
}

// PoolSelector finds resources of the pool.
func PoolSelector(service string, poolName string) k8s.LabelSelector {
	return k8s.LabelSelector{
		metasource.ServiceLabel: k8s.Eq(service),
		PoolLabel:               k8s.Eq(poolName),
	}
}

// ServiceSelector finds all worker pools of the service.
func ServiceSelector(service string) k8s.LabelSelector {
	return k8s.LabelSelector{
		metasource.ServiceLabel:  k8s.Eq(service),
		"app.kubernetes.io/name": k8s.Eq(AppName),
	}
}

// DefaultRoot is where files are copied into, when Root is not set.
const DefaultRoot = "/data"

const storageVolume = "storage"

func (d *Descriptor) volume() kubecore.Volume {
	if d.VolumeClaim == "" {
		return kubecore.Volume{
			Name:         storageVolume,
			VolumeSource: kubecore.VolumeSource{EmptyDir: &kubecore.EmptyDirVolumeSource{}},
		}
	}
	return kubecore.Volume{
		Name: storageVolume,
		VolumeSource: kubecore.VolumeSource{
			PersistentVolumeClaim: &kubecore.PersistentVolumeClaimVolumeSource{ClaimName: d.VolumeClaim},
		},
	}
}

// Build makes a Deployment of this pool.
//
// Workers copy files into Root, where the storage volume is mounted.
func (d *Descriptor) Build(namespace string) *kubeapps.Deployment {
	meta := metasource.ToObjectMeta(d, namespace)
	replicas := d.Replicas
	root := d.Root
	if root == "" {
		root = DefaultRoot
	}

	return &kubeapps.Deployment{
		ObjectMeta: meta,
		Spec: kubeapps.DeploymentSpec{
			Replicas: &replicas,
			Selector: &kubeapimeta.LabelSelector{
				MatchLabels: map[string]string{
					metasource.ServiceLabel: d.service,
					PoolLabel:               d.poolName,
				},
			},
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{Labels: metasource.ToLabels(d)},
				Spec: kubecore.PodSpec{
					RestartPolicy: kubecore.RestartPolicyAlways,
					Volumes:       []kubecore.Volume{d.volume()},
					Containers: []kubecore.Container{
						{
							Name:  AppName,
							Image: d.Image,
							Args:  []string{"--port", strconv.Itoa(int(d.Port)), "--root", root},
							VolumeMounts: []kubecore.VolumeMount{
								{Name: storageVolume, MountPath: root},
							},
							Ports: []kubecore.ContainerPort{
								{Name: "task", ContainerPort: d.Port, Protocol: kubecore.ProtocolTCP},
							},
							Resources: d.Resources,
							ReadinessProbe: &kubecore.Probe{
								ProbeHandler: kubecore.ProbeHandler{
									TCPSocket: &kubecore.TCPSocketAction{Port: intstr.FromInt32(d.Port)},
								},
								PeriodSeconds: 1,
							},
						},
					},
				},
			},
		},
	}
}
