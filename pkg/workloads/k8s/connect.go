package k8s

import (
	"os"
	"path/filepath"

	xe "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// FindKubeconfig returns the path of kubeconfig to be used, or "" for in-cluster config.
//
// Priorities are (most to least):
//
// - the file found first from the searchPath
//
// - environmental variable `KUBECONFIG`
//
// - `~/.kube/config`
func FindKubeconfig(searchPath ...string) string {
	isFile := func(p string) bool {
		s, err := os.Stat(p)
		return err == nil && !s.IsDir()
	}

	for _, sp := range searchPath {
		if isFile(sp) {
			return sp
		}
	}

	if k := os.Getenv("KUBECONFIG"); k != "" && isFile(k) {
		return k
	}

	if home := homedir.HomeDir(); home != "" {
		if p := filepath.Join(home, ".kube", "config"); isFile(p) {
			return p
		}
	}

	return ""
}

// ConnectToK8s builds kubernetes clientset.
//
// When no kubeconfig is found (see FindKubeconfig), it tries to use in-cluster config.
func ConnectToK8s(searchPath ...string) (kubernetes.Interface, error) {
	var config *rest.Config
	var err error
	if kubeconfig := FindKubeconfig(searchPath...); kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, xe.Wrap(err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return clientset, nil
}
