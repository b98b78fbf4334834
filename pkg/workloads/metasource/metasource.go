package metasource

import (
	"fmt"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/buildtime"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// label key to tag every resource made by a store service instance.
//
// Its value is the service name. Orphan cleanup finds resources with this.
const ServiceLabel = "store/service"

// metadata of a resource which is deployed in k8s cluster.
//
// ToLabels converts MetaSource (or, its subtype with Extras) to k8s labels.
type MetaSource interface {
	// The name of application/resource.
	//
	// Resources running a same app share `Name()`.
	// For `ObjectMeta.Name`, use `Instance()`, not this.
	//
	// This is set as a value of k8s label "app.kubernetes.io/name".
	Name() string

	// This is set as a value of k8s label "app.kubernetes.io/instance"
	// and also `ObjectMeta.Name` .
	Instance() string

	// Where is this positioned in system architecture.
	//
	// This is set as a value of k8s label "app.kubernetes.io/component".
	Component() string

	// Identifier of the entity this resource works for.
	Id() string

	// type of "Id()", like "session".
	IdType() string

	// name of the store service owning this resource.
	Service() string
}

type Extraer interface {
	// Extra labels.
	//
	// See document of `ToLabels` for more details.
	Extras() map[string]string
}

// convert MetaSource to k8s labels, including "recommended labels".
//
// https://kubernetes.io/docs/concepts/overview/working-with-objects/common-labels/
//
// # Recommended Labels
//
// - "app.kubernetes.io/version"    : build version
//
// - "app.kubernetes.io/part-of"    : "store"
//
// - "app.kubernetes.io/managed-by" : s.Service()
//
// - "app.kubernetes.io/component"  : s.Component()
//
// - "app.kubernetes.io/name"       : s.Name()
//
// - "app.kubernetes.io/instance"   : s.Instance()
//
// # Store Labels
//
// - "store/service"                 : s.Service()
//
// - "store/${s.Name()}.${s.IdType()}" : s.Id()
//
// - "store/${s.Name()}.KEY"           : s.Extras()[KEY] (if s implements Extraer)
func ToLabels(s MetaSource) map[string]string {
	prefix := fmt.Sprintf("store/%s.", s.Name())

	l := map[string]string{
		"app.kubernetes.io/version":    buildtime.VERSION(),
		"app.kubernetes.io/name":       s.Name(),
		"app.kubernetes.io/instance":   s.Instance(),
		"app.kubernetes.io/component":  s.Component(),
		"app.kubernetes.io/part-of":    "store",
		"app.kubernetes.io/managed-by": s.Service(),

		ServiceLabel: s.Service(),

		// store/NAME.ID_TYPE: ID  --  example: `store/copy-worker.session: SOMEUUID-VALU-E...`
		prefix + s.IdType(): s.Id(),
	}

	if withEx, ok := s.(Extraer); ok {
		for k, v := range withEx.Extras() {
			l[prefix+k] = v
		}
	}

	return l
}

// ObjectMeta with name `Instance()` and labels from ToLabels.
func ToObjectMeta(m MetaSource, namespace string) kubeapimeta.ObjectMeta {
	return kubeapimeta.ObjectMeta{
		Name:      m.Instance(),
		Namespace: namespace,
		Labels:    ToLabels(m),
	}
}
