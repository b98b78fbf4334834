package metasource_test

import (
	"testing"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/buildtime"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/cmp"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/metasource"
)

type fakeSource struct {
	extras map[string]string
}

func (fakeSource) Name() string      { return "copy-worker" }
func (fakeSource) Instance() string  { return "copy-worker-abc" }
func (fakeSource) Component() string { return "worker" }
func (fakeSource) Id() string        { return "abc" }
func (fakeSource) IdType() string    { return "session" }
func (fakeSource) Service() string   { return "storesvc" }

type fakeSourceWithExtras struct {
	fakeSource
}

func (f fakeSourceWithExtras) Extras() map[string]string {
	return f.extras
}

func TestToLabels(t *testing.T) {
	base := map[string]string{
		"app.kubernetes.io/version":    buildtime.VERSION(),
		"app.kubernetes.io/name":       "copy-worker",
		"app.kubernetes.io/instance":   "copy-worker-abc",
		"app.kubernetes.io/component":  "worker",
		"app.kubernetes.io/part-of":    "store",
		"app.kubernetes.io/managed-by": "storesvc",
		"store/service":                "storesvc",
		"store/copy-worker.session":    "abc",
	}

	t.Run("without extras", func(t *testing.T) {
		actual := metasource.ToLabels(fakeSource{})
		if !cmp.MapEq(actual, base) {
			t.Errorf("labels:\n- actual   : %v\n- expected : %v", actual, base)
		}
	})

	t.Run("with extras", func(t *testing.T) {
		actual := metasource.ToLabels(fakeSourceWithExtras{
			fakeSource: fakeSource{extras: map[string]string{"pool": "copy-worker-abc"}},
		})

		expected := map[string]string{"store/copy-worker.pool": "copy-worker-abc"}
		for k, v := range base {
			expected[k] = v
		}
		if !cmp.MapEq(actual, expected) {
			t.Errorf("labels:\n- actual   : %v\n- expected : %v", actual, expected)
		}
	})
}

func TestToObjectMeta(t *testing.T) {
	actual := metasource.ToObjectMeta(fakeSource{}, "ns")
	if actual.Name != "copy-worker-abc" || actual.Namespace != "ns" {
		t.Errorf("(name, namespace) = (%s, %s)", actual.Name, actual.Namespace)
	}
	if actual.Labels[metasource.ServiceLabel] != "storesvc" {
		t.Errorf("service label: %v", actual.Labels)
	}
}
