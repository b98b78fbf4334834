package k8s_test

import (
	"testing"

	k8s "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/k8s"
)

type FakeSelector string

func (fs FakeSelector) QueryString(key string) string {
	return key + ":" + string(fs)
}

func (fs FakeSelector) Equal(s k8s.SelectorElement) bool {
	t, ok := s.(FakeSelector)
	return ok && t == fs
}

func TestLabelSelector(t *testing.T) {
	t.Run("when empty LabelSelector is built, it makes empty", func(t *testing.T) {
		testee := k8s.LabelSelector{}
		if testee.QueryString() != "" {
			t.Errorf(`not match: "%s" is not empty`, testee.QueryString())
		}
	})

	t.Run("its QueryString should be comma-separated QueryStrings of selectors, sorted by key", func(t *testing.T) {
		testee := k8s.LabelSelector{
			"foo":  FakeSelector("bar"),
			"fizz": FakeSelector("bazz"),
			"aaa":  FakeSelector("bbb"),
		}

		actual := testee.QueryString()
		expected := "aaa:bbb,fizz:bazz,foo:bar"
		if actual != expected {
			t.Errorf("not match: actual = %s, expected = %s", actual, expected)
		}
	})
}

func TestEqualityBasedSelector(t *testing.T) {
	for name, testcase := range map[string]struct {
		when k8s.EqualityBased
		then string
	}{
		`when its value is not started with =, == nor !=, it should mean "equality"`: {
			when: "value1", then: "label=value1",
		},
		`when its value is started with =, it should mean "equality"`: {
			when: "=value1", then: "label=value1",
		},
		`when its value is started with ==, it should mean "equality"`: {
			when: "==value1", then: "label=value1",
		},
		`when its value is started with !=, it should mean "inequality"`: {
			when: "!=value1", then: "label!=value1",
		},
		`when its value is started with ! but not !=, it should mean "equality" with the value`: {
			when: "!value1", then: "label=!value1",
		},
		`when it is built with Eq, it should mean "equality"`: {
			when: k8s.Eq("value1"), then: "label=value1",
		},
		`when it is built with NotEq, it should mean "inequality"`: {
			when: k8s.NotEq("value1"), then: "label!=value1",
		},
		`when it is empty, it should match to empty value`: {
			when: "", then: "label=",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := testcase.when.QueryString("label"); actual != testcase.then {
				t.Errorf("not match: actual = %s, expected = %s", actual, testcase.then)
			}
		})
	}

	t.Run("Equal compares operators and values", func(t *testing.T) {
		if !k8s.EqualityBased("value").Equal(k8s.Eq("value")) {
			t.Error(`"value" should equal to Eq("value")`)
		}
		if k8s.Eq("value").Equal(k8s.NotEq("value")) {
			t.Error(`Eq("value") should not equal to NotEq("value")`)
		}
		if k8s.Eq("value").Equal(FakeSelector("value")) {
			t.Error("EqualityBased should not equal to other kind of selector")
		}
	})
}

func TestLabelSelector_Matches(t *testing.T) {
	labels := map[string]string{
		"store/service":  "storesvc",
		"store/pool":     "copy-worker-abc",
		"unrelated/key1": "value",
	}

	for name, testcase := range map[string]struct {
		when k8s.LabelSelector
		then bool
	}{
		"empty selector matches anything": {
			when: k8s.LabelSelector{}, then: true,
		},
		"equality terms which are all satisfied": {
			when: k8s.LabelsToSelector(map[string]string{
				"store/service": "storesvc",
				"store/pool":    "copy-worker-abc",
			}),
			then: true,
		},
		"equality term with other value": {
			when: k8s.LabelSelector{"store/pool": k8s.Eq("copy-worker-xyz")},
			then: false,
		},
		"equality term for missing label": {
			when: k8s.LabelSelector{"missing": k8s.Eq("x")},
			then: false,
		},
		"inequality term": {
			when: k8s.LabelSelector{"store/pool": k8s.NotEq("copy-worker-xyz")},
			then: true,
		},
		"inequality term for equal value": {
			when: k8s.LabelSelector{"store/pool": k8s.NotEq("copy-worker-abc")},
			then: false,
		},
		"unknown selector kind": {
			when: k8s.LabelSelector{"store/pool": FakeSelector("copy-worker-abc")},
			then: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := testcase.when.Matches(labels); actual != testcase.then {
				t.Errorf("Matches: actual = %v, expected = %v", actual, testcase.then)
			}
		})
	}
}
