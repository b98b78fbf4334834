package k8s

import (
	"sort"
	"strings"
)

// k8s Label SelectorElement like EqualityBased
type SelectorElement interface {
	// convert to querystring expression for label
	QueryString(label string) string

	// return true if this is equal to other. otherwise false.
	//
	// this method SHOULD return false when other is not same struct for itself.
	Equal(other SelectorElement) bool
}

type LabelSelector map[string]SelectorElement

// convert to string value in form of query string.
//
// Terms are sorted by label key, so same selectors make same strings.
func (ls LabelSelector) QueryString() string {
	if len(ls) == 0 {
		return ""
	}

	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, ls[k].QueryString(k))
	}
	return strings.Join(terms, ",")
}

// Matches tells whether the labels satisfy all terms of this selector.
//
// Only EqualityBased terms are evaluated. Others are not matched.
func (ls LabelSelector) Matches(labels map[string]string) bool {
	for k, sel := range ls {
		eqb, ok := sel.(EqualityBased)
		if !ok {
			return false
		}
		op, v := eqb.destruct()
		actual, has := labels[k]
		switch op {
		case "=":
			if !has || actual != v {
				return false
			}
		case "!=":
			if has && actual == v {
				return false
			}
		}
	}
	return true
}

// see: https://kubernetes.io/docs/concepts/overview/working-with-objects/labels/#equality-based-requirement
type EqualityBased string

var _ SelectorElement = EqualityBased("")

func NotEq(value string) EqualityBased {
	_, v := EqualityBased(value).destruct()
	return EqualityBased("!=" + v)
}

func Eq(value string) EqualityBased {
	_, v := EqualityBased(value).destruct()
	return EqualityBased("=" + v)
}

func (eqb EqualityBased) destruct() (operator string, value string) {
	exp := string(eqb)
	switch {
	case strings.HasPrefix(exp, "=="):
		return "=", exp[2:]
	case strings.HasPrefix(exp, "="):
		return "=", exp[1:]
	case strings.HasPrefix(exp, "!="):
		return "!=", exp[2:]
	default:
		// "!foo" does not mean "!=foo" .
		return "=", exp
	}
}

func (eqb EqualityBased) QueryString(label string) string {
	op, v := eqb.destruct()
	return label + op + v
}

func (eqb EqualityBased) Equal(other SelectorElement) bool {
	o, ok := other.(EqualityBased)
	if !ok {
		return false
	}
	op, v := eqb.destruct()
	oop, ov := o.destruct()
	return op == oop && v == ov
}

// LabelsToSelector converts labels to a selector matching them exactly.
func LabelsToSelector(ls map[string]string) LabelSelector {
	sel := LabelSelector{}
	for k, v := range ls {
		sel[k] = Eq(v)
	}
	return sel
}
