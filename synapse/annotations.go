package synapse

import (
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ValueKind represents kind of annotation value.
type ValueKind int

const (
	StringKind ValueKind = 1
	LongKind   ValueKind = 2
	DoubleKind ValueKind = 3
	ListKind   ValueKind = 4
)

// Value represents dynamically typed annotation value.
//
// Zero value is "no value": it is dropped on encode.
type Value struct {
	kind   ValueKind
	str    string
	long   int64
	double float64
	list   []Value
}

func StringValue(v string) Value {
	return Value{kind: StringKind, str: v}
}

func LongValue(v int64) Value {
	return Value{kind: LongKind, long: v}
}

func DoubleValue(v float64) Value {
	return Value{kind: DoubleKind, double: v}
}

// BoolValue stores boolean as "true"/"false" string annotation.
func BoolValue(v bool) Value {
	return StringValue(strconv.FormatBool(v))
}

func ListValue(values ...Value) Value {
	return Value{kind: ListKind, list: values}
}

// Kind returns kind of value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsZero reports whether value is empty.
func (v Value) IsZero() bool {
	return v.kind == 0 || (v.kind == ListKind && len(v.list) == 0)
}

func (v Value) Long() int64 {
	return v.long
}

func (v Value) Double() float64 {
	return v.double
}

func (v Value) List() []Value {
	return v.list
}

// String returns string representation of value.
func (v Value) String() string {
	switch v.kind {
	case StringKind:
		return v.str
	case LongKind:
		return strconv.FormatInt(v.long, 10)
	case DoubleKind:
		return strconv.FormatFloat(v.double, 'g', -1, 64)
	case ListKind:
		items := make([]string, 0, len(v.list))
		for _, item := range v.list {
			items = append(items, item.String())
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return ""
	}
}

// Annotations represents flat mapping of annotation keys to values.
type Annotations map[string]Value

// Clone creates deep copy of annotations.
func (a Annotations) Clone() Annotations {
	if a == nil {
		return nil
	}
	clone := make(Annotations, len(a))
	for key, value := range a {
		clone[key] = value
	}
	return clone
}

// StringAnnotation represents string annotation on the wire.
type StringAnnotation struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	IsPrivate bool   `json:"isPrivate"`
}

// LongAnnotation represents integer annotation on the wire.
type LongAnnotation struct {
	Key       string `json:"key"`
	Value     int64  `json:"value"`
	IsPrivate bool   `json:"isPrivate"`
}

// DoubleAnnotation represents floating-point annotation on the wire.
type DoubleAnnotation struct {
	Key       string `json:"key"`
	Value     float64 `json:"value"`
	IsPrivate bool    `json:"isPrivate"`
}

// SubmissionAnnotations represents wire form of status annotations.
//
// Reserved wire fields scopeId and objectId are platform-managed:
// they are ignored on read and never emitted on write.
type SubmissionAnnotations struct {
	StringAnnos []StringAnnotation `json:"stringAnnos,omitempty"`
	LongAnnos   []LongAnnotation   `json:"longAnnos,omitempty"`
	DoubleAnnos []DoubleAnnotation `json:"doubleAnnos,omitempty"`
}

// IsZero reports whether there are no annotations.
func (a SubmissionAnnotations) IsZero() bool {
	return len(a.StringAnnos) == 0 &&
		len(a.LongAnnos) == 0 &&
		len(a.DoubleAnnos) == 0
}

func (a *SubmissionAnnotations) append(key string, value Value, isPrivate bool) {
	switch value.Kind() {
	case StringKind:
		a.StringAnnos = append(a.StringAnnos, StringAnnotation{
			Key: key, Value: value.String(), IsPrivate: isPrivate,
		})
	case LongKind:
		a.LongAnnos = append(a.LongAnnos, LongAnnotation{
			Key: key, Value: value.Long(), IsPrivate: isPrivate,
		})
	case DoubleKind:
		a.DoubleAnnos = append(a.DoubleAnnos, DoubleAnnotation{
			Key: key, Value: value.Double(), IsPrivate: isPrivate,
		})
	case ListKind:
		for _, item := range value.List() {
			a.append(key, item, isPrivate)
		}
	}
}

// EncodeAnnotations converts flat mapping into the wire form.
//
// Empty values and empty lists are dropped. Keys are emitted in
// sorted order to keep encoding deterministic.
func EncodeAnnotations(values Annotations, isPrivate bool) SubmissionAnnotations {
	var annos SubmissionAnnotations
	keys := maps.Keys(values)
	slices.Sort(keys)
	for _, key := range keys {
		if value := values[key]; !value.IsZero() {
			annos.append(key, value, isPrivate)
		}
	}
	return annos
}

func addDecoded(values Annotations, key string, value Value) {
	prev, ok := values[key]
	if !ok {
		values[key] = value
		return
	}
	// Repeated key decodes into a list.
	if prev.Kind() == ListKind {
		values[key] = ListValue(append(prev.List(), value)...)
		return
	}
	values[key] = ListValue(prev, value)
}

// DecodeAnnotations converts wire form back into flat mappings
// partitioned by visibility.
func DecodeAnnotations(annos SubmissionAnnotations) (private, public Annotations) {
	private, public = Annotations{}, Annotations{}
	pick := func(isPrivate bool) Annotations {
		if isPrivate {
			return private
		}
		return public
	}
	for _, anno := range annos.StringAnnos {
		addDecoded(pick(anno.IsPrivate), anno.Key, StringValue(anno.Value))
	}
	for _, anno := range annos.LongAnnos {
		addDecoded(pick(anno.IsPrivate), anno.Key, LongValue(anno.Value))
	}
	for _, anno := range annos.DoubleAnnos {
		addDecoded(pick(anno.IsPrivate), anno.Key, DoubleValue(anno.Value))
	}
	return private, public
}
