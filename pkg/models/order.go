package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TrendValue is one named lag feature. A nil Value means the source value was
// missing or not numeric; it is never treated as zero.
type TrendValue struct {
	Name  string
	Value *float64
}

// TrendProfile is the ordered set of lag features for an order.
// It serializes as a JSON object of the present values in column order.
type TrendProfile []TrendValue

// Get returns the value of the named feature and whether it is present.
func (p TrendProfile) Get(name string) (float64, bool) {
	for _, tv := range p {
		if tv.Name == name {
			if tv.Value == nil {
				return 0, false
			}
			return *tv.Value, true
		}
	}
	return 0, false
}

// Present returns the number of features with a value.
func (p TrendProfile) Present() int {
	n := 0
	for _, tv := range p {
		if tv.Value != nil {
			n++
		}
	}
	return n
}

// AllAbsent reports whether no feature has a value.
func (p TrendProfile) AllAbsent() bool {
	return p.Present() == 0
}

// MarshalJSON writes present values only, preserving feature order.
// A non-finite value is an error: profiles are built from coerced values.
func (p TrendProfile) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, tv := range p {
		if tv.Value == nil {
			continue
		}
		if math.IsNaN(*tv.Value) || math.IsInf(*tv.Value, 0) {
			return nil, fmt.Errorf("trend %s is not finite", tv.Name)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeMember(&buf, tv.Name, *tv.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object written by MarshalJSON, keeping member order.
// A null member is read as an absent value.
func (p *TrendProfile) UnmarshalJSON(data []byte) error {
	var out TrendProfile
	err := decodeMembers(data, func(name string, raw json.RawMessage) error {
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("trend %s: %w", name, err)
		}
		out = append(out, TrendValue{Name: name, Value: v})
		return nil
	})
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// Attribute is a descriptive column carried through without interpretation
// (order strength, cumulative strength, ingredient group).
type Attribute struct {
	Name  string
	Value any
}

// Attributes serializes as a JSON object in column order.
type Attributes []Attribute

// MarshalJSON implements json.Marshaler.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, attr.Name, attr.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object written by MarshalJSON, keeping member order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var out Attributes
	err := decodeMembers(data, func(name string, raw json.RawMessage) error {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
		out = append(out, Attribute{Name: name, Value: v})
		return nil
	})
	if err != nil {
		return err
	}
	*a = out
	return nil
}

// decodeMembers walks a JSON object in document order. A JSON null visits
// nothing.
func decodeMembers(data []byte, visit func(name string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected member name, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := visit(name, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func writeMember(buf *bytes.Buffer, name string, value any) error {
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	val, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

// OrderRecord is one row of order history.
type OrderRecord struct {
	OrderNumber string       `json:"order_number"`
	Comment     string       `json:"comment"`
	Trends      TrendProfile `json:"trends"`
	Attributes  Attributes   `json:"attributes,omitempty"`
}

// RecordSet is the working set of records for one request, in query order
// after the optional most-recent-trend re-sort. Treat as immutable.
type RecordSet struct {
	Records  []OrderRecord `json:"records"`
	LoadedAt time.Time     `json:"loaded_at"`
}

// Len returns the number of records, tolerating a nil set.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Find returns the first record with the given order number.
func (s *RecordSet) Find(orderNumber string) (*OrderRecord, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Records {
		if s.Records[i].OrderNumber == orderNumber {
			return &s.Records[i], true
		}
	}
	return nil, false
}
