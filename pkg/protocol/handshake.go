package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names of the handshake records.
const (
	FieldUsername = "username"
	FieldKey      = "key"
	FieldStatus   = "status"
)

// StatusAuthorized is the only status the server ever sends.
const StatusAuthorized = "authorized"

// ErrNotString is returned when a handshake field holds a non-string value.
var ErrNotString = errors.New("field is not a string")

// Credentials is the single frame a client sends to authenticate.
type Credentials struct {
	Username string
	Key      string
}

// Encode encodes the credentials as a JSON object.
func (c Credentials) Encode() ([]byte, error) {
	return encodeRecord(map[string]any{
		FieldUsername: c.Username,
		FieldKey:      c.Key,
	})
}

// Decode decodes a JSON object into the credentials.
// Missing fields decode as empty strings.
func (c *Credentials) Decode(data []byte) error {
	fields, err := decodeRecord(data)
	if err != nil {
		return fmt.Errorf("failed to decode credentials: %w", err)
	}
	if c.Username, err = stringField(fields, FieldUsername); err != nil {
		return fmt.Errorf("failed to decode credentials: %w", err)
	}
	if c.Key, err = stringField(fields, FieldKey); err != nil {
		return fmt.Errorf("failed to decode credentials: %w", err)
	}
	return nil
}

// Status is the server's reply to a successful handshake.
type Status struct {
	Status string
}

// Authorized reports whether the reply grants access.
func (s Status) Authorized() bool {
	return s.Status == StatusAuthorized
}

// Encode encodes the status as a JSON object.
func (s Status) Encode() ([]byte, error) {
	return encodeRecord(map[string]any{FieldStatus: s.Status})
}

// Decode decodes a JSON object into the status.
func (s *Status) Decode(data []byte) error {
	fields, err := decodeRecord(data)
	if err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}
	if s.Status, err = stringField(fields, FieldStatus); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}
	return nil
}

// encodeRecord converts a flat record to a protobuf Struct and renders it as
// compact JSON. protojson output whitespace is unstable, so it is compacted.
func encodeRecord(fields map[string]any) ([]byte, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	data, err := protojson.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (map[string]*structpb.Value, error) {
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st.GetFields(), nil
}

func stringField(fields map[string]*structpb.Value, name string) (string, error) {
	v, ok := fields[name]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotString)
	}
	return s.StringValue, nil
}
