// Package session packs a built command model into an opaque token so
// that debug steps can be served without keeping server-side state.
package session

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/gob"
	"io"

	"circinspect/internal/command"
	"circinspect/internal/qml"
	cierrors "circinspect/pkg/errors"
)

// Version is bumped whenever the encoded layout changes.
const Version = 1

type payload struct {
	Version  int
	Commands []command.Command
	Queue    *qml.Queue
	Device   command.DeviceInfo
}

// Encode returns the token for m.
func Encode(m *command.Model) (string, error) {
	return encode(payload{
		Version:  Version,
		Commands: m.Commands,
		Queue:    m.Queue,
		Device:   m.Device,
	})
}

func encode(p payload) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(zw).Encode(p); err != nil {
		return "", cierrors.Wrap(err, "encoding session")
	}
	if err := zw.Close(); err != nil {
		return "", cierrors.Wrap(err, "compressing session")
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode restores the model a token was made from.
func Decode(token string) (*command.Model, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, &cierrors.TokenError{Reason: "not base64url", Cause: err}
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &cierrors.TokenError{Reason: "not compressed", Cause: err}
	}
	defer zr.Close()

	var p payload
	if err := gob.NewDecoder(zr).Decode(&p); err != nil {
		return nil, &cierrors.TokenError{Reason: "corrupt payload", Cause: err}
	}
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, &cierrors.TokenError{Reason: "corrupt payload", Cause: err}
	}
	if p.Version != Version {
		return nil, &cierrors.TokenError{Reason: "unsupported version"}
	}
	if p.Queue == nil {
		p.Queue = &qml.Queue{}
	}
	for i, c := range p.Commands {
		if c.ID != i || c.Parent >= c.ID {
			return nil, &cierrors.TokenError{Reason: "inconsistent command indices"}
		}
	}
	return &command.Model{Commands: p.Commands, Queue: p.Queue, Device: p.Device}, nil
}
