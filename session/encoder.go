package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const (
	sessionFormatVersionCurrent = 1

	maxTokenLength = 8192
)

// Encode serializes s into the versioned binary format stored by [RedisStore].
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(s.Token))

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.Token) == 0 {
		return nil, errors.New("token empty")
	}
	if len(s.Token) > maxTokenLength {
		return nil, errors.New("token too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.Token))); err != nil {
		return nil, err
	}
	buf.WriteString(s.Token)

	fields := []struct {
		name  string
		value string
	}{
		{"id", s.Identity.ID},
		{"username", s.Identity.Username},
		{"email", s.Identity.Email},
		{"firstName", s.Identity.FirstName},
		{"lastName", s.Identity.LastName},
		{"role", s.Identity.Role},
	}
	for _, f := range fields {
		if len(f.value) > 255 {
			return nil, errors.New(f.name + " too long")
		}
		buf.WriteByte(byte(len(f.value)))
		buf.WriteString(f.value)
	}

	if err := binary.Write(&buf, binary.BigEndian, unixMilli(s.IssuedAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixMilli(s.ExpiresAt)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	var tokenLen uint16
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return nil, err
	}
	if tokenLen == 0 || tokenLen > maxTokenLength {
		return nil, errors.New("invalid token length")
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, token); err != nil {
		return nil, err
	}
	s.Token = string(token)

	targets := []*string{
		&s.Identity.ID,
		&s.Identity.Username,
		&s.Identity.Email,
		&s.Identity.FirstName,
		&s.Identity.LastName,
		&s.Identity.Role,
	}
	for _, target := range targets {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		value := make([]byte, n)
		if _, err := io.ReadFull(reader, value); err != nil {
			return nil, err
		}
		*target = string(value)
	}

	var issuedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}
	s.IssuedAt = fromUnixMilli(issuedAt)
	s.ExpiresAt = fromUnixMilli(expiresAt)

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}

	return s, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
