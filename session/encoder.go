package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

var errFieldTooLong = errors.New("session field too long")

// Encode writes s as:
//
//	version | userLen | userID | channelLen | channel | createdAt | expiresAt
//
// Version 1 records have no channel field.
func Encode(s *Session) ([]byte, error) {
	if len(s.UserID) > 255 || len(s.Channel) > 255 {
		return nil, errFieldTooLong
	}

	var buf bytes.Buffer
	buf.Grow(3 + len(s.UserID) + len(s.Channel) + 16)
	buf.WriteByte(sessionFormatVersionCurrent)
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)
	buf.WriteByte(byte(len(s.Channel)))
	buf.WriteString(s.Channel)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a record written by [Encode]. SessionID is left empty.
func Decode(data []byte) (*Session, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}
	if s.UserID, err = readShortString(r); err != nil {
		return nil, err
	}
	if version >= 2 {
		if s.Channel, err = readShortString(r); err != nil {
			return nil, err
		}
	}
	if err := binary.Read(r, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}
	return s, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
