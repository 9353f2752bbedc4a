// Package stats gates client-reported solo results behind a server-issued verification token.
//
// The token is a decodable payload, not a signature. It only makes casual tampering more
// expensive: the client has to echo the exact game data the server saw when issuing it.
package stats

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// Token is the payload carried by a verification token.
type Token struct {
	UserID    string          `json:"userId"`
	Timestamp int64           `json:"timestamp"` // unix millis
	GameID    string          `json:"gameId"`
	GameData  json.RawMessage `json:"gameData"`
}

func (t Token) IssuedAt() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// GameSummary is the part of a submitted game summary the verifier inspects.
type GameSummary struct {
	GameID    string            `json:"gameId"`
	Won       bool              `json:"won"`
	Boards    []json.RawMessage `json:"boards"`
	Timestamp int64             `json:"timestamp"` // unix millis
}

func (s GameSummary) PlayedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

var errMalformedToken = errors.New("malformed verification token")

func EncodeToken(t Token) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeToken(s string) (Token, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, errMalformedToken
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Token{}, errMalformedToken
	}
	if t.UserID == "" || t.Timestamp <= 0 || len(t.GameData) == 0 {
		return Token{}, errMalformedToken
	}
	return t, nil
}

// compact returns the canonical bytes used to compare game data.
func compact(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
