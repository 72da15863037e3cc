// Package domain contains meeting entities without logic, just meta-data
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const MaxDisplayNameLen = 64

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// UserID identifies a participant. The relay sends it either as a JSON
// number or as a numeric string.
type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q: %w", string(data), err)
	}
	*id = UserID(v)
	return nil
}

type Role string

const (
	RoleHost      Role = "host"
	RolePresenter Role = "presenter"
	RoleViewer    Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleHost, RolePresenter, RoleViewer:
		return true
	}
	return false
}

type Participant struct {
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Online bool   `json:"online"`
}

// LocalUser is the authenticated identity the session is opened with.
type LocalUser struct {
	ID          UserID
	DisplayName string
}

// NewLocalUser validates the display name the same way the relay does.
func NewLocalUser(id UserID, displayName string) (*LocalUser, error) {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &LocalUser{ID: id, DisplayName: displayName}, nil
}

// Participant renders the synthetic read-only entry for the local user.
func (u *LocalUser) Participant(role Role) Participant {
	return Participant{ID: u.ID, Name: u.DisplayName, Role: role, Online: true}
}
