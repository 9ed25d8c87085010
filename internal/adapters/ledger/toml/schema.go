package toml

import (
	"fmt"
	"time"

	"github.com/nextpie/sessiond/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported ledger schema version %d (current %d)", s.Version, currentSchemaVersion)
	}
	return nil
}

type accountSchema struct {
	ID            string `toml:"id"`
	Credits       int64  `toml:"credits"`
	Premium       bool   `toml:"premium"`
	ServerStatus  bool   `toml:"server_status"`
	LastOnline    int64  `toml:"last_online"`
	StopRequested bool   `toml:"stop_server"`
}

func toSchema(account domain.Account) accountSchema {
	return accountSchema{
		ID:            string(account.ID),
		Credits:       account.Credits,
		Premium:       account.Premium,
		ServerStatus:  account.ActiveSession,
		LastOnline:    account.LastOnline.Unix(),
		StopRequested: account.StopRequested,
	}
}

func fromSchema(entry accountSchema) domain.Account {
	return domain.Account{
		ID:            domain.AccountID(entry.ID),
		Credits:       entry.Credits,
		Premium:       entry.Premium,
		ActiveSession: entry.ServerStatus,
		StopRequested: entry.StopRequested,
		LastOnline:    time.Unix(entry.LastOnline, 0).UTC(),
	}
}
