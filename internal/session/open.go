package session

import (
	"fmt"

	"github.com/roelfdiedericks/aiorch/internal/config"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// Open returns the store selected by cfg.SessionStore.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.SessionStore {
	case config.SessionStoreSQLite:
		path, err := cfg.ResolveSessionsDB()
		if err != nil {
			return nil, err
		}
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "", config.SessionStoreFile:
		dir, err := cfg.ResolveSessionsDir()
		if err != nil {
			return nil, err
		}
		L_debug("session: file store", "dir", dir)
		s, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
