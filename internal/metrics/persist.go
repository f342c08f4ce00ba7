package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/paths"
)

const (
	saveInterval  = 5 * time.Minute
	pruneMaxAge   = 30 * 24 * time.Hour
	dbOpenOptions = "?_busy_timeout=5000"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS model_metrics (
	model      TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store persists per-model counters in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and creates) the metrics database at path.
func OpenStore(path string) (*Store, error) {
	if err := paths.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+dbOpenOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("metrics schema creation failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes every model of c in a single transaction. A row's updated_at
// is the model's last attempt, so Prune ages models by use, not by save.
func (s *Store) Save(c *Collector) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO model_metrics (model, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(model) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	for model, m := range c.models {
		data, err := marshalModel(m)
		if err != nil {
			L_warn("metrics: failed to marshal metric", "model", model, "error", err)
			continue
		}
		updated := m.LastAttempt
		if updated.IsZero() {
			updated = now
		}
		if _, err := stmt.Exec(model, data, updated.Unix()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load restores persisted counters into c, replacing models with the same key.
func (s *Store) Load(c *Collector) (int, error) {
	rows, err := s.db.Query("SELECT model, data FROM model_metrics")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for rows.Next() {
		var model string
		var data []byte
		if err := rows.Scan(&model, &data); err != nil {
			L_warn("metrics: failed to scan row", "error", err)
			continue
		}

		m, err := unmarshalModel(data)
		if err != nil {
			L_warn("metrics: failed to restore metric", "model", model, "error", err)
			continue
		}
		c.models[model] = m
		count++
	}

	return count, rows.Err()
}

// Prune deletes models not updated within maxAge.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := s.db.Exec("DELETE FROM model_metrics WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// Clear deletes every persisted model and returns how many were removed.
func (s *Store) Clear() (int, error) {
	result, err := s.db.Exec("DELETE FROM model_metrics")
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// Persist attaches store to c: stale rows are pruned, the rest loaded, and
// a background save runs every saveInterval until Close.
// Degrades to in-memory if loading fails.
func (c *Collector) Persist(store *Store) {
	// Prune first so stale rows never reach memory and get saved back.
	pruned, err := store.Prune(pruneMaxAge)
	if err != nil {
		L_warn("metrics: failed to prune stale data", "error", err)
	} else if pruned > 0 {
		L_info("metrics: pruned stale metrics", "count", pruned)
	}

	loaded, err := store.Load(c)
	if err != nil {
		L_warn("metrics: failed to load persisted data", "error", err)
	} else if loaded > 0 {
		L_info("metrics: loaded persisted data", "count", loaded)
	}

	c.store = store
	c.stopSave = make(chan struct{})
	c.saveDone = make(chan struct{})
	go c.saveLoop(saveInterval)
}

// saveLoop runs periodic saves until stopSave is closed.
func (c *Collector) saveLoop(interval time.Duration) {
	defer close(c.saveDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.store.Save(c); err != nil {
				L_warn("metrics: periodic save failed", "error", err)
			}
		case <-c.stopSave:
			return
		}
	}
}

// Close stops the background save, performs a final save and closes the
// store. Safe to call without Persist.
func (c *Collector) Close() error {
	if c.store == nil {
		return nil
	}

	close(c.stopSave)
	<-c.saveDone

	if err := c.store.Save(c); err != nil {
		L_warn("metrics: final save failed", "error", err)
	}

	err := c.store.Close()
	c.store = nil
	return err
}

// persistModel mirrors modelMetric with exported, JSON-safe fields.
type persistModel struct {
	Attempts    int64           `json:"attempts"`
	Successes   int64           `json:"successes"`
	RateLimited int64           `json:"rate_limited"`
	Failures    int64           `json:"failures"`
	Unavailable int64           `json:"unavailable"`
	Canceled    int64           `json:"canceled"`
	Failovers   int64           `json:"failovers"`
	Total       time.Duration   `json:"total"`
	Last        time.Duration   `json:"last"`
	LastError   string          `json:"last_error,omitempty"`
	LastAttempt time.Time       `json:"last_attempt"`
	Samples     []time.Duration `json:"samples,omitempty"`
}

func marshalModel(m *modelMetric) ([]byte, error) {
	return json.Marshal(persistModel{
		Attempts: m.Attempts, Successes: m.Successes, RateLimited: m.RateLimited,
		Failures: m.Failures, Unavailable: m.Unavailable, Canceled: m.Canceled,
		Failovers: m.Failovers, Total: m.Total, Last: m.Last,
		LastError: m.LastError, LastAttempt: m.LastAttempt, Samples: m.samples,
	})
}

func unmarshalModel(data []byte) (*modelMetric, error) {
	var p persistModel
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	m := &modelMetric{
		Attempts:    p.Attempts,
		Successes:   p.Successes,
		RateLimited: p.RateLimited,
		Failures:    p.Failures,
		Unavailable: p.Unavailable,
		Canceled:    p.Canceled,
		Failovers:   p.Failovers,
		Total:       p.Total,
		Last:        p.Last,
		LastError:   p.LastError,
		LastAttempt: p.LastAttempt,
		samples:     p.Samples,
	}
	if len(m.samples) > maxSamples {
		m.samples = m.samples[len(m.samples)-maxSamples:]
	}
	if m.samples == nil {
		m.samples = make([]time.Duration, 0, maxSamples)
	}
	if len(m.samples) >= maxSamples {
		m.sampleIdx = 0
	} else {
		m.sampleIdx = len(m.samples)
	}
	return m, nil
}
