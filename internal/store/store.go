// Package store persists LLM interactions. Writes are best effort: callers go
// through Async so that a slow or failing backend never delays a response.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interaction is one recorded gemini_with_config call.
type Interaction struct {
	ID        string          `json:"id"`
	ConfigID  string          `json:"config_id"`
	UserQuery string          `json:"user_query"`
	Response  string          `json:"response"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewInteraction stamps a fresh id. config is marshalled as a snapshot; a
// marshalling failure leaves the snapshot as JSON null.
func NewInteraction(configID, userQuery, response string, config any, now time.Time) *Interaction {
	snapshot, err := json.Marshal(config)
	if err != nil {
		snapshot = json.RawMessage("null")
	}
	return &Interaction{
		ID:        uuid.NewString(),
		ConfigID:  configID,
		UserQuery: userQuery,
		Response:  response,
		Config:    snapshot,
		CreatedAt: now.UTC(),
	}
}

// Recorder is a persistence backend.
type Recorder interface {
	Record(ctx context.Context, in *Interaction) error
	Close() error
}

// Nop discards every interaction.
type Nop struct{}

func (Nop) Record(context.Context, *Interaction) error { return nil }
func (Nop) Close() error                               { return nil }

// Backend names accepted by Open.
const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string
	Table       string
}

// Open builds the recorder named by opts.Backend. An empty backend is none.
func Open(opts Options) (Recorder, error) {
	switch opts.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendSQLite:
		s, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSupabase:
		s, err := NewSupabase(opts.SupabaseURL, opts.SupabaseKey, opts.Table)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
