package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"
)

// DefaultTable is the table interactions are inserted into.
const DefaultTable = "interactions"

// Supabase inserts interactions through the PostgREST endpoint of a Supabase
// project.
type Supabase struct {
	client *postgrest.Client
	table  string
}

// NewSupabase returns a recorder for the project at baseURL.
func NewSupabase(baseURL, anonKey, table string) (*Supabase, error) {
	if baseURL == "" || anonKey == "" {
		return nil, fmt.Errorf("supabase url and key are required")
	}
	if table == "" {
		table = DefaultTable
	}

	client := postgrest.NewClient(strings.TrimRight(baseURL, "/")+"/rest/v1", "", map[string]string{
		"apikey":        anonKey,
		"Authorization": "Bearer " + anonKey,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("supabase url %q: %w", baseURL, client.ClientError)
	}
	return &Supabase{client: client, table: table}, nil
}

// Record inserts in. postgrest-go takes no context, so a cancelled ctx
// abandons the request rather than aborting it.
func (s *Supabase) Record(ctx context.Context, in *Interaction) error {
	done := make(chan error, 1)
	go func() {
		_, _, err := s.client.From(s.table).Insert(in, false, "", "minimal", "").Execute()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("insert interaction %s: %w", in.ID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("insert interaction %s: %w", in.ID, ctx.Err())
	}
}

func (s *Supabase) Close() error {
	return nil
}
