// Package fixture builds the Postman environment consumed by the API test
// collection: a base URL, three validly signed tokens and two tampered
// tokens that the API must reject.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/dskow/fixturegen/internal/config"
	"github.com/dskow/fixturegen/internal/token"
)

// Postman constants.
const (
	VariableType  = "default"
	VariableScope = "environment"
	BaseURLKey    = "base_url"

	// exportedAtLayout matches Postman's own exports: microseconds, then Z.
	exportedAtLayout = "2006-01-02T15:04:05.000000"
)

// Identity is a user for which a valid token is generated.
type Identity struct {
	Key       string
	SubjectID string
	Username  string
	Role      string
}

// Identities are the accounts seeded in the API's test database.
var Identities = []Identity{
	{Key: "user1_valid_token", SubjectID: "1", Username: "user1", Role: token.RoleUser},
	{Key: "user2_valid_token", SubjectID: "2", Username: "user2", Role: token.RoleUser},
	{Key: "admin_valid_token", SubjectID: "3", Username: "admin", Role: token.RoleAdmin},
}

// Tampered tokens. These are verbatim literals, never re-derived: signing
// them again could produce a token the API accepts.
const (
	// IncompleteToken has no usr claim and a trailing empty segment.
	IncompleteToken = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJsaWQiOiIxIiwicm9sIjoidXNlciIsImV4cCI6MjUyNDYwNDQwMH0." +
		"y3_zzKHCcwmP70-xrp7-rMyoffF7My8FFVW_FVVMtgs."

	// FakeToken claims rol=admin but reuses the signature of a user token.
	FakeToken = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJsaWQiOiIxIiwidXNyIjoidXNlcjEiLCJyb2wiOiJhZG1pbiIsImV4cCI6MjUyNDYwNDQwMH0." +
		"Z7IxtCnrmO6oYqMKipSzbkq3CVvfYiQTipoHk3qAcDA"
)

// TamperedTokens lists the invalid tokens in output order.
var TamperedTokens = []Variable{
	NewVariable("incomplete_token", IncompleteToken),
	NewVariable("fake_token", FakeToken),
}

// Variable is one entry of an environment's values list.
type Variable struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// NewVariable returns an enabled variable of the default type.
func NewVariable(key, value string) Variable {
	return Variable{Key: key, Value: value, Type: VariableType, Enabled: true}
}

// Environment is a Postman environment export.
type Environment struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Values        []Variable `json:"values"`
	Scope         string     `json:"_postman_variable_scope"`
	ExportedAt    string     `json:"_postman_exported_at"`
	ExportedUsing string     `json:"_postman_exported_using"`
}

// Lookup returns the value of the variable named key.
func (e *Environment) Lookup(key string) (string, bool) {
	for _, v := range e.Values {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// BaseURL returns the API address for host and port.
func BaseURL(host, port string) string {
	return "http://" + host + ":" + port
}

// Build assembles the environment. Tokens are signed with secrets.Key();
// now is recorded as the export time.
func Build(cfg *config.Config, secrets *config.Secrets, now time.Time) (*Environment, error) {
	values := make([]Variable, 0, 1+len(Identities)+len(TamperedTokens))
	values = append(values, NewVariable(BaseURLKey, BaseURL(cfg.BaseHost, secrets.Port)))

	for _, id := range Identities {
		tok, err := token.GenerateToken(id.SubjectID, id.Username, id.Role, secrets.Key())
		if err != nil {
			return nil, fmt.Errorf("generating %s: %w", id.Key, err)
		}
		values = append(values, NewVariable(id.Key, tok))
	}

	values = append(values, TamperedTokens...)

	return &Environment{
		ID:            cfg.Environment.ID,
		Name:          cfg.Environment.Name,
		Values:        values,
		Scope:         VariableScope,
		ExportedAt:    now.UTC().Format(exportedAtLayout) + "Z",
		ExportedUsing: cfg.Environment.ExportedUsing,
	}, nil
}

// Marshal renders env as JSON indented with four spaces.
func Marshal(env *Environment) ([]byte, error) {
	return json.MarshalIndent(env, "", "    ")
}

// Write replaces the file at path with env. The document is written to a
// temporary file in the same directory and renamed into place, so path
// either holds the complete new document or its previous contents. The
// destination directory must already exist.
func Write(path string, env *Environment) error {
	data, err := Marshal(env)
	if err != nil {
		return apperror.New(apperror.Internal, "encode environment", err)
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return apperror.New(apperror.FileWriteFailure, "write environment", err)
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return apperror.New(apperror.FileWriteFailure, "write environment", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return apperror.New(apperror.FileWriteFailure, "write environment", err)
	}
	return nil
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read loads an environment file written by Write or exported by Postman.
func Read(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env Environment
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &env, nil
}
