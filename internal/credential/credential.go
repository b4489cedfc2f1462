// Package credential reads and writes the shared dashboard password file.
//
// The file holds the clear-text password (shown once to the operator at
// deploy time), its SHA-256 hex digest (which the frontend compares against),
// and the generation time as Unix seconds.
package credential

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrNotFound is returned when the password file does not exist.
var ErrNotFound = errors.New("password file not found")

// ErrNoHash is returned when the file exists but carries no hash.
var ErrNoHash = errors.New("password hash not set")

const (
	alphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	PasswordLength = 8
)

// Info is the on-disk shape of password.json.
type Info struct {
	Password    string `json:"password"`
	Hash        string `json:"hash"`
	GeneratedAt string `json:"generated_at"`
}

// Public is the projection served by /api/password.
type Public struct {
	Password    *string `json:"password"`
	GeneratedAt *string `json:"generated_at"`
}

// Projection returns the password and generation time, with empty fields
// reported as null.
func (i *Info) Projection() Public {
	return Public{Password: nonEmpty(i.Password), GeneratedAt: nonEmpty(i.GeneratedAt)}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Load reads the password file at path.
func Load(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read password file: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse password file: %w", err)
	}
	return &info, nil
}

// LoadHash returns only the hash, failing with ErrNoHash when it is empty.
func LoadHash(path string) (string, error) {
	info, err := Load(path)
	if err != nil {
		return "", err
	}
	if info.Hash == "" {
		return "", ErrNoHash
	}
	return info.Hash, nil
}

// Generate returns a random alphanumeric password of PasswordLength
// characters.
func Generate() (string, error) {
	buf := make([]byte, PasswordLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Hash returns the lowercase hex SHA-256 digest of password.
func Hash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// New builds an Info for password stamped with now.
func New(password string, now time.Time) *Info {
	return &Info{
		Password:    password,
		Hash:        Hash(password),
		GeneratedAt: strconv.FormatInt(now.Unix(), 10),
	}
}

// Save writes info to path as indented JSON, creating parent directories.
// The file is written to a temporary name first and renamed into place.
func Save(path string, info *Info) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
