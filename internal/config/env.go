package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AdminCredentials identify the privileged administrative account reconciled
// during the migration phase.
type AdminCredentials struct {
	Username string
	Email    string
	Password string
}

// Keys expected in the privileged credentials file.
const (
	AdminUsernameKey = "ADMIN_USERNAME"
	AdminEmailKey    = "ADMIN_EMAIL"
	AdminPasswordKey = "ADMIN_PASSWORD"
)

var errAdminKeyMissing = errors.New("admin credential key missing")

// ReadAdminEnv reads the privileged credentials file (KEY=VALUE lines,
// # comments and blank lines ignored) and returns the administrative account.
// A missing file or a missing key is an error; the caller decides fatality.
func ReadAdminEnv(path string) (*AdminCredentials, error) {
	if path == "" {
		path = DefaultAdminEnvFilename
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open admin credentials file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	values := make(map[string]string)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)

		values[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read admin credentials file: %w", err)
	}

	creds := &AdminCredentials{
		Username: values[AdminUsernameKey],
		Email:    values[AdminEmailKey],
		Password: values[AdminPasswordKey],
	}

	for key, value := range map[string]string{
		AdminUsernameKey: creds.Username,
		AdminEmailKey:    creds.Email,
		AdminPasswordKey: creds.Password,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s in %s: %w", key, path, errAdminKeyMissing)
		}
	}

	return creds, nil
}
