package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RunSetup runs the interactive setup wizard and returns the edited config.
// Each prompt defaults to the corresponding value of existing.
func RunSetup(in io.Reader, out io.Writer, existing Config) (*Config, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	cfg := existing

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │      chatwatch — setup          │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error

	if cfg.APIBaseURL, err = ask("  Execution log API base URL", cfg.APIBaseURL); err != nil {
		return nil, err
	}
	if cfg.APIAuthKey, err = ask("  API authorization key", cfg.APIAuthKey); err != nil {
		return nil, err
	}
	if cfg.AdminEmail, err = ask("  Admin email", cfg.AdminEmail); err != nil {
		return nil, err
	}
	// The password is never echoed back as a default.
	pw, err := ask("  Admin password (blank keeps current)", "")
	if err != nil {
		return nil, err
	}
	if pw != "" {
		cfg.AdminPassword = pw
	}

	size, err := ask("  Rows per page", strconv.Itoa(cfg.PageSize))
	if err != nil {
		return nil, err
	}
	if n, convErr := strconv.Atoi(size); convErr == nil && n > 0 {
		cfg.PageSize = n
	}

	backend, err := ask("  Session storage (file/redis)", cfg.SessionBackend)
	if err != nil {
		return nil, err
	}
	if backend == BackendRedis {
		cfg.SessionBackend = BackendRedis
		if cfg.RedisURL, err = ask("  Redis URL", cfg.RedisURL); err != nil {
			return nil, err
		}
	} else {
		cfg.SessionBackend = BackendFile
	}

	format, err := ask("  Default output format (table/json/yaml)", cfg.DefaultFormat)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON, FormatYAML:
		cfg.DefaultFormat = format
	default:
		cfg.DefaultFormat = FormatTable
	}

	fmt.Fprintln(out)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
