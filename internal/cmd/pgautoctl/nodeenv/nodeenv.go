/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package nodeenv loads a node's on-disk configuration (spec §6.1) and
// turns it into the Config/Instance values the keeper and monitor
// subcommands need, the shared plumbing every "create"/"run"/"show"
// subcommand goes through rather than re-parsing the section file itself.
package nodeenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/configfile"
	"github.com/pg-auto-ha/pgautoctl/internal/keeper"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// Role is the pg_autoctl.role configuration value selecting monitor or
// keeper process behavior (spec §6.1, SPEC_FULL §1 "Process model").
type Role string

// The two process roles a node's configuration can select.
const (
	RoleMonitor Role = "monitor"
	RoleKeeper  Role = "keeper"
)

// ConfigDir resolves the directory holding per-node configuration files,
// honoring XDG_CONFIG_HOME the way the teacher's own config layout does,
// and falling back to ~/.config/pg_autoctl.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pg_autoctl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("while resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pg_autoctl"), nil
}

// ConfigFilePath returns the config file path for a node's data directory,
// named after PGDATA the way spec §6.1 describes ("a key-value file ...
// named after the node's data directory").
func ConfigFilePath(pgdata string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	base := filepath.Base(filepath.Clean(pgdata))
	return filepath.Join(dir, base+".ini"), nil
}

// StateFilePath returns the keeper state file path (spec §6.3) colocated
// with the config file.
func StateFilePath(pgdata string) (string, error) {
	cfgPath, err := ConfigFilePath(pgdata)
	if err != nil {
		return "", err
	}
	return cfgPath + ".state", nil
}

// PIDFilePath returns the PID file path (spec §6.3) colocated with the
// config file.
func PIDFilePath(pgdata string) (string, error) {
	cfgPath, err := ConfigFilePath(pgdata)
	if err != nil {
		return "", err
	}
	return cfgPath + ".pid", nil
}

// Load reads the node's configuration file from disk.
func Load(pgdata string) (*configfile.Sections, string, error) {
	path, err := ConfigFilePath(pgdata)
	if err != nil {
		return nil, "", err
	}
	sections, err := configfile.LoadSections(path)
	if err != nil {
		return nil, "", err
	}
	return sections, path, nil
}

// Save writes the node's configuration file back to disk.
func Save(pgdata string, sections *configfile.Sections) error {
	path, err := ConfigFilePath(pgdata)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("while creating config directory: %w", err)
	}
	return configfile.SaveSections(path, sections)
}

// RoleOf reads the pg_autoctl.role key out of sections.
func RoleOf(sections *configfile.Sections) Role {
	return Role(sections.GetDefault("pg_autoctl", "role", string(RoleKeeper)))
}

// Instance builds the pg.Instance this node's configuration describes.
func Instance(pgdata string, sections *configfile.Sections) pg.Instance {
	port := pg.GetServerPort()
	if v := sections.GetDefault("pg_autoctl", "pgport", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			port = parsed
		}
	}
	return pg.Instance{
		PgData: pgdata,
		Host:   sections.GetDefault("pg_autoctl", "hostname", "localhost"),
		Port:   port,
		Socket: pg.GetSocketDir(),
		Name:   sections.GetDefault("pg_autoctl", "name", filepath.Base(pgdata)),
	}
}

// KeeperConfig builds a keeper.Config from the node's persisted sections.
func KeeperConfig(pgdata string, sections *configfile.Sections) (keeper.Config, error) {
	statePath, err := StateFilePath(pgdata)
	if err != nil {
		return keeper.Config{}, err
	}
	pidPath, err := PIDFilePath(pgdata)
	if err != nil {
		return keeper.Config{}, err
	}

	sleepTime := 5 * time.Second
	if v := sections.GetDefault("pg_autoctl", "keeper-sleep-time", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			sleepTime = time.Duration(parsed) * time.Second
		}
	}

	instance := Instance(pgdata, sections)

	var groupID *int64
	if v, ok := sections.Get("pg_autoctl", "group"); ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return keeper.Config{}, fmt.Errorf("invalid pg_autoctl.group %q: %w", v, err)
		}
		groupID = &parsed
	}

	return keeper.Config{
		StateFilePath: statePath,
		PIDFilePath:   pidPath,

		Formation: sections.GetDefault("pg_autoctl", "formation", "default"),
		GroupID:   groupID,
		NodeName:  instance.Name,
		Host:      instance.Host,
		Port:      instance.Port,

		ReplicationUser:         sections.GetDefault("replication", "username", "pgautoctl_repl"),
		ReplicationPassword:     os.Getenv("PGAUTOCTL_REPLICATION_PASSWORD"),
		ReplicationPasswordFile: sections.GetDefault("replication", "password-file", ""),

		SSLSelfSigned: sections.GetDefault("ssl", "self-signed", "false") == "true",
		PKIDir:        sections.GetDefault("ssl", "ca-file", filepath.Join(pgdata, "..", "pki")),

		SleepTime: sleepTime,
	}, nil
}

// MonitorURL returns the connection string for the monitor's HTTP API
// (spec §6.1 "pg_autoctl.monitor").
func MonitorURL(sections *configfile.Sections) (string, error) {
	url := sections.GetDefault("pg_autoctl", "monitor", "")
	if url == "" {
		return "", fmt.Errorf("no monitor configured for this node (pg_autoctl.monitor is empty)")
	}
	return url, nil
}
