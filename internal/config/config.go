package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server holds connection and credential settings for one deployment destination.
type Server struct {
	// Email is the account email; used together with Password when no token is set.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	// Password is the account password paired with Email.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// Token is an API auth token; it takes precedence over Email/Password.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	// Protocol is the URL scheme of the server API ("http" or "https").
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	// Hostname is the server host to deploy to.
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	// Port is the server API port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
	// Path is the URL prefix the API is mounted under.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Branch is the target branch name, or BranchAuto to follow the git checkout.
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
}

// Map associates destination names with their server settings.
type Map map[string]*Server

const (
	// DefaultConfigFilename is the default destination configuration file.
	DefaultConfigFilename = "screeps.json"

	// DefaultProtocol is used when a destination omits the protocol.
	DefaultProtocol = "https"

	// DefaultHostname is the official server host.
	DefaultHostname = "screeps.com"

	// DefaultPort is the standard private-server API port.
	DefaultPort = 21025

	// DefaultPath is the URL prefix the API is mounted under.
	DefaultPath = "/"

	// DefaultBranch is deployed to when a destination omits the branch.
	DefaultBranch = "default"

	// BranchAuto makes the deployer follow the branch of the current git checkout.
	BranchAuto = "auto"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// ErrNotFound is returned when the configuration file does not exist.
	ErrNotFound = errors.New("configuration file not found")
	// errCredentialsRequired is returned when neither a token nor an email/password pair is set.
	errCredentialsRequired = errors.New("either token or both email and password must be provided")
	// errServerIsNotSet is returned when a nil server entry is validated.
	errServerIsNotSet = errors.New("server configuration is not set")
)

// LoadMap reads a destination map from the provided path.
// Paths ending in .yaml/.yml are parsed as YAML, everything else as JSON.
func LoadMap(path string) (Map, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("read configuration: %w", err)
	}

	var destinations Map

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(contents, &destinations); err != nil {
			return nil, fmt.Errorf("unmarshal configuration: %w", err)
		}
	default:
		if err = json.Unmarshal(contents, &destinations); err != nil {
			return nil, fmt.Errorf("unmarshal configuration: %w", err)
		}
	}

	return destinations, nil
}

// SaveMap writes a destination map to the provided path in the format
// implied by its extension.
func SaveMap(path string, destinations Map) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(destinations)
	default:
		data, err = json.MarshalIndent(destinations, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	// Restrict permissions, the file may contain credentials.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	return nil
}

// ApplyDefaults fills unset connection fields with their default values.
func (s *Server) ApplyDefaults() {
	if s.Protocol == "" {
		s.Protocol = DefaultProtocol
	}

	if s.Hostname == "" {
		s.Hostname = DefaultHostname
	}

	if s.Port <= 0 {
		s.Port = DefaultPort
	}

	if s.Path == "" {
		s.Path = DefaultPath
	}

	if s.Branch == "" {
		s.Branch = DefaultBranch
	}
}

// HasToken reports whether the destination authenticates with a token.
func (s *Server) HasToken() bool {
	return s.Token != ""
}

// Validate checks that exactly one authentication method is resolvable.
func (s *Server) Validate() error {
	if s == nil {
		return errServerIsNotSet
	}

	if s.HasToken() {
		return nil
	}

	if s.Email != "" && s.Password != "" {
		return nil
	}

	return errCredentialsRequired
}
