package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Endpoint is a mail server address.
type Endpoint struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	SSL  bool   `yaml:"ssl"`
}

// MailboxConfig holds the credentials of the service mailbox. The file is
// YAML; JSON credentials files load unchanged since YAML is a superset.
type MailboxConfig struct {
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	IMAP     Endpoint `yaml:"imap"`
	SMTP     Endpoint `yaml:"smtp"`
}

// LoadMailbox reads and validates the credentials file at path.
func LoadMailbox(path string) (MailboxConfig, error) {
	var mc MailboxConfig
	if strings.TrimSpace(path) == "" {
		return mc, errors.New("MAILBOX_CREDENTIALS must point to a credentials file")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return mc, fmt.Errorf("read mailbox credentials: %w", err)
	}
	if err := yaml.Unmarshal(raw, &mc); err != nil {
		return mc, fmt.Errorf("parse mailbox credentials: %w", err)
	}

	if mc.IMAP.Port == 0 {
		mc.IMAP.Port = 993
	}
	if mc.SMTP.Port == 0 {
		mc.SMTP.Port = 465
	}
	if strings.TrimSpace(mc.Email) == "" || mc.Password == "" {
		return mc, errors.New("mailbox credentials need email and password")
	}
	if strings.TrimSpace(mc.IMAP.Host) == "" || strings.TrimSpace(mc.SMTP.Host) == "" {
		return mc, errors.New("mailbox credentials need imap.host and smtp.host")
	}
	return mc, nil
}
