package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting on the terminal. The first result is cached.
type Source struct {
	envVar     string
	allowEmpty bool
	prompt     string

	// overridable in tests
	stdin       int
	stderr      io.Writer
	isTerminal  func(fd int) bool
	readSecret  func(fd int) ([]byte, error)
	lookupEnvFn func(string) (string, bool)

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting. allowEmpty accepts an empty
// passphrase, which development keystores use.
func NewSource(envVar string, allowEmpty bool) *Source {
	return &Source{
		envVar:      strings.TrimSpace(envVar),
		allowEmpty:  allowEmpty,
		prompt:      "Enter keystore passphrase: ",
		stdin:       int(os.Stdin.Fd()),
		stderr:      os.Stderr,
		isTerminal:  term.IsTerminal,
		readSecret:  term.ReadPassword,
		lookupEnvFn: os.LookupEnv,
	}
}

// Get returns the cached passphrase or resolves it on first use.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := s.lookupEnvFn(s.envVar); ok {
				if strings.TrimSpace(value) == "" && !s.allowEmpty {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if !s.isTerminal(s.stdin) {
			if s.envVar != "" {
				s.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("keystore passphrase required and no terminal available")
			}
			return
		}

		fmt.Fprint(s.stderr, s.prompt)
		secret, err := s.readSecret(s.stdin)
		fmt.Fprintln(s.stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}
		if strings.TrimSpace(string(secret)) == "" && !s.allowEmpty {
			s.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		s.value = string(secret)
	})
	return s.value, s.err
}
